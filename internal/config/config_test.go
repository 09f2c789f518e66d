package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir stands in for testing.T.Chdir, which needs Go 1.24+: it enters
// dir and restores the previous working directory after the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "http://localhost:8000", cfg.SourceAPI.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.SourceAPI.Timeout)
	assert.Equal(t, "proxy.txt", cfg.Proxy.File)
	assert.Equal(t, 5*time.Second, cfg.Workflow.RequestDelay)
	assert.Equal(t, 3, cfg.Workflow.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Workflow.RateLimitCooldown)
	assert.Equal(t, 4, cfg.Workflow.MaxParallelRequests)
	assert.Equal(t, 5, cfg.Workflow.MinRosterSize)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server_port: "9090"
data_dir: /var/lib/roster
source_api:
  base_url: http://source.internal:8000
  timeout: 10s
proxy:
  file: /etc/roster/proxies.txt
workflow:
  request_delay: 2s
  max_retries: 5
  rate_limit_cooldown: 45s
  max_parallel_requests: 8
  min_roster_size: 3
cors:
  allowed_origins:
    - http://localhost:5173
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "/var/lib/roster", cfg.DataDir)
	assert.Equal(t, "http://source.internal:8000", cfg.SourceAPI.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.SourceAPI.Timeout)
	assert.Equal(t, "/etc/roster/proxies.txt", cfg.Proxy.File)
	assert.Equal(t, 2*time.Second, cfg.Workflow.RequestDelay)
	assert.Equal(t, 5, cfg.Workflow.MaxRetries)
	assert.Equal(t, 45*time.Second, cfg.Workflow.RateLimitCooldown)
	assert.Equal(t, 8, cfg.Workflow.MaxParallelRequests)
	assert.Equal(t, 3, cfg.Workflow.MinRosterSize)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server_port: \"3000\"\n"), 0o644))
	chdir(t, dir)

	cfg := Load()

	assert.Equal(t, "3000", cfg.ServerPort)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 3, cfg.Workflow.MaxRetries)
}
