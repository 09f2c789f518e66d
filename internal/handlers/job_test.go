package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterkit/roster-api/internal/fetch"
	"github.com/rosterkit/roster-api/internal/models"
	"github.com/rosterkit/roster-api/internal/registry"
	"github.com/rosterkit/roster-api/internal/workflow"
)

// fakeSourceHandler serves minimal club, roster and player documents.
func fakeSourceHandler(rosterStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/players"):
			w.WriteHeader(rosterStatus)
			if rosterStatus == http.StatusOK {
				fmt.Fprint(w, `{"players":[{"id":"p1","name":"Keeper","shirtNumber":"1"}]}`)
				return
			}
			fmt.Fprint(w, `{"detail":"no roster"}`)
		case strings.HasPrefix(r.URL.Path, "/clubs/"):
			fmt.Fprintf(w, `{"name":"Club %s"}`, strings.Split(r.URL.Path, "/")[2])
		case strings.HasPrefix(r.URL.Path, "/players/"):
			fmt.Fprint(w, `{"id":"p1","height":"185"}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestJobHandler(t *testing.T, rosterStatus int) (*JobHandler, *registry.Registry) {
	t.Helper()
	srv := httptest.NewServer(fakeSourceHandler(rosterStatus))
	t.Cleanup(srv.Close)

	client := fetch.NewClient(srv.URL, 2*time.Second, nil, zerolog.Nop())
	orch := workflow.NewOrchestrator(workflow.Config{
		DataDir:       t.TempDir(),
		Cooldown:      time.Second,
		MinRosterSize: 5,
	}, client, zerolog.Nop())

	reg := registry.New()
	defaults := RunDefaults{Delay: 5 * time.Second, Retries: 3, MaxParallel: 4}
	return NewJobHandler(reg, orch, defaults, zerolog.Nop()), reg
}

func TestRunWorkflowRejectsInvalidPayload(t *testing.T) {
	h, _ := newTestJobHandler(t, http.StatusOK)

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader("{"))
	w := httptest.NewRecorder()
	h.RunWorkflow(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request payload", strings.TrimSpace(w.Body.String()))
}

func TestRunWorkflowRequiresAtLeastOneID(t *testing.T) {
	h, _ := newTestJobHandler(t, http.StatusOK)

	for _, body := range []string{`{}`, `{"ids":[]}`, `{"ids":["  ",""]}`} {
		req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
		w := httptest.NewRecorder()
		h.RunWorkflow(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
		assert.Equal(t, "Provide at least one club ID", strings.TrimSpace(w.Body.String()))
	}
}

func TestRunWorkflowAcceptsScalarIDAndCompletes(t *testing.T) {
	h, reg := newTestJobHandler(t, http.StatusOK)

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"ids":"27","force":true}`))
	w := httptest.NewRecorder()
	h.RunWorkflow(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted["jobId"])

	job, ok := reg.Get(accepted["jobId"])
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return job.Status() == models.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	view := job.Snapshot()
	require.NotNil(t, view.Result)
	assert.Equal(t, "exports/team_list.xlsx", view.Result.Workbook)
	assert.Empty(t, view.Error)

	var received bool
	for _, entry := range view.Logs {
		if entry.Message == "Received 1 club IDs" {
			received = true
		}
	}
	assert.True(t, received, "transcript should note the accepted IDs")
}

func TestRunWorkflowFatalErrorFailsJob(t *testing.T) {
	h, reg := newTestJobHandler(t, http.StatusNotFound)

	body := `{"ids":["27"],"force":true,"enableRetry":false}`
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.RunWorkflow(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	job, ok := reg.Get(accepted["jobId"])
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return job.Status() == models.JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	view := job.Snapshot()
	assert.Equal(t, "No roster data available for the provided club IDs.", view.Error)
	assert.Nil(t, view.Result)
}

func TestRunWorkflowLogsFieldSelection(t *testing.T) {
	h, reg := newTestJobHandler(t, http.StatusOK)

	body := `{"ids":["27"],"force":true,"fields":["full_name","boot_size"]}`
	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.RunWorkflow(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	job, ok := reg.Get(accepted["jobId"])
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return job.Status() == models.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	var selected bool
	for _, entry := range job.Snapshot().Logs {
		if entry.Message == "Selected workbook fields: full_name" {
			selected = true
		}
	}
	assert.True(t, selected, "unknown fields must be dropped before logging")
}

func TestGetJob(t *testing.T) {
	h, reg := newTestJobHandler(t, http.StatusOK)
	job := reg.Create()
	job.Log("queued")

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID(), nil), map[string]string{"jobID": job.ID()})
	w := httptest.NewRecorder()
	h.GetJob(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var view models.JobView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, job.ID(), view.ID)
	assert.Equal(t, models.JobStatusPending, view.Status)
	require.Len(t, view.Logs, 1)
	assert.Equal(t, "queued", view.Logs[0].Message)
}

func TestGetJobNotFound(t *testing.T) {
	h, _ := newTestJobHandler(t, http.StatusOK)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/jobs/nope", nil), map[string]string{"jobID": "nope"})
	w := httptest.NewRecorder()
	h.GetJob(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Job not found", strings.TrimSpace(w.Body.String()))
}

func TestListJobs(t *testing.T) {
	h, reg := newTestJobHandler(t, http.StatusOK)
	reg.Create()
	reg.Create()

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	w := httptest.NewRecorder()
	h.ListJobs(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var summaries []models.JobSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	assert.Len(t, summaries, 2)
}

func TestListJobsEmpty(t *testing.T) {
	h, _ := newTestJobHandler(t, http.StatusOK)

	w := httptest.NewRecorder()
	h.ListJobs(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestStreamJobNotFound(t *testing.T) {
	h, _ := newTestJobHandler(t, http.StatusOK)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/jobs/nope/stream", nil), map[string]string{"jobID": "nope"})
	w := httptest.NewRecorder()
	h.StreamJob(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamJobReplaysFinishedRun(t *testing.T) {
	h, reg := newTestJobHandler(t, http.StatusOK)
	job := reg.Create()
	job.SetStatus(models.JobStatusRunning)
	job.Log("working")
	job.Finish(&models.WorkflowResult{Workbook: "exports/team_list.xlsx"})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID()+"/stream", nil), map[string]string{"jobID": job.ID()})
	w := httptest.NewRecorder()
	h.StreamJob(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := decodeSSE(t, w.Body.String())
	require.Len(t, events, 5)

	// current status snapshot first, then the recorded event history
	assert.Equal(t, "status", events[0]["type"])
	assert.Equal(t, "completed", events[0]["status"])
	assert.Equal(t, "status", events[1]["type"])
	assert.Equal(t, "running", events[1]["status"])
	assert.Equal(t, "log", events[2]["type"])
	assert.Equal(t, "working", events[2]["message"])
	assert.Equal(t, "status", events[3]["type"])
	assert.Equal(t, "completed", events[3]["status"])
	assert.Equal(t, "result", events[4]["type"])
	assert.Equal(t, "completed", events[4]["status"])
	require.NotNil(t, events[4]["data"])
	data := events[4]["data"].(map[string]interface{})
	assert.Equal(t, "exports/team_list.xlsx", data["workbook"])
}

func TestStreamJobReplaysFailure(t *testing.T) {
	h, reg := newTestJobHandler(t, http.StatusOK)
	job := reg.Create()
	job.SetStatus(models.JobStatusRunning)
	job.Fail("No valid club IDs provided.")

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID()+"/stream", nil), map[string]string{"jobID": job.ID()})
	w := httptest.NewRecorder()
	h.StreamJob(w, req)

	events := decodeSSE(t, w.Body.String())
	require.Len(t, events, 4)
	last := events[len(events)-1]
	assert.Equal(t, "error", last["type"])
	assert.Equal(t, "failed", last["status"])
	assert.Equal(t, "No valid club IDs provided.", last["error"])
}

func decodeSSE(t *testing.T, body string) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	for _, chunk := range strings.Split(body, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		require.True(t, strings.HasPrefix(chunk, "data: "), "malformed SSE chunk %q", chunk)
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(chunk, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func TestBuildOptionsDefaults(t *testing.T) {
	h, _ := newTestJobHandler(t, http.StatusOK)

	opts := h.buildOptions(models.RunRequest{}, []string{"27"}, nil)

	assert.Equal(t, []string{"27"}, opts.IDs)
	assert.Equal(t, 5*time.Second, opts.Delay)
	assert.Equal(t, 3, opts.Retries)
	assert.Equal(t, 4, opts.MaxParallel)
	assert.False(t, opts.Parallel)
	assert.False(t, opts.RateLimit)
	assert.False(t, opts.Force)
	assert.Empty(t, opts.SeasonFilter)
}

func TestBuildOptionsOverrides(t *testing.T) {
	h, _ := newTestJobHandler(t, http.StatusOK)
	retryOn := true

	payload := models.RunRequest{
		SeasonFilter:        " 2023 ",
		Force:               true,
		EnableParallel:      true,
		MaxParallelRequests: 2,
		EnableRateLimit:     true,
		RateLimitDelay:      2.5,
		EnableRetry:         &retryOn,
		MaxRetries:          7,
	}
	opts := h.buildOptions(payload, []string{"27"}, []string{"full_name"})

	assert.Equal(t, "2023", opts.SeasonFilter)
	assert.Equal(t, []string{"full_name"}, opts.Fields)
	assert.True(t, opts.Force)
	assert.True(t, opts.Parallel)
	assert.Equal(t, 2, opts.MaxParallel)
	assert.True(t, opts.RateLimit)
	assert.Equal(t, 2500*time.Millisecond, opts.Delay)
	assert.Equal(t, 7, opts.Retries)
}

func TestBuildOptionsRetryToggle(t *testing.T) {
	h, _ := newTestJobHandler(t, http.StatusOK)
	off, on := false, true

	tests := []struct {
		name    string
		payload models.RunRequest
		want    int
	}{
		{"unset uses default", models.RunRequest{}, 3},
		{"enabled without cap uses default", models.RunRequest{EnableRetry: &on}, 3},
		{"enabled with cap", models.RunRequest{EnableRetry: &on, MaxRetries: 9}, 9},
		{"disabled forces single attempt", models.RunRequest{EnableRetry: &off, MaxRetries: 9}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := h.buildOptions(tc.payload, []string{"27"}, nil)
			assert.Equal(t, tc.want, opts.Retries)
		})
	}
}
