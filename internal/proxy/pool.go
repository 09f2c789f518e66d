package proxy

import (
	"os"
	"strings"
	"sync"
	"time"
)

// Pool rotates outbound proxy addresses loaded from a flat file, one
// address per line. Blank lines and #-comments are skipped. The file
// is re-read lazily whenever its modification time changes, so the
// list can be edited while the service runs; if the file disappears
// the pool empties. A single mutex serializes all access.
type Pool struct {
	path string

	mu      sync.Mutex
	addrs   []string
	modTime time.Time
	cursor  int
}

func NewPool(path string) *Pool {
	return &Pool{path: path}
}

// Next returns the next address in round-robin order, or false when
// the pool is empty.
func (p *Pool) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh()
	if len(p.addrs) == 0 {
		return "", false
	}
	addr := p.addrs[p.cursor%len(p.addrs)]
	p.cursor++
	return addr, true
}

// All returns a copy of the current address list.
func (p *Pool) All() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh()
	return append([]string(nil), p.addrs...)
}

// Len reports the current pool size.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh()
	return len(p.addrs)
}

// refresh re-reads the backing file when its mtime changed. Callers
// must hold p.mu.
func (p *Pool) refresh() {
	if p.path == "" {
		return
	}
	info, err := os.Stat(p.path)
	if err != nil {
		p.addrs = nil
		p.modTime = time.Time{}
		p.cursor = 0
		return
	}
	if p.addrs != nil && info.ModTime().Equal(p.modTime) {
		return
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		p.addrs = nil
		p.modTime = time.Time{}
		p.cursor = 0
		return
	}

	addrs := make([]string, 0, 8)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addrs = append(addrs, line)
	}
	p.addrs = addrs
	p.modTime = info.ModTime()
	p.cursor = 0
}
