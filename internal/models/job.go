package models

import (
	"fmt"
	"sync"
	"time"

	"github.com/rosterkit/roster-api/internal/events"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// terminal reports whether a status absorbs all further transitions.
func (s JobStatus) terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type LogEntry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Job tracks a single workflow run: its status, log transcript, final
// result and the event queue feeding the live stream. All mutation
// happens on the goroutine running the workflow; reads of the snapshot
// may happen concurrently from request handlers.
type Job struct {
	id        string
	createdAt time.Time
	queue     *events.Queue

	mu     sync.Mutex
	status JobStatus
	logs   []LogEntry
	err    string
	result *WorkflowResult
}

func NewJob(id string) *Job {
	return &Job{
		id:        id,
		createdAt: time.Now().UTC(),
		queue:     events.NewQueue(),
		status:    JobStatusPending,
	}
}

func (j *Job) ID() string            { return j.id }
func (j *Job) CreatedAt() time.Time  { return j.createdAt }
func (j *Job) Events() *events.Queue { return j.queue }

func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Log appends a line to the transcript and emits it as a stream event.
func (j *Job) Log(message string) {
	entry := LogEntry{Message: message, Timestamp: time.Now().UTC()}
	j.mu.Lock()
	j.logs = append(j.logs, entry)
	j.mu.Unlock()
	j.queue.Push(events.NewLog(message))
}

func (j *Job) Logf(format string, args ...interface{}) {
	j.Log(fmt.Sprintf(format, args...))
}

// SetStatus transitions the job. Transitions out of a terminal status
// are ignored.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	if j.status.terminal() {
		j.mu.Unlock()
		return
	}
	j.status = status
	j.logs = append(j.logs, LogEntry{
		Message:   "Status changed to " + string(status),
		Timestamp: time.Now().UTC(),
	})
	j.mu.Unlock()
	j.queue.Push(events.NewStatus(string(status)))
}

// Finish marks the job completed, records the result, emits the result
// event and closes the stream.
func (j *Job) Finish(result *WorkflowResult) {
	j.mu.Lock()
	if j.status.terminal() {
		j.mu.Unlock()
		return
	}
	j.result = result
	j.err = ""
	j.mu.Unlock()

	j.SetStatus(JobStatusCompleted)
	j.queue.Push(events.NewResult(string(JobStatusCompleted), result))
	j.queue.Close()
}

// Fail marks the job failed with a human-readable message, emits the
// error event and closes the stream.
func (j *Job) Fail(message string) {
	j.mu.Lock()
	if j.status.terminal() {
		j.mu.Unlock()
		return
	}
	j.err = message
	j.mu.Unlock()

	j.SetStatus(JobStatusFailed)
	j.queue.Push(events.NewError(string(JobStatusFailed), message))
	j.queue.Close()
}

// JobView is the JSON shape returned by the job status endpoint.
type JobView struct {
	ID        string          `json:"id"`
	Status    JobStatus       `json:"status"`
	Error     string          `json:"error"`
	Logs      []LogEntry      `json:"logs"`
	Result    *WorkflowResult `json:"result"`
	CreatedAt time.Time       `json:"createdAt"`
}

// JobSummary is the abbreviated shape used by the job listing.
type JobSummary struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot returns a consistent copy of the job's externally visible
// state.
func (j *Job) Snapshot() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	logs := make([]LogEntry, len(j.logs))
	copy(logs, j.logs)
	return JobView{
		ID:        j.id,
		Status:    j.status,
		Error:     j.err,
		Logs:      logs,
		Result:    j.result,
		CreatedAt: j.createdAt,
	}
}

func (j *Job) Summary() JobSummary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSummary{ID: j.id, Status: j.status, CreatedAt: j.createdAt}
}
