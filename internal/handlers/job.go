package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rosterkit/roster-api/internal/events"
	"github.com/rosterkit/roster-api/internal/export"
	"github.com/rosterkit/roster-api/internal/models"
	"github.com/rosterkit/roster-api/internal/registry"
	"github.com/rosterkit/roster-api/internal/workflow"
	"github.com/rs/zerolog"
)

// RunDefaults holds the server-side values applied when a run request
// leaves the optional knobs unset.
type RunDefaults struct {
	Delay       time.Duration
	Retries     int
	MaxParallel int
}

type JobHandler struct {
	registry     *registry.Registry
	orchestrator *workflow.Orchestrator
	defaults     RunDefaults
	logger       zerolog.Logger
}

func NewJobHandler(reg *registry.Registry, orch *workflow.Orchestrator, defaults RunDefaults, logger zerolog.Logger) *JobHandler {
	return &JobHandler{
		registry:     reg,
		orchestrator: orch,
		defaults:     defaults,
		logger:       logger,
	}
}

func (h *JobHandler) RunWorkflow(w http.ResponseWriter, r *http.Request) {
	var payload models.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	ids := payload.IDs.Clean()
	if len(ids) == 0 {
		http.Error(w, "Provide at least one club ID", http.StatusBadRequest)
		return
	}
	fields := knownFields(payload.Fields.Clean())

	job := h.registry.Create()
	job.Logf("Received %d club IDs", len(ids))
	if len(fields) > 0 {
		job.Logf("Selected workbook fields: %s", strings.Join(fields, ", "))
	}

	go h.execute(job, h.buildOptions(payload, ids, fields))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"jobId": job.ID()})
}

func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.registry.List()
	summaries := make([]models.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, job.Summary())
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.registry.Get(mux.Vars(r)["jobID"])
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

// StreamJob replays a job's events as Server-Sent Events: a snapshot
// of the current status first, then every queued event in production
// order, ending when the job reaches a terminal state or the client
// disconnects.
func (h *JobHandler) StreamJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.registry.Get(mux.Vars(r)["jobID"])
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if err := writeEvent(w, events.NewStatus(string(job.Status()))); err != nil {
		return
	}
	flusher.Flush()

	queue := job.Events()
	for {
		event, ok := queue.Next(r.Context())
		if !ok {
			return
		}
		if err := writeEvent(w, event); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// execute drives one job to a terminal state on its own goroutine,
// detached from the submitting request's lifetime.
func (h *JobHandler) execute(job *models.Job, opts workflow.Options) {
	job.SetStatus(models.JobStatusRunning)
	result, err := h.orchestrator.Run(context.Background(), opts, job)
	if err != nil {
		if workflow.IsFatal(err) {
			job.Fail(err.Error())
		} else {
			h.logger.Error().Err(err).Str("job_id", job.ID()).Msg("Workflow failed")
			job.Fail("Unexpected error: " + err.Error())
		}
		return
	}
	job.Finish(result)
}

func (h *JobHandler) buildOptions(payload models.RunRequest, ids, fields []string) workflow.Options {
	delay := h.defaults.Delay
	if payload.RateLimitDelay > 0 {
		delay = time.Duration(payload.RateLimitDelay * float64(time.Second))
	}

	retries := 1
	if payload.EnableRetry == nil || *payload.EnableRetry {
		retries = h.defaults.Retries
		if payload.MaxRetries > 0 {
			retries = payload.MaxRetries
		}
	}

	maxParallel := h.defaults.MaxParallel
	if payload.MaxParallelRequests > 0 {
		maxParallel = payload.MaxParallelRequests
	}

	return workflow.Options{
		IDs:          ids,
		SeasonFilter: strings.TrimSpace(payload.SeasonFilter),
		Fields:       fields,
		Force:        payload.Force,
		Parallel:     payload.EnableParallel,
		MaxParallel:  maxParallel,
		RateLimit:    payload.EnableRateLimit,
		Delay:        delay,
		Retries:      retries,
	}
}

func knownFields(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if export.KnownField(id) {
			out = append(out, id)
		}
	}
	return out
}
