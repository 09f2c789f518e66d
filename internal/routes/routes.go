package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rosterkit/roster-api/internal/handlers"
)

// NewRouter sets up the API routes
func NewRouter(job *handlers.JobHandler, status *handlers.StatusHandler, download *handlers.DownloadHandler) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Workflow endpoints
	router.HandleFunc("/run", job.RunWorkflow).Methods(http.MethodPost)
	router.HandleFunc("/jobs", job.ListJobs).Methods(http.MethodGet)
	router.HandleFunc("/jobs/{jobID}", job.GetJob).Methods(http.MethodGet)
	router.HandleFunc("/jobs/{jobID}/stream", job.StreamJob).Methods(http.MethodGet)

	// Workbook field catalogue
	router.HandleFunc("/fields", handlers.ListFields).Methods(http.MethodGet)

	// Operational status and artifact retrieval
	router.HandleFunc("/status/proxies", status.ProxyStatus).Methods(http.MethodGet)
	router.HandleFunc("/download", download.Download).Methods(http.MethodGet)

	return router
}
