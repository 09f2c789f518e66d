package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rosterkit/roster-api/internal/utils"
)

type DownloadHandler struct {
	dataDir string
}

func NewDownloadHandler(dataDir string) *DownloadHandler {
	return &DownloadHandler{dataDir: dataDir}
}

// Download serves a previously produced artifact. The path parameter
// is relative to the data directory; anything resolving outside it is
// rejected.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Query().Get("path")
	if param == "" {
		http.Error(w, "Missing path parameter", http.StatusBadRequest)
		return
	}
	target, err := utils.ResolveWithin(h.dataDir, param)
	if err != nil {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(target)))
	http.ServeFile(w, r, target)
}
