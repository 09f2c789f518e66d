package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rosterkit/roster-api/internal/proxy"
)

type StatusHandler struct {
	proxies *proxy.Pool
}

func NewStatusHandler(proxies *proxy.Pool) *StatusHandler {
	return &StatusHandler{proxies: proxies}
}

// ProxyStatus reports whether proxy rotation is active and how many
// addresses the pool currently holds.
func (h *StatusHandler) ProxyStatus(w http.ResponseWriter, r *http.Request) {
	addrs := h.proxies.All()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"enabled": len(addrs) > 0,
		"count":   len(addrs),
	})
}
