package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rosterkit/roster-api/internal/export"
)

// ListFields declares the recognized workbook fields and the default
// column order.
func ListFields(w http.ResponseWriter, r *http.Request) {
	defs := export.AvailableFields()
	fields := make([]map[string]string, 0, len(defs))
	for _, def := range defs {
		fields = append(fields, map[string]string{"id": def.ID, "label": def.Label})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"fields":  fields,
		"default": export.DefaultFieldOrder,
	})
}
