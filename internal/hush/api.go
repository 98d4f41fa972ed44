package hush

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response bodies for the drop API. Field names are part of the wire
// contract and must not change.

type uploadResponse struct {
	Status string `json:"status"`
	FileID string `json:"fileid"`
}

type existsResponse struct {
	FileID string `json:"fileid"`
	Exists bool   `json:"exists"`
}

type deleteResponse struct {
	FileID  string `json:"fileid"`
	Deleted bool   `json:"deleted"`
}

type ipResponse struct {
	FileID   string `json:"fileid"`
	UploadIP string `json:"uploadip"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// writeJSON encodes v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
