package hush

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"hushd/internal/audit"
	"hushd/internal/store"
)

// uploadFields are the required form fields, checked in this order.
var uploadFields = []string{"cryptofile", "metadata", "deletepassword"}

// handleUpload accepts a new object: an encrypted payload, opaque
// metadata, and the delete password, all as form fields. On success
// it responds with the freshly allocated identifier.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Status: "invalid upload request, error"})
		return
	}

	for _, field := range uploadFields {
		if r.PostFormValue(field) == "" {
			writeJSON(w, http.StatusBadRequest, uploadResponse{
				Status: fmt.Sprintf("invalid upload request, %s missing, error", field),
			})
			return
		}
	}

	rec := store.Record{
		DeletePassword: r.PostFormValue("deletepassword"),
		ClientIP:       clientAddress(r),
	}
	ciphertext := []byte(r.PostFormValue("cryptofile"))
	metadata := []byte(r.PostFormValue("metadata"))

	ctx := r.Context()

	var id string
	for attempt := 0; ; attempt++ {
		if attempt == maxAllocateAttempts {
			writeJSON(w, http.StatusInternalServerError, uploadResponse{Status: "unable to allocate fileid"})
			return
		}

		candidate, err := s.ids.Allocate(ctx)
		if err != nil {
			slog.Error("allocate fileid", "error", err)
			writeJSON(w, http.StatusInternalServerError, uploadResponse{Status: "unable to allocate fileid"})
			return
		}

		err = s.cfg.Store.Create(ctx, candidate, ciphertext, metadata, rec)
		if errors.Is(err, store.ErrExists) {
			// Lost a creation race for this id; try a fresh one.
			continue
		}

		var we *store.WriteError
		if errors.As(err, &we) {
			slog.Error("write object part", "fileid", candidate, "part", we.Part, "error", err)
			writeJSON(w, http.StatusInternalServerError, uploadResponse{Status: "unable to write " + we.Part})
			return
		}
		if err != nil {
			slog.Error("create object", "fileid", candidate, "error", err)
			writeJSON(w, http.StatusInternalServerError, uploadResponse{Status: "unable to write object"})
			return
		}

		id = candidate
		break
	}

	s.cfg.Audit.Record(ctx, audit.Event{Action: audit.ActionUpload, FileID: id, RemoteIP: rec.ClientIP, OK: true})

	if err := s.cfg.Notifier.Notify(ctx, id, r.Host); err != nil {
		slog.Error("upload notification", "fileid", id, "error", err)
	}

	writeJSON(w, http.StatusOK, uploadResponse{Status: "ok", FileID: id})
}

// clientAddress resolves the uploader's address, preferring the
// forwarded-for header over the peer address. The header is trusted
// as-is, matching the original service.
func clientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
