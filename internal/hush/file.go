package hush

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"hushd/internal/audit"
	"hushd/internal/store"
)

// fileHandler is a single-identifier operation invoked once the
// shared dispatch guard has passed.
type fileHandler func(w http.ResponseWriter, r *http.Request, id string)

// withFile applies the guard shared by all single-identifier
// operations: the fileid parameter must be present and the object's
// container must exist. Handlers behind the guard may still observe
// the object vanishing mid-request when racing a delete; they report
// that as not-found rather than failing harder.
func (s *Server) withFile(next fileHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("fileid")
		if id == "" {
			writeJSON(w, http.StatusBadRequest, statusResponse{Status: "missing fileid"})
			return
		}

		exists, err := s.cfg.Store.Exists(r.Context(), id)
		if err != nil {
			slog.Error("check object", "fileid", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "internal error"})
			return
		}
		if !exists {
			writeJSON(w, http.StatusNotFound, existsResponse{FileID: id})
			return
		}

		next(w, r, id)
	}
}

func (s *Server) handleExists(w http.ResponseWriter, r *http.Request, id string) {
	writeJSON(w, http.StatusOK, existsResponse{FileID: id, Exists: true})
}

func (s *Server) handleCryptofile(w http.ResponseWriter, r *http.Request, id string) {
	s.streamPart(w, r, id, store.Ciphertext)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request, id string) {
	s.streamPart(w, r, id, store.Metadata)
}

// streamPart copies one part of the object to the client without
// buffering it whole.
func (s *Server) streamPart(w http.ResponseWriter, r *http.Request, id string, part store.Part) {
	rc, err := s.cfg.Store.ReadPart(r.Context(), id, part)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, existsResponse{FileID: id})
			return
		}
		slog.Error("open part", "fileid", id, "part", part, "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "internal error"})
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("stream part", "fileid", id, "part", part, "error", err)
		return
	}

	s.cfg.Audit.Record(r.Context(), audit.Event{Action: audit.ActionFetch, FileID: id, RemoteIP: clientAddress(r), OK: true})
}

// handleDelete removes the object if the supplied delete password
// matches the one stored at upload time.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.cfg.Store.ReadRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, existsResponse{FileID: id})
			return
		}
		slog.Error("read server record", "fileid", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "internal error"})
		return
	}

	remote := clientAddress(r)

	// Exact byte-for-byte comparison against the stored password,
	// which is kept in cleartext. Matches the original service.
	if r.URL.Query().Get("deletepassword") != rec.DeletePassword {
		s.cfg.Audit.Record(r.Context(), audit.Event{Action: audit.ActionDeleteDenied, FileID: id, RemoteIP: remote})
		writeJSON(w, http.StatusUnauthorized, deleteResponse{FileID: id, Deleted: false})
		return
	}

	if err := s.cfg.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted concurrently; the container is already gone.
			writeJSON(w, http.StatusNotFound, existsResponse{FileID: id})
			return
		}
		slog.Error("delete object", "fileid", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "internal error"})
		return
	}

	s.cfg.Audit.Record(r.Context(), audit.Event{Action: audit.ActionDelete, FileID: id, RemoteIP: remote, OK: true})
	writeJSON(w, http.StatusOK, deleteResponse{FileID: id, Deleted: true})
}

// handleIP returns the address the object was uploaded from. This
// requires no authorization, a trust-boundary choice inherited from
// the original service.
func (s *Server) handleIP(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.cfg.Store.ReadRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, existsResponse{FileID: id})
			return
		}
		slog.Error("read server record", "fileid", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, ipResponse{FileID: id, UploadIP: rec.ClientIP})
}
