package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ssc-dashboards/portal/internal/content"
)

// ContentHandler serves GET /api/admin/content/{path...} from the content
// directory.
type ContentHandler struct {
	store  *content.Store
	logger *slog.Logger
}

func NewContentHandler(store *content.Store, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{store: store, logger: logger}
}

func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	reqPath := r.PathValue("path")

	res, err := h.store.Lookup(reqPath)
	if err != nil {
		status, msg := contentError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("content lookup", "path", reqPath, "error", err)
		} else {
			h.logger.Debug("content lookup", "path", reqPath, "error", err)
		}
		writeEnvelope(w, status, msg, nil)
		return
	}

	msg := "Success"
	if res.IsDir {
		msg = "Directory listing retrieved successfully"
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeEnvelope(w, http.StatusOK, msg, res.Data())
}

func contentError(err error) (int, string) {
	switch {
	case errors.Is(err, content.ErrInvalidPath):
		return http.StatusBadRequest, "Invalid path"
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, "File not found"
	case errors.Is(err, content.ErrTypeNotAllowed):
		return http.StatusForbidden, "File type not allowed"
	case errors.Is(err, content.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "File too large"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
