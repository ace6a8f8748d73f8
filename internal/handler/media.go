package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rentloop/internal/httputil"
	"rentloop/internal/model"
	"rentloop/internal/service"
)

// MediaHandler serves raw listing image bytes.
type MediaHandler struct {
	listingService *service.ListingService
	logger         *zap.SugaredLogger
}

func NewMediaHandler(listingService *service.ListingService, logger *zap.SugaredLogger) *MediaHandler {
	return &MediaHandler{listingService: listingService, logger: logger}
}

// ServeImage streams one stored image back to the client
// GET /api/listings/images/{filename}
func (h *MediaHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" || strings.Contains(filename, "/") || strings.Contains(filename, "..") {
		httputil.WriteNotFound(w, "Image not found")
		return
	}

	// Image refs are bare names; the store owns the bucket layout.
	body, contentType, err := h.listingService.ServeImage(r.Context(), filename)
	if err != nil {
		if errors.Is(err, model.ErrMediaNotFound) {
			httputil.WriteNotFound(w, "Image not found")
			return
		}
		h.logger.Errorw("failed to serve image", "name", filename, "error", err)
		httputil.WriteInternalError(w, "Failed to serve image")
		return
	}
	defer body.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		// Headers are already out; client likely disconnected mid-stream.
		h.logger.Debugw("image stream interrupted", "name", filename, "error", err)
	}
}
