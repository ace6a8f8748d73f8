package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rentloop/internal/config"
	"rentloop/internal/httputil"
	"rentloop/internal/model"
	"rentloop/internal/service"
	"rentloop/internal/transport/http/middleware"
)

// maxCreateFormSize bounds a whole multipart create request: the per-file
// cap times the file limit, plus form overhead.
const maxCreateFormSize = int64(model.MaxImageSizeBytes)*model.MaxListingImages + 1<<20

// patchFormFields is the allow-list for update requests. Anything else in
// the form is rejected, never silently persisted.
var patchFormFields = map[string]struct{}{
	"title":          {},
	"description":    {},
	"price":          {},
	"rentType":       {},
	"availability":   {},
	"location":       {},
	"city":           {},
	"state":          {},
	"category":       {},
	"subcategory":    {},
	"item_condition": {},
}

// ListingHandler groups listing lifecycle endpoints.
type ListingHandler struct {
	listingService *service.ListingService
	config         *config.Config
	logger         *zap.SugaredLogger
}

func NewListingHandler(listingService *service.ListingService, cfg *config.Config, logger *zap.SugaredLogger) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		config:         cfg,
		logger:         logger,
	}
}

// Create handles listing creation with up to 10 images
// POST /api/listings (multipart)
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCreateFormSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
			return
		}
		httputil.WriteBadRequest(w, "Invalid form data")
		return
	}

	req := model.CreateListingRequest{
		Title:         strings.TrimSpace(r.FormValue("title")),
		Description:   strings.TrimSpace(r.FormValue("description")),
		RentalPeriod:  model.RentalPeriod(r.FormValue("rentType")),
		Location:      strings.TrimSpace(r.FormValue("location")),
		City:          strings.TrimSpace(r.FormValue("city")),
		State:         strings.TrimSpace(r.FormValue("state")),
		Category:      strings.TrimSpace(r.FormValue("category")),
		Subcategory:   strings.TrimSpace(r.FormValue("subcategory")),
		ConditionTags: r.MultipartForm.Value["item_condition"],
	}

	if priceRaw := r.FormValue("price"); priceRaw != "" {
		price, err := strconv.ParseFloat(priceRaw, 64)
		if err != nil {
			httputil.WriteBadRequest(w, "price must be a number")
			return
		}
		req.Price = price
	}

	uploads := uploadsFromHeaders(r.MultipartForm.File["images"])

	listing, err := h.listingService.Create(r.Context(), ownerID, &req, uploads)
	if err != nil {
		h.writeListingError(w, err, "Failed to create listing")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, listing)
}

// GetAll enumerates every listing
// GET /api/listings/all
func (h *ListingHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listingService.GetAll(r.Context())
	if err != nil {
		h.writeListingError(w, err, "Failed to fetch listings")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listings)
}

// GetByID fetches one listing
// GET /api/listings/{id}
func (h *ListingHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	itemID, err := parseItemID(r)
	if err != nil {
		httputil.WriteNotFound(w, "Item not found")
		return
	}

	listing, err := h.listingService.GetByID(r.Context(), itemID)
	if err != nil {
		h.writeListingError(w, err, "Failed to fetch listing")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listing)
}

// Mine enumerates the authenticated account's listings
// GET /api/listings/mine
func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	listings, err := h.listingService.GetByOwner(r.Context(), ownerID)
	if err != nil {
		h.writeListingError(w, err, "Failed to fetch listings")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listings)
}

// Update applies a partial patch with an optional replacement image
// PUT /api/listings/update/{id} (multipart)
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	itemID, err := parseItemID(r)
	if err != nil {
		httputil.WriteNotFound(w, "Item not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(model.MaxImageSizeBytes)+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
			return
		}
		httputil.WriteBadRequest(w, "Invalid form data")
		return
	}

	patch, err := patchFromForm(r.MultipartForm)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var upload *service.Upload
	if headers := r.MultipartForm.File["image"]; len(headers) == 1 {
		u := uploadsFromHeaders(headers)
		upload = &u[0]
	} else if len(headers) > 1 {
		httputil.WriteBadRequestWithCode(w, model.CodeTooManyFiles, "At most one replacement image is allowed")
		return
	}

	listing, err := h.listingService.Update(r.Context(), ownerID, itemID, patch, upload)
	if err != nil {
		h.writeListingError(w, err, "Failed to update listing")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listing)
}

// Delete removes a listing and its images
// DELETE /api/listings/delete/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	itemID, err := parseItemID(r)
	if err != nil {
		httputil.WriteNotFound(w, "Item not found")
		return
	}

	if _, err := h.listingService.Delete(r.Context(), ownerID, itemID); err != nil {
		h.writeListingError(w, err, "Failed to delete listing")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Item deleted successfully",
	})
}

// writeListingError maps service errors onto the response envelope.
func (h *ListingHandler) writeListingError(w http.ResponseWriter, err error, generic string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrListingNotFound):
		httputil.WriteNotFound(w, "Item not found")
	case errors.Is(err, model.ErrNotOwner):
		httputil.WriteForbidden(w, "You do not own this item")
	case errors.Is(err, model.ErrTooManyFiles):
		httputil.WriteBadRequestWithCode(w, model.CodeTooManyFiles, fmt.Sprintf("At most %d images are allowed", model.MaxListingImages))
	case errors.Is(err, model.ErrFileTooLarge):
		httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Image exceeds 5MB limit")
	case errors.Is(err, model.ErrInvalidImageType):
		httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
	default:
		h.logger.Errorw("listing operation failed", "error", err)
		httputil.WriteInternalError(w, internalMessage(h.config, err, generic))
	}
}

// patchFromForm builds the allow-listed patch, rejecting unknown fields.
func patchFromForm(form *multipart.Form) (*model.ListingPatch, error) {
	for key := range form.Value {
		if _, ok := patchFormFields[key]; !ok {
			return nil, fmt.Errorf("%w: unknown field %q", model.ErrValidation, key)
		}
	}

	patch := &model.ListingPatch{}
	get := func(key string) *string {
		values, ok := form.Value[key]
		if !ok || len(values) == 0 {
			return nil
		}
		v := strings.TrimSpace(values[0])
		return &v
	}

	patch.Title = get("title")
	patch.Description = get("description")
	patch.Location = get("location")
	patch.City = get("city")
	patch.State = get("state")
	patch.Category = get("category")
	patch.Subcategory = get("subcategory")

	if raw := get("price"); raw != nil {
		price, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: price must be a number", model.ErrValidation)
		}
		patch.Price = &price
	}
	if raw := get("rentType"); raw != nil {
		period := model.RentalPeriod(*raw)
		patch.RentalPeriod = &period
	}
	if raw := get("availability"); raw != nil {
		avail, err := strconv.ParseBool(*raw)
		if err != nil {
			return nil, fmt.Errorf("%w: availability must be a boolean", model.ErrValidation)
		}
		patch.Availability = &avail
	}
	if tags, ok := form.Value["item_condition"]; ok {
		patch.ConditionTags = tags
	}

	return patch, nil
}

// uploadsFromHeaders adapts multipart file headers, preserving order.
func uploadsFromHeaders(headers []*multipart.FileHeader) []service.Upload {
	uploads := make([]service.Upload, len(headers))
	for i, header := range headers {
		header := header
		uploads[i] = service.Upload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Open: func() (io.ReadCloser, error) {
				return header.Open()
			},
		}
	}
	return uploads
}

func parseItemID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
