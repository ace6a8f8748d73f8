package model

import (
	"errors"
	"time"
)

const (
	// MaxImageSizeBytes caps a single uploaded image.
	MaxImageSizeBytes = 5 * 1024 * 1024

	// MaxListingImages caps how many images one listing may carry.
	MaxListingImages = 10

	// ImageFolder is the key prefix for listing images in the bucket.
	ImageFolder = "listings"
)

// Supported image content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
	ContentTypeWebP: {},
}

// IsAllowedImageType reports if the provided content type is supported
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

// MediaObject is a stored binary blob referenced by exactly one listing.
type MediaObject struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Upload intent states. Every staged object either becomes committed when
// its listing record persists, or is reclaimed by the orphan sweeper.
const (
	IntentStaged    = "staged"
	IntentCommitted = "committed"
)

// UploadIntent is one row of the media intent log: a staged -> committed
// state transition per uploaded object, keyed by storage name.
type UploadIntent struct {
	Key       string    `db:"key" json:"key"`
	BatchID   string    `db:"batch_id" json:"batch_id"`
	State     string    `db:"state" json:"state"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Error codes for HTTP responses
const (
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidImageType = "INVALID_IMAGE_TYPE"
	CodeTooManyFiles     = "TOO_MANY_FILES"
)

// Domain errors for media operations
var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidImageType = errors.New("invalid image type")
	ErrTooManyFiles     = errors.New("too many files")
	ErrMediaNotFound    = errors.New("media object not found")
)
