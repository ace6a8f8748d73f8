package service

import (
	"context"
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rentloop/internal/model"
	"rentloop/internal/repository"
)

// MediaStore is the blob store contract the listing service depends on.
type MediaStore interface {
	Store(ctx context.Context, key string, r io.Reader, declaredType string, size int64) (*model.MediaObject, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// KeyFunc generates a collision-resistant storage key for an upload.
type KeyFunc func(originalName string) string

// Upload is one file attached to a create or update call.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// ListingService orchestrates the listing lifecycle: validation, staged
// media uploads, record persistence and cascading cleanup.
type ListingService struct {
	listings repository.ListingRepository
	intents  repository.IntentRepository
	media    MediaStore
	newKey   KeyFunc
	node     *snowflake.Node
	logger   *zap.SugaredLogger
}

func NewListingService(
	listings repository.ListingRepository,
	intents repository.IntentRepository,
	media MediaStore,
	newKey KeyFunc,
	node *snowflake.Node,
	logger *zap.SugaredLogger,
) *ListingService {
	return &ListingService{
		listings: listings,
		intents:  intents,
		media:    media,
		newKey:   newKey,
		node:     node,
		logger:   logger,
	}
}

// Create validates the request, stages and uploads the files, then persists
// the record and commits the upload batch. Validation failures never touch
// storage. Every upload must complete before the repository write so the
// saved image refs always point at present objects.
func (s *ListingService) Create(ctx context.Context, ownerID uuid.UUID, req *model.CreateListingRequest, uploads []Upload) (*model.Listing, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(uploads) > model.MaxListingImages {
		return nil, model.ErrTooManyFiles
	}
	for _, up := range uploads {
		if up.Size > model.MaxImageSizeBytes {
			return nil, model.ErrFileTooLarge
		}
	}

	batchID := uuid.New()
	keys, err := s.storeBatch(ctx, batchID, uploads)
	if err != nil {
		return nil, err
	}

	listing := &model.Listing{
		ItemID:          s.node.Generate().Int64(),
		Title:           req.Title,
		Description:     req.Description,
		Price:           req.Price,
		SecurityDeposit: model.SecurityDeposit(req.Price),
		RentalPeriod:    req.RentalPeriod,
		Availability:    true,
		Location:        req.Location,
		City:            req.City,
		State:           req.State,
		OwnerID:         ownerID,
		Category:        req.Category,
		Subcategory:     req.Subcategory,
		ConditionTags:   req.ConditionTags,
		Images:          keys,
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		// Uploaded objects stay staged; the sweeper reclaims them.
		return nil, fmt.Errorf("failed to persist listing: %w", err)
	}

	if err := s.intents.Commit(ctx, batchID); err != nil {
		s.logger.Errorw("failed to commit upload batch", "batch_id", batchID, "item_id", listing.ItemID, "error", err)
	}

	return listing, nil
}

// GetByID fetches one listing.
func (s *ListingService) GetByID(ctx context.Context, itemID int64) (*model.Listing, error) {
	return s.listings.GetByID(ctx, itemID)
}

// GetAll enumerates every listing.
func (s *ListingService) GetAll(ctx context.Context) ([]model.Listing, error) {
	return s.listings.GetAll(ctx)
}

// GetByOwner enumerates the caller's listings.
func (s *ListingService) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Listing, error) {
	return s.listings.GetByOwner(ctx, ownerID)
}

// Update applies an allow-listed patch, optionally replacing the primary
// image with one uploaded file. Only the owner may update. The replaced
// object is orphaned rather than reconciled here; the record keeps the
// remaining refs untouched.
func (s *ListingService) Update(ctx context.Context, ownerID uuid.UUID, itemID int64, patch *model.ListingPatch, upload *Upload) (*model.Listing, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.listings.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, model.ErrNotOwner
	}

	if upload != nil {
		if upload.Size > model.MaxImageSizeBytes {
			return nil, model.ErrFileTooLarge
		}

		batchID := uuid.New()
		keys, err := s.storeBatch(ctx, batchID, []Upload{*upload})
		if err != nil {
			return nil, err
		}

		images := append([]string{}, existing.Images...)
		if len(images) > 0 {
			images[0] = keys[0]
		} else {
			images = keys
		}
		patch.Images = images

		updated, err := s.listings.Update(ctx, itemID, patch)
		if err != nil {
			return nil, err
		}
		if err := s.intents.Commit(ctx, batchID); err != nil {
			s.logger.Errorw("failed to commit upload batch", "batch_id", batchID, "item_id", itemID, "error", err)
		}
		return updated, nil
	}

	return s.listings.Update(ctx, itemID, patch)
}

// Delete removes the record, then cleans up its media best-effort: a
// missing object never blocks record deletion. Only the owner may delete.
func (s *ListingService) Delete(ctx context.Context, ownerID uuid.UUID, itemID int64) (*model.Listing, error) {
	existing, err := s.listings.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, model.ErrNotOwner
	}

	deleted, err := s.listings.Delete(ctx, itemID)
	if err != nil {
		return nil, err
	}

	keys := []string(deleted.Images)
	for _, key := range keys {
		if err := s.media.Delete(ctx, key); err != nil {
			s.logger.Warnw("failed to delete media object", "key", key, "item_id", itemID, "error", err)
		}
	}
	if err := s.intents.Remove(ctx, keys); err != nil {
		s.logger.Warnw("failed to remove upload intents", "item_id", itemID, "error", err)
	}

	return deleted, nil
}

// ServeImage streams raw media bytes by storage key.
func (s *ListingService) ServeImage(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return s.media.Open(ctx, key)
}

// storeBatch stages intents for the whole batch, then uploads every file
// concurrently, preserving the order of the input. On any failure it
// deletes whatever was written and returns the first error; the intent rows
// for anything missed are reclaimed by the sweeper.
func (s *ListingService) storeBatch(ctx context.Context, batchID uuid.UUID, uploads []Upload) ([]string, error) {
	if len(uploads) == 0 {
		return []string{}, nil
	}

	keys := make([]string, len(uploads))
	for i, up := range uploads {
		keys[i] = s.newKey(up.Name)
	}

	if err := s.intents.Stage(ctx, batchID, keys); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range uploads {
		i := i
		up := uploads[i]
		g.Go(func() error {
			f, err := up.Open()
			if err != nil {
				return fmt.Errorf("failed to open upload %q: %w", up.Name, err)
			}
			defer f.Close()

			if _, err := s.media.Store(gctx, keys[i], f, up.ContentType, up.Size); err != nil {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, key := range keys {
			if delErr := s.media.Delete(ctx, key); delErr != nil {
				s.logger.Warnw("failed to clean up staged object", "key", key, "error", delErr)
			}
		}
		if remErr := s.intents.Remove(ctx, keys); remErr != nil {
			s.logger.Warnw("failed to remove staged intents", "batch_id", batchID, "error", remErr)
		}
		return nil, err
	}

	return keys, nil
}
