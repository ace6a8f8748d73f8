package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rentloop/internal/model"
)

type AccountRepository interface {
	// Insert persists a new account. Uniqueness of username and email is
	// enforced by the storage layer, not by a check-then-insert.
	Insert(ctx context.Context, account *model.Account) error
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (*model.Account, error)
}

type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	GetByID(ctx context.Context, itemID int64) (*model.Listing, error)
	GetAll(ctx context.Context) ([]model.Listing, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Listing, error)
	Update(ctx context.Context, itemID int64, patch *model.ListingPatch) (*model.Listing, error)
	// Delete removes the record and returns its final snapshot so the
	// service can clean up the media references.
	Delete(ctx context.Context, itemID int64) (*model.Listing, error)
}

type IntentRepository interface {
	// Stage records upload intents for a batch before any bytes are written.
	Stage(ctx context.Context, batchID uuid.UUID, keys []string) error
	// Commit flips every intent in the batch to committed.
	Commit(ctx context.Context, batchID uuid.UUID) error
	// FindStaged returns staged intents older than the cutoff, for the sweeper.
	FindStaged(ctx context.Context, olderThan time.Time, limit int) ([]model.UploadIntent, error)
	// Remove deletes intent rows by key, regardless of state.
	Remove(ctx context.Context, keys []string) error
}
