package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"rentloop/internal/model"
)

const listingColumns = `item_id, title, description, price, security_deposit, rental_period,
	       availability, location, city, state, owner_id, category, subcategory,
	       condition_tags, images, created_at, updated_at`

type listingRepository struct {
	db *sqlx.DB
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db *sqlx.DB) ListingRepository {
	return &listingRepository{db: db}
}

// Create inserts a new listing record. The caller is responsible for having
// assigned a unique item id and derived fields.
func (r *listingRepository) Create(ctx context.Context, l *model.Listing) error {
	if !l.RentalPeriod.Valid() {
		return fmt.Errorf("%w: invalid rental period %q", model.ErrValidation, l.RentalPeriod)
	}

	query := `
		INSERT INTO listings (item_id, title, description, price, security_deposit, rental_period,
		                      availability, location, city, state, owner_id, category, subcategory,
		                      condition_tags, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		l.ItemID,
		l.Title,
		l.Description,
		l.Price,
		l.SecurityDeposit,
		l.RentalPeriod,
		l.Availability,
		l.Location,
		l.City,
		l.State,
		l.OwnerID,
		l.Category,
		l.Subcategory,
		pq.Array([]string(l.ConditionTags)),
		pq.Array([]string(l.Images)),
	)

	if err := row.Scan(&l.CreatedAt, &l.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}

	return nil
}

// GetByID retrieves a single listing by item id.
func (r *listingRepository) GetByID(ctx context.Context, itemID int64) (*model.Listing, error) {
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE item_id = $1`, listingColumns)

	var l model.Listing
	err := r.db.GetContext(ctx, &l, query, itemID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return &l, nil
}

// GetAll enumerates every listing, newest first. An empty result is not an error.
func (r *listingRepository) GetAll(ctx context.Context) ([]model.Listing, error) {
	query := fmt.Sprintf(`SELECT %s FROM listings ORDER BY created_at DESC`, listingColumns)

	listings := []model.Listing{}
	if err := r.db.SelectContext(ctx, &listings, query); err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}

	return listings, nil
}

// GetByOwner enumerates the listings created by one account.
func (r *listingRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Listing, error) {
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE owner_id = $1 ORDER BY created_at DESC`, listingColumns)

	listings := []model.Listing{}
	if err := r.db.SelectContext(ctx, &listings, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list listings by owner: %w", err)
	}

	return listings, nil
}

// Update applies a partial patch and returns the updated record.
// Only fields present in the patch appear in the SET clause.
func (r *listingRepository) Update(ctx context.Context, itemID int64, patch *model.ListingPatch) (*model.Listing, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return r.GetByID(ctx, itemID)
	}

	set := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.RentalPeriod != nil {
		add("rental_period", *patch.RentalPeriod)
	}
	if patch.Availability != nil {
		add("availability", *patch.Availability)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.City != nil {
		add("city", *patch.City)
	}
	if patch.State != nil {
		add("state", *patch.State)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Subcategory != nil {
		add("subcategory", *patch.Subcategory)
	}
	if patch.ConditionTags != nil {
		add("condition_tags", pq.Array(patch.ConditionTags))
	}
	if patch.Images != nil {
		add("images", pq.Array(patch.Images))
	}

	set = append(set, "updated_at = NOW()")
	args = append(args, itemID)

	query := fmt.Sprintf(`
		UPDATE listings SET %s
		WHERE item_id = $%d
		RETURNING %s
	`, strings.Join(set, ", "), len(args), listingColumns)

	var l model.Listing
	err := r.db.GetContext(ctx, &l, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	return &l, nil
}

// Delete removes the record and returns its final snapshot.
func (r *listingRepository) Delete(ctx context.Context, itemID int64) (*model.Listing, error) {
	query := fmt.Sprintf(`DELETE FROM listings WHERE item_id = $1 RETURNING %s`, listingColumns)

	var l model.Listing
	err := r.db.GetContext(ctx, &l, query, itemID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to delete listing: %w", err)
	}

	return &l, nil
}
