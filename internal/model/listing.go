package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SecurityDepositRate is the fraction of price charged as deposit,
// fixed at creation time.
const SecurityDepositRate = 0.2

// RentalPeriod is the billing unit for a listing price.
type RentalPeriod string

const (
	RentalDaily   RentalPeriod = "Daily"
	RentalWeekly  RentalPeriod = "Weekly"
	RentalMonthly RentalPeriod = "Monthly"
)

// Valid reports whether p is one of the fixed enumeration values.
func (p RentalPeriod) Valid() bool {
	switch p {
	case RentalDaily, RentalWeekly, RentalMonthly:
		return true
	}
	return false
}

// Listing represents a rentable item record owned by an Account.
type Listing struct {
	// ItemID serializes as a string: snowflake ids overflow the 53-bit
	// integer precision of JSON numbers.
	ItemID          int64          `db:"item_id" json:"item_id,string"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	Price           float64        `db:"price" json:"price"`
	SecurityDeposit float64        `db:"security_deposit" json:"security_deposit"`
	RentalPeriod    RentalPeriod   `db:"rental_period" json:"rental_period"`
	Availability    bool           `db:"availability" json:"availability"`
	Location        string         `db:"location" json:"location"`
	City            string         `db:"city" json:"city"`
	State           string         `db:"state" json:"state"`
	OwnerID         uuid.UUID      `db:"owner_id" json:"owner_id"`
	Category        string         `db:"category" json:"category"`
	Subcategory     string         `db:"subcategory" json:"subcategory"`
	ConditionTags   pq.StringArray `db:"condition_tags" json:"condition_tags"`
	Images          pq.StringArray `db:"images" json:"images"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// CreateListingRequest carries the validated form fields of a create call.
// Deposit and availability are always derived server-side.
type CreateListingRequest struct {
	Title         string
	Description   string
	Price         float64
	RentalPeriod  RentalPeriod
	Location      string
	City          string
	State         string
	Category      string
	Subcategory   string
	ConditionTags []string
}

// Validate checks required fields before any storage is touched.
func (r *CreateListingRequest) Validate() error {
	required := map[string]string{
		"title":       r.Title,
		"description": r.Description,
		"location":    r.Location,
		"city":        r.City,
		"state":       r.State,
		"category":    r.Category,
		"subcategory": r.Subcategory,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, field)
		}
	}
	if r.Price <= 0 {
		return fmt.Errorf("%w: price must be a positive number", ErrValidation)
	}
	if !r.RentalPeriod.Valid() {
		return fmt.Errorf("%w: rental_period must be one of Daily, Weekly, Monthly", ErrValidation)
	}
	return nil
}

// ListingPatch is the allow-listed partial update for a listing.
// Nil fields are left untouched. Unknown request fields are rejected
// before a patch is built, never silently persisted.
type ListingPatch struct {
	Title         *string
	Description   *string
	Price         *float64
	RentalPeriod  *RentalPeriod
	Availability  *bool
	Location      *string
	City          *string
	State         *string
	Category      *string
	Subcategory   *string
	ConditionTags []string
	Images        []string
}

// Empty reports whether the patch would change nothing.
func (p *ListingPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Price == nil &&
		p.RentalPeriod == nil && p.Availability == nil && p.Location == nil &&
		p.City == nil && p.State == nil && p.Category == nil &&
		p.Subcategory == nil && p.ConditionTags == nil && p.Images == nil
}

// Validate checks the fields that are present.
func (p *ListingPatch) Validate() error {
	if p.Price != nil && *p.Price <= 0 {
		return fmt.Errorf("%w: price must be a positive number", ErrValidation)
	}
	if p.RentalPeriod != nil && !p.RentalPeriod.Valid() {
		return fmt.Errorf("%w: rental_period must be one of Daily, Weekly, Monthly", ErrValidation)
	}
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"title", p.Title},
		{"description", p.Description},
		{"location", p.Location},
		{"city", p.City},
		{"state", p.State},
		{"category", p.Category},
		{"subcategory", p.Subcategory},
	} {
		if field.value != nil && *field.value == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrValidation, field.name)
		}
	}
	return nil
}

// SecurityDeposit derives the deposit from price: 20%, rounded to cents.
func SecurityDeposit(price float64) float64 {
	return math.Round(price*SecurityDepositRate*100) / 100
}

var (
	// ErrValidation marks malformed or missing input, caught before storage.
	ErrValidation = errors.New("validation failed")

	// ErrListingNotFound is returned when an item id resolves to no record
	ErrListingNotFound = errors.New("listing not found")

	// ErrNotOwner is returned when an account tries to modify a listing it
	// does not own.
	ErrNotOwner = errors.New("not the listing owner")
)
