package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentloop/internal/model"
)

// mockListingRepository implements repository.ListingRepository.
type mockListingRepository struct {
	createFn  func(ctx context.Context, listing *model.Listing) error
	getByIDFn func(ctx context.Context, itemID int64) (*model.Listing, error)
	updateFn  func(ctx context.Context, itemID int64, patch *model.ListingPatch) (*model.Listing, error)
	deleteFn  func(ctx context.Context, itemID int64) (*model.Listing, error)

	createCalls []*model.Listing
}

func (m *mockListingRepository) Create(ctx context.Context, l *model.Listing) error {
	m.createCalls = append(m.createCalls, l)
	if m.createFn != nil {
		return m.createFn(ctx, l)
	}
	return nil
}

func (m *mockListingRepository) GetByID(ctx context.Context, itemID int64) (*model.Listing, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, itemID)
	}
	return nil, model.ErrListingNotFound
}

func (m *mockListingRepository) GetAll(ctx context.Context) ([]model.Listing, error) {
	return []model.Listing{}, nil
}

func (m *mockListingRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Listing, error) {
	return []model.Listing{}, nil
}

func (m *mockListingRepository) Update(ctx context.Context, itemID int64, patch *model.ListingPatch) (*model.Listing, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, itemID, patch)
	}
	return nil, model.ErrListingNotFound
}

func (m *mockListingRepository) Delete(ctx context.Context, itemID int64) (*model.Listing, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, itemID)
	}
	return nil, model.ErrListingNotFound
}

// mockIntentRepository tracks staged and committed batches.
type mockIntentRepository struct {
	mu        sync.Mutex
	staged    map[string]uuid.UUID
	committed map[uuid.UUID]bool
	removed   []string
}

func newMockIntentRepository() *mockIntentRepository {
	return &mockIntentRepository{
		staged:    make(map[string]uuid.UUID),
		committed: make(map[uuid.UUID]bool),
	}
}

func (m *mockIntentRepository) Stage(ctx context.Context, batchID uuid.UUID, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.staged[key] = batchID
	}
	return nil
}

func (m *mockIntentRepository) Commit(ctx context.Context, batchID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed[batchID] = true
	return nil
}

func (m *mockIntentRepository) FindStaged(ctx context.Context, olderThan time.Time, limit int) ([]model.UploadIntent, error) {
	return nil, nil
}

func (m *mockIntentRepository) Remove(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, keys...)
	return nil
}

// mockMediaStore records stored and deleted keys.
type mockMediaStore struct {
	mu      sync.Mutex
	stored  map[string][]byte
	deleted []string

	storeErrFor map[string]error
}

func newMockMediaStore() *mockMediaStore {
	return &mockMediaStore{stored: make(map[string][]byte)}
}

func (m *mockMediaStore) Store(ctx context.Context, key string, r io.Reader, declaredType string, size int64) (*model.MediaObject, error) {
	if err := m.storeErrFor[key]; err != nil {
		return nil, err
	}
	data, _ := io.ReadAll(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[key] = data
	return &model.MediaObject{Key: key, ContentType: declaredType, Size: int64(len(data))}, nil
}

func (m *mockMediaStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.stored[key]
	if !ok {
		return nil, "", model.ErrMediaNotFound
	}
	return io.NopCloser(strings.NewReader(string(data))), "image/jpeg", nil
}

func (m *mockMediaStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.stored, key)
	return nil
}

// sequentialKeys yields deterministic keys key-0, key-1, ... in call order.
func sequentialKeys() KeyFunc {
	var mu sync.Mutex
	n := 0
	return func(originalName string) string {
		mu.Lock()
		defer mu.Unlock()
		key := fmt.Sprintf("key-%d.jpg", n)
		n++
		return key
	}
}

func newTestListingService(t *testing.T, listings *mockListingRepository, intents *mockIntentRepository, media *mockMediaStore) *ListingService {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewListingService(listings, intents, media, sequentialKeys(), node, zap.NewNop().Sugar())
}

func validCreateRequest() *model.CreateListingRequest {
	return &model.CreateListingRequest{
		Title:         "Drill",
		Description:   "Cordless drill, barely used",
		Price:         100,
		RentalPeriod:  model.RentalDaily,
		Location:      "5th Ave",
		City:          "Springfield",
		State:         "IL",
		Category:      "Tool",
		Subcategory:   "Power Tool",
		ConditionTags: []string{"good", "includes charger"},
	}
}

func fakeUploads(n int) []Upload {
	uploads := make([]Upload, n)
	for i := range uploads {
		body := fmt.Sprintf("image-bytes-%d", i)
		uploads[i] = Upload{
			Name:        fmt.Sprintf("photo-%d.jpg", i),
			ContentType: "image/jpeg",
			Size:        int64(len(body)),
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader(body)), nil
			},
		}
	}
	return uploads
}

func TestListingService_Create_DerivesFields(t *testing.T) {
	listings := &mockListingRepository{}
	intents := newMockIntentRepository()
	media := newMockMediaStore()
	svc := newTestListingService(t, listings, intents, media)

	ownerID := uuid.New()
	saved, err := svc.Create(context.Background(), ownerID, validCreateRequest(), fakeUploads(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if saved.SecurityDeposit != 20 {
		t.Errorf("security_deposit = %v, want 20", saved.SecurityDeposit)
	}
	if !saved.Availability {
		t.Error("availability should default to true at creation")
	}
	if saved.OwnerID != ownerID {
		t.Errorf("owner_id = %v, want %v", saved.OwnerID, ownerID)
	}
	if saved.ItemID == 0 {
		t.Error("item_id should be assigned")
	}
	if len(saved.Images) != 2 {
		t.Fatalf("images length = %d, want 2", len(saved.Images))
	}
}

func TestListingService_Create_PreservesImageOrder(t *testing.T) {
	for _, n := range []int{0, 1, 3, 10} {
		t.Run(fmt.Sprintf("%d images", n), func(t *testing.T) {
			listings := &mockListingRepository{}
			intents := newMockIntentRepository()
			media := newMockMediaStore()
			svc := newTestListingService(t, listings, intents, media)

			saved, err := svc.Create(context.Background(), uuid.New(), validCreateRequest(), fakeUploads(n))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(saved.Images) != n {
				t.Fatalf("images length = %d, want %d", len(saved.Images), n)
			}
			for i, key := range saved.Images {
				want := fmt.Sprintf("key-%d.jpg", i)
				if key != want {
					t.Errorf("images[%d] = %q, want %q", i, key, want)
				}
			}
			// Every referenced key must hold the matching upload's bytes.
			for i, key := range saved.Images {
				if string(media.stored[key]) != fmt.Sprintf("image-bytes-%d", i) {
					t.Errorf("object %q holds wrong bytes", key)
				}
			}
		})
	}
}

func TestListingService_Create_ValidationBeforeStorage(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.CreateListingRequest)
	}{
		{"missing title", func(r *model.CreateListingRequest) { r.Title = "" }},
		{"missing description", func(r *model.CreateListingRequest) { r.Description = "" }},
		{"zero price", func(r *model.CreateListingRequest) { r.Price = 0 }},
		{"negative price", func(r *model.CreateListingRequest) { r.Price = -5 }},
		{"bad rental period", func(r *model.CreateListingRequest) { r.RentalPeriod = "Hourly" }},
		{"missing city", func(r *model.CreateListingRequest) { r.City = "" }},
		{"missing category", func(r *model.CreateListingRequest) { r.Category = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listings := &mockListingRepository{}
			intents := newMockIntentRepository()
			media := newMockMediaStore()
			svc := newTestListingService(t, listings, intents, media)

			req := validCreateRequest()
			tt.mutate(req)

			_, err := svc.Create(context.Background(), uuid.New(), req, fakeUploads(1))
			if !errors.Is(err, model.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
			if len(media.stored) != 0 {
				t.Error("no bytes may be stored on validation failure")
			}
			if len(intents.staged) != 0 {
				t.Error("no intents may be staged on validation failure")
			}
			if len(listings.createCalls) != 0 {
				t.Error("repository must not be touched on validation failure")
			}
		})
	}
}

func TestListingService_Create_TooManyFiles(t *testing.T) {
	listings := &mockListingRepository{}
	intents := newMockIntentRepository()
	media := newMockMediaStore()
	svc := newTestListingService(t, listings, intents, media)

	_, err := svc.Create(context.Background(), uuid.New(), validCreateRequest(), fakeUploads(11))
	if !errors.Is(err, model.ErrTooManyFiles) {
		t.Errorf("error = %v, want ErrTooManyFiles", err)
	}
	if len(media.stored) != 0 {
		t.Error("no bytes may be stored when the file cap is exceeded")
	}
}

func TestListingService_Create_UploadFailureCleansBatch(t *testing.T) {
	listings := &mockListingRepository{}
	intents := newMockIntentRepository()
	media := newMockMediaStore()
	media.storeErrFor = map[string]error{"key-1.jpg": errors.New("disk full")}
	svc := newTestListingService(t, listings, intents, media)

	_, err := svc.Create(context.Background(), uuid.New(), validCreateRequest(), fakeUploads(3))
	if err == nil {
		t.Fatal("expected error")
	}

	if len(listings.createCalls) != 0 {
		t.Error("repository write must not happen when an upload fails")
	}
	// All three keys were attempted for cleanup, stored or not.
	if len(media.deleted) != 3 {
		t.Errorf("deleted %d objects, want 3", len(media.deleted))
	}
	if len(intents.removed) != 3 {
		t.Errorf("removed %d intents, want 3", len(intents.removed))
	}
}

func TestListingService_Create_RepositoryFailureLeavesStaged(t *testing.T) {
	listings := &mockListingRepository{
		createFn: func(ctx context.Context, l *model.Listing) error {
			return errors.New("insert failed")
		},
	}
	intents := newMockIntentRepository()
	media := newMockMediaStore()
	svc := newTestListingService(t, listings, intents, media)

	_, err := svc.Create(context.Background(), uuid.New(), validCreateRequest(), fakeUploads(2))
	if err == nil {
		t.Fatal("expected error")
	}

	// Objects stay behind as staged orphans for the sweeper, never committed.
	if len(intents.staged) != 2 {
		t.Errorf("staged %d intents, want 2", len(intents.staged))
	}
	if len(intents.committed) != 0 {
		t.Error("batch must not be committed when persistence fails")
	}
}

func TestListingService_Create_CommitsBatch(t *testing.T) {
	listings := &mockListingRepository{}
	intents := newMockIntentRepository()
	media := newMockMediaStore()
	svc := newTestListingService(t, listings, intents, media)

	_, err := svc.Create(context.Background(), uuid.New(), validCreateRequest(), fakeUploads(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents.committed) != 1 {
		t.Errorf("committed %d batches, want 1", len(intents.committed))
	}
}

func TestListingService_Delete_CleansMedia(t *testing.T) {
	owner := uuid.New()
	record := &model.Listing{
		ItemID:  42,
		OwnerID: owner,
		Images:  []string{"a.jpg", "b.jpg"},
	}
	listings := &mockListingRepository{
		getByIDFn: func(ctx context.Context, itemID int64) (*model.Listing, error) {
			if itemID != 42 {
				return nil, model.ErrListingNotFound
			}
			return record, nil
		},
		deleteFn: func(ctx context.Context, itemID int64) (*model.Listing, error) {
			if itemID != 42 {
				return nil, model.ErrListingNotFound
			}
			return record, nil
		},
	}
	intents := newMockIntentRepository()
	media := newMockMediaStore()
	svc := newTestListingService(t, listings, intents, media)

	deleted, err := svc.Delete(context.Background(), owner, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted.ItemID != 42 {
		t.Errorf("item_id = %d, want 42", deleted.ItemID)
	}

	if len(media.deleted) != 2 {
		t.Fatalf("deleted %d objects, want 2", len(media.deleted))
	}
	if len(intents.removed) != 2 {
		t.Errorf("removed %d intents, want 2", len(intents.removed))
	}
}

func TestListingService_Delete_NotFound(t *testing.T) {
	listings := &mockListingRepository{}
	svc := newTestListingService(t, listings, newMockIntentRepository(), newMockMediaStore())

	_, err := svc.Delete(context.Background(), uuid.New(), 999)
	if !errors.Is(err, model.ErrListingNotFound) {
		t.Errorf("error = %v, want ErrListingNotFound", err)
	}
}

func TestListingService_Delete_ForbiddenForNonOwner(t *testing.T) {
	owner := uuid.New()
	listings := &mockListingRepository{
		getByIDFn: func(ctx context.Context, itemID int64) (*model.Listing, error) {
			return &model.Listing{ItemID: 42, OwnerID: owner, Images: []string{"a.jpg"}}, nil
		},
		deleteFn: func(ctx context.Context, itemID int64) (*model.Listing, error) {
			t.Error("repository delete must not run for a non-owner")
			return nil, model.ErrListingNotFound
		},
	}
	media := newMockMediaStore()
	svc := newTestListingService(t, listings, newMockIntentRepository(), media)

	_, err := svc.Delete(context.Background(), uuid.New(), 42)
	if !errors.Is(err, model.ErrNotOwner) {
		t.Errorf("error = %v, want ErrNotOwner", err)
	}
	if len(media.deleted) != 0 {
		t.Error("no media may be deleted for a non-owner")
	}
}

func TestListingService_Update_ReplacesPrimaryImage(t *testing.T) {
	owner := uuid.New()
	existing := &model.Listing{
		ItemID:  7,
		OwnerID: owner,
		Images:  []string{"old-0.jpg", "old-1.jpg"},
	}
	var gotPatch *model.ListingPatch
	listings := &mockListingRepository{
		getByIDFn: func(ctx context.Context, itemID int64) (*model.Listing, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, itemID int64, patch *model.ListingPatch) (*model.Listing, error) {
			gotPatch = patch
			updated := *existing
			updated.Images = patch.Images
			return &updated, nil
		},
	}
	intents := newMockIntentRepository()
	media := newMockMediaStore()
	svc := newTestListingService(t, listings, intents, media)

	uploads := fakeUploads(1)
	updated, err := svc.Update(context.Background(), owner, 7, &model.ListingPatch{}, &uploads[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPatch == nil || len(gotPatch.Images) != 2 {
		t.Fatalf("patch images = %v, want 2 entries", gotPatch)
	}
	if gotPatch.Images[0] != "key-0.jpg" {
		t.Errorf("primary image = %q, want the new key", gotPatch.Images[0])
	}
	if gotPatch.Images[1] != "old-1.jpg" {
		t.Errorf("secondary image = %q, want kept", gotPatch.Images[1])
	}
	if len(updated.Images) != 2 {
		t.Errorf("updated images length = %d, want 2", len(updated.Images))
	}
	if len(intents.committed) != 1 {
		t.Error("replacement upload batch must be committed")
	}
}

func TestListingService_Update_NoFilePassesPatchThrough(t *testing.T) {
	title := "New title"
	owner := uuid.New()
	existing := &model.Listing{ItemID: 7, OwnerID: owner, Title: "Old"}
	listings := &mockListingRepository{
		getByIDFn: func(ctx context.Context, itemID int64) (*model.Listing, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, itemID int64, patch *model.ListingPatch) (*model.Listing, error) {
			updated := *existing
			updated.Title = *patch.Title
			return &updated, nil
		},
	}
	svc := newTestListingService(t, listings, newMockIntentRepository(), newMockMediaStore())

	updated, err := svc.Update(context.Background(), owner, 7, &model.ListingPatch{Title: &title}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Title != "New title" {
		t.Errorf("title = %q, want %q", updated.Title, "New title")
	}
}

func TestListingService_Update_NotFound(t *testing.T) {
	svc := newTestListingService(t, &mockListingRepository{}, newMockIntentRepository(), newMockMediaStore())

	title := "x"
	_, err := svc.Update(context.Background(), uuid.New(), 999, &model.ListingPatch{Title: &title}, nil)
	if !errors.Is(err, model.ErrListingNotFound) {
		t.Errorf("error = %v, want ErrListingNotFound", err)
	}
}

func TestListingService_Update_InvalidPatch(t *testing.T) {
	svc := newTestListingService(t, &mockListingRepository{}, newMockIntentRepository(), newMockMediaStore())

	bad := -1.0
	_, err := svc.Update(context.Background(), uuid.New(), 7, &model.ListingPatch{Price: &bad}, nil)
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestListingService_Update_ForbiddenForNonOwner(t *testing.T) {
	owner := uuid.New()
	listings := &mockListingRepository{
		getByIDFn: func(ctx context.Context, itemID int64) (*model.Listing, error) {
			return &model.Listing{ItemID: 7, OwnerID: owner}, nil
		},
		updateFn: func(ctx context.Context, itemID int64, patch *model.ListingPatch) (*model.Listing, error) {
			t.Error("repository update must not run for a non-owner")
			return nil, model.ErrListingNotFound
		},
	}
	svc := newTestListingService(t, listings, newMockIntentRepository(), newMockMediaStore())

	title := "hijacked"
	_, err := svc.Update(context.Background(), uuid.New(), 7, &model.ListingPatch{Title: &title}, nil)
	if !errors.Is(err, model.ErrNotOwner) {
		t.Errorf("error = %v, want ErrNotOwner", err)
	}
}
