package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/auth"
	"recipe-share-backend/internal/models"
	"recipe-share-backend/internal/repository"
	"recipe-share-backend/internal/storage"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nrecipe-image")

func testImage() storage.ImageRef {
	return storage.BytesImage{Filename: "dish.png", Data: pngBytes}
}

// flakyStore fails Update calls on one collection while failUpdates is set
type flakyStore struct {
	*repository.MemoryStore
	mu          sync.Mutex
	failUpdates string
}

func (f *flakyStore) failUpdatesOn(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpdates = collection
}

func (f *flakyStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	f.mu.Lock()
	fail := f.failUpdates == collection
	f.mu.Unlock()
	if fail {
		return apperror.Store("failed to update document", errors.New("connection reset"))
	}
	return f.MemoryStore.Update(ctx, collection, id, fields)
}

// flakyUploader wraps the pipeline and fails uploads or deletes on demand
type flakyUploader struct {
	*storage.Pipeline
	failUpload bool
	failDelete bool
}

func (f *flakyUploader) UploadBlob(ctx context.Context, namespace, owner string, image storage.ImageRef) (string, error) {
	if f.failUpload {
		return "", apperror.Upload("failed to upload image", errors.New("network down"))
	}
	return f.Pipeline.UploadBlob(ctx, namespace, owner, image)
}

func (f *flakyUploader) DeleteBlob(ctx context.Context, url string) error {
	if f.failDelete {
		return apperror.Upload("failed to delete image", errors.New("network down"))
	}
	return f.Pipeline.DeleteBlob(ctx, url)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]Event
}

func (r *recordingPublisher) Publish(userID string, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string][]Event{}
	}
	r.events[userID] = append(r.events[userID], event)
}

func (r *recordingPublisher) types(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events[userID] {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	store      *flakyStore
	blobs      *storage.MemoryStore
	uploader   *flakyUploader
	gateway    *auth.Gateway
	users      *repository.UserRepository
	recipes    *RecipeService
	profiles   *ProfileService
	catalog    *CatalogService
	categories *repository.CategoryRepository
	events     *recordingPublisher
}

func ticking(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mem := repository.NewMemoryStore()
	mem.SetClock(ticking(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
	store := &flakyStore{MemoryStore: mem}

	blobs := storage.NewMemoryStore()
	uploader := &flakyUploader{
		Pipeline: storage.NewPipeline(blobs, storage.WithClock(ticking(time.UnixMilli(1700000000000), time.Millisecond))),
	}

	users := repository.NewUserRepository(store)
	recipeRepo := repository.NewRecipeRepository(store)
	categoryRepo := repository.NewCategoryRepository(store)

	gateway := auth.NewGateway(
		store,
		users,
		auth.NewTokenService("test-secret", time.Hour),
		auth.NewPasswordServiceWithCost(bcrypt.MinCost),
		auth.NewMemorySessions(),
	)
	events := &recordingPublisher{}

	return &harness{
		store:      store,
		blobs:      blobs,
		uploader:   uploader,
		gateway:    gateway,
		users:      users,
		recipes:    NewRecipeService(recipeRepo, users, categoryRepo, uploader, gateway, events),
		profiles:   NewProfileService(users, uploader, gateway),
		catalog:    NewCatalogService(categoryRepo, recipeRepo, users),
		categories: categoryRepo,
		events:     events,
	}
}

// signUp registers a user and returns a context carrying their session
func (h *harness) signUp(t *testing.T, email, username string) (context.Context, *models.User) {
	t.Helper()
	session, err := h.gateway.Register(context.Background(), email, "secret1", username, "", "")
	require.NoError(t, err)
	return auth.WithToken(context.Background(), session.Token), session.User
}

func (h *harness) seedCategories(t *testing.T, categories ...*models.Category) {
	t.Helper()
	for _, c := range categories {
		require.NoError(t, h.categories.Put(context.Background(), c))
	}
}
