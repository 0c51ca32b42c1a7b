package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/auth"
	"recipe-share-backend/internal/models"
	"recipe-share-backend/internal/repository"
	"recipe-share-backend/internal/services"
	"recipe-share-backend/internal/storage"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nhandler-image")

const testMaxImageBytes = 1 << 20

// flakyBlobs fails uploads while failPuts is set
type flakyBlobs struct {
	*storage.MemoryStore
	failPuts atomic.Bool
}

func (b *flakyBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if b.failPuts.Load() {
		return errors.New("bucket unavailable")
	}
	return b.MemoryStore.Put(ctx, key, data, contentType)
}

type testServer struct {
	*httptest.Server
	blobs      *flakyBlobs
	categories *repository.CategoryRepository
	hub        *services.WSHub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := repository.NewMemoryStore()
	blobs := &flakyBlobs{MemoryStore: storage.NewMemoryStore()}
	pipeline := storage.NewPipeline(blobs, storage.WithRandomSuffix(true))

	users := repository.NewUserRepository(store)
	recipes := repository.NewRecipeRepository(store)
	categories := repository.NewCategoryRepository(store)

	gateway := auth.NewGateway(
		store,
		users,
		auth.NewTokenService("test-secret", time.Hour),
		auth.NewPasswordServiceWithCost(bcrypt.MinCost),
		auth.NewMemorySessions(),
	)
	hub := services.NewWSHub()
	gateway.Subscribe(hub)

	const maxBytes = testMaxImageBytes
	router := NewRouter(API{
		Auth:       NewAuthHandler(gateway),
		Recipes:    NewRecipeHandler(services.NewRecipeService(recipes, users, categories, pipeline, gateway, hub), maxBytes),
		Categories: NewCategoryHandler(services.NewCatalogService(categories, recipes, users)),
		Profile:    NewProfileHandler(services.NewProfileService(users, pipeline, gateway), maxBytes),
		WebSocket:  NewWebSocketHandler(hub, gateway),
	}, gateway)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, blobs: blobs, categories: categories, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) upload(t *testing.T, path, token string, fields map[string]string, image []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "dish.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) register(t *testing.T, email, username string) auth.Session {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Email:    email,
		Password: "secret1",
		Username: username,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[auth.Session](t, resp)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	session := s.register(t, "cook@example.com", "cook")
	require.NotEmpty(t, session.Token)

	resp := s.do(t, http.MethodGet, "/api/v1/auth/me", session.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cook", decode[models.User](t, resp).Username)

	resp = s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Email: "cook@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "email-already-in-use", decode[ErrorResponse](t, resp).Code)

	resp = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "cook@example.com", Password: "bad-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid-credential", decode[ErrorResponse](t, resp).Code)

	resp = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "cook@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decode[auth.Session](t, resp)

	resp = s.do(t, http.MethodPost, "/api/v1/auth/logout", login.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "session-ended", decode[ErrorResponse](t, resp).Code)

	resp = s.do(t, http.MethodGet, "/api/v1/auth/me", session.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/recipes"},
		{http.MethodPut, "/api/v1/recipes/recipe_1"},
		{http.MethodDelete, "/api/v1/recipes/recipe_1"},
		{http.MethodGet, "/api/v1/me/recipes"},
		{http.MethodGet, "/api/v1/me/profile"},
	} {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			resp := s.do(t, route.method, route.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "unauthenticated", decode[ErrorResponse](t, resp).Code)
		})
	}
}

func TestRecipeRoutes(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner@example.com", "owner")
	other := s.register(t, "other@example.com", "other")

	input := services.RecipeInput{Title: "Soup", Ingredients: []string{"water"}, Categories: []string{"dinner"}}
	resp := s.do(t, http.MethodPost, "/api/v1/recipes", owner.Token, input)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	recipe := decode[models.Recipe](t, resp)
	assert.Equal(t, owner.User.ID, recipe.CreatedBy)

	resp = s.do(t, http.MethodPost, "/api/v1/recipes", owner.Token, services.RecipeInput{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid-title", decode[ErrorResponse](t, resp).Code)

	input.Title = "Stew"
	resp = s.do(t, http.MethodPut, "/api/v1/recipes/"+recipe.ID, other.Token, input)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/v1/recipes/"+recipe.ID, owner.Token, input)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Stew", decode[models.Recipe](t, resp).Title)

	resp = s.upload(t, "/api/v1/recipes/"+recipe.ID+"/image", owner.Token, nil, pngBytes)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	withImage := decode[models.Recipe](t, resp)
	assert.True(t, strings.HasPrefix(withImage.Image, storage.MemoryBaseURL+"/recipe_images/"+recipe.ID+"/"))

	resp = s.do(t, http.MethodGet, "/api/v1/recipes/"+recipe.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[models.RecipeDetail](t, resp)
	assert.Equal(t, "owner", detail.AuthorUsername)

	resp = s.do(t, http.MethodGet, "/api/v1/categories/dinner/recipes", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[RecipesResponse](t, resp).Recipes, 1)

	resp = s.do(t, http.MethodGet, "/api/v1/me/recipes", other.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[RecipesResponse](t, resp).Recipes)

	resp = s.do(t, http.MethodDelete, "/api/v1/recipes/"+recipe.ID, owner.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/recipes/"+recipe.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not-found", decode[ErrorResponse](t, resp).Code)
}

func TestCreateRecipeMultipart(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner@example.com", "owner")

	resp := s.upload(t, "/api/v1/recipes", owner.Token, map[string]string{
		"recipe": `{"title":"Pie","categories":["desserts"]}`,
	}, pngBytes)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	recipe := decode[models.Recipe](t, resp)
	assert.NotEmpty(t, recipe.Image)
	assert.False(t, recipe.ImagePending)
	assert.Equal(t, 1, s.blobs.Len())

	// a failed upload leaves the recipe saved but pending
	s.blobs.failPuts.Store(true)
	resp = s.upload(t, "/api/v1/recipes", owner.Token, map[string]string{
		"recipe": `{"title":"Tart"}`,
	}, pngBytes)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, true, body["imagePending"])
	assert.NotEmpty(t, body["recipe_id"])
	s.blobs.failPuts.Store(false)

	resp = s.do(t, http.MethodGet, "/api/v1/me/recipes/pending-image", owner.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pending := decode[RecipesResponse](t, resp).Recipes
	require.Len(t, pending, 1)
	assert.Equal(t, "Tart", pending[0].Title)

	resp = s.upload(t, "/api/v1/recipes", owner.Token, map[string]string{"recipe": "not json"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateRecipeRejectsBadImageBeforeSaving(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner@example.com", "owner")

	tests := []struct {
		name  string
		image []byte
	}{
		{"empty", []byte{}},
		{"oversized", bytes.Repeat([]byte{0xff}, testMaxImageBytes+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.upload(t, "/api/v1/recipes", owner.Token, map[string]string{
				"recipe": `{"title":"Tart"}`,
			}, tt.image)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[map[string]any](t, resp)
			assert.Equal(t, "invalid-image", body["code"])
			assert.NotContains(t, body, "recipe_id")
		})
	}

	resp := s.do(t, http.MethodGet, "/api/v1/me/recipes", owner.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[RecipesResponse](t, resp).Recipes)
	assert.Zero(t, s.blobs.Len())
}

func TestPartialRecipeUpdate(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner@example.com", "owner")

	input := services.RecipeInput{
		Title:       "Soup",
		Description: "Hot",
		Ingredients: []string{"water", "salt"},
		Categories:  []string{"dinner"},
	}
	resp := s.do(t, http.MethodPost, "/api/v1/recipes", owner.Token, input)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	recipe := decode[models.Recipe](t, resp)

	resp = s.do(t, http.MethodPut, "/api/v1/recipes/"+recipe.ID, owner.Token, map[string]any{"title": "Broth"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Recipe](t, resp)
	assert.Equal(t, "Broth", updated.Title)
	assert.Equal(t, "Hot", updated.Description)
	assert.Equal(t, []string{"water", "salt"}, updated.Ingredients)
	assert.Equal(t, []string{"dinner"}, updated.Categories)
}

func TestCategoryAndHomeRoutes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.categories.Put(ctx, &models.Category{ID: "dinner", Name: "Dinner"}))
	require.NoError(t, s.categories.Put(ctx, &models.Category{ID: "breakfast", Name: "Breakfast"}))

	resp := s.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	categories := decode[CategoriesResponse](t, resp).Categories
	require.Len(t, categories, 2)
	assert.Equal(t, "breakfast", categories[0].ID)

	resp = s.do(t, http.MethodGet, "/api/v1/categories/dinner", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dinner", decode[models.Category](t, resp).Name)

	resp = s.do(t, http.MethodGet, "/api/v1/categories/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/home", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decode[services.HomeFeed](t, resp).Profile)

	session := s.register(t, "cook@example.com", "cook")
	resp = s.do(t, http.MethodGet, "/api/v1/home", session.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	feed := decode[services.HomeFeed](t, resp)
	require.NotNil(t, feed.Profile)
	assert.Equal(t, "cook", feed.Profile.Username)
}

func TestProfileRoutes(t *testing.T) {
	s := newTestServer(t)
	session := s.register(t, "cook@example.com", "cook")

	resp := s.do(t, http.MethodPatch, "/api/v1/me/profile", session.Token, map[string]string{"location": "Oslo"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decode[models.User](t, resp)
	assert.Equal(t, "Oslo", user.Location)
	assert.Equal(t, "cook", user.Username)

	resp = s.do(t, http.MethodPatch, "/api/v1/me/profile", session.Token, map[string]string{"username": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.upload(t, "/api/v1/me/profile/image", session.Token, nil, pngBytes)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	change := decode[services.ImageChange](t, resp)
	assert.NotEmpty(t, change.User.ProfileImageURL)

	resp = s.do(t, http.MethodGet, "/api/v1/me/profile", session.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, change.User.ProfileImageURL, decode[models.User](t, resp).ProfileImageURL)

	resp = s.upload(t, "/api/v1/me/profile/image", session.Token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketReceivesEvents(t *testing.T) {
	s := newTestServer(t)
	session := s.register(t, "cook@example.com", "cook")
	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+session.Token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.IsOnline(session.User.ID) }, 2*time.Second, 10*time.Millisecond)

	resp = s.do(t, http.MethodPost, "/api/v1/recipes", session.Token, services.RecipeInput{Title: "Soup"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Recipe](t, resp)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event services.Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, services.EventRecipeSaved, event.Type)
	assert.Equal(t, created.ID, event.RecipeID)

	// signing out another session leaves this socket open
	resp = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "cook@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	other := decode[auth.Session](t, resp)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &event))
	require.Equal(t, services.EventSessionChanged, event.Type)
	assert.Equal(t, models.SignedIn, event.Session.Kind)

	resp = s.do(t, http.MethodPost, "/api/v1/auth/logout", other.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, models.SignedOut, event.Session.Kind)
	assert.True(t, s.hub.IsOnline(session.User.ID))

	// signing out the socket's own session drops it
	resp = s.do(t, http.MethodPost, "/api/v1/auth/logout", session.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, services.EventSessionChanged, event.Type)
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperror.Auth("x", "x"), http.StatusUnauthorized},
		{apperror.Validation("title", "x"), http.StatusBadRequest},
		{apperror.NotFound("recipes", "r"), http.StatusNotFound},
		{apperror.PermissionDenied("x"), http.StatusForbidden},
		{apperror.Conflict("recipes", "r"), http.StatusConflict},
		{apperror.Upload("x", errors.New("y")), http.StatusBadGateway},
		{apperror.Store("x", errors.New("y")), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", apperror.NotFound("users", "u")), http.StatusNotFound},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
