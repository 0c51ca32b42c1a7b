package handlers

import (
	"net/http"

	"recipe-share-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// API groups the HTTP handlers mounted by NewRouter
type API struct {
	Auth       *AuthHandler
	Recipes    *RecipeHandler
	Categories *CategoryHandler
	Profile    *ProfileHandler
	WebSocket  *WebSocketHandler
}

// NewRouter wires the handlers onto a chi router
func NewRouter(api API, authenticator middleware.Authenticator) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", api.Auth.Register)
		r.Post("/auth/login", api.Auth.Login)
		r.Post("/auth/logout", api.Auth.Logout)
		r.Get("/categories", api.Categories.List)
		r.Get("/categories/{id}", api.Categories.Get)
		r.Get("/categories/{id}/recipes", api.Recipes.ListByCategory)
		r.Get("/recipes", api.Recipes.ListAll)
		r.Get("/recipes/{id}", api.Recipes.Get)

		r.With(middleware.OptionalAuth(authenticator)).Get("/home", api.Categories.Home)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authenticator))
			r.Get("/auth/me", api.Auth.Me)
			r.Post("/recipes", api.Recipes.Create)
			r.Put("/recipes/{id}", api.Recipes.Update)
			r.Delete("/recipes/{id}", api.Recipes.Delete)
			r.Post("/recipes/{id}/image", api.Recipes.UploadImage)
			r.Get("/me/recipes", api.Recipes.ListMine)
			r.Get("/me/recipes/pending-image", api.Recipes.ListPendingImages)
			r.Get("/me/profile", api.Profile.Get)
			r.Patch("/me/profile", api.Profile.Update)
			r.Post("/me/profile/image", api.Profile.UploadImage)
		})
	})

	r.Get("/ws", api.WebSocket.HandleWebSocket)

	return r
}
