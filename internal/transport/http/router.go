package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"

	"rentloop/internal/handler"
	"rentloop/internal/httputil"
	authmw "rentloop/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler    *handler.AuthHandler
	ListingHandler *handler.ListingHandler
	MediaHandler   *handler.MediaHandler
	TokenVerifier  authmw.TokenVerifier
	AllowedOrigin  string
}

// NewRouter creates and configures the API router. Browser clients are
// limited to the configured origin.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes - no authentication required
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", cfg.AuthHandler.Signup)
			r.Post("/login", cfg.AuthHandler.Login)
		})

		r.Route("/listings", func(r chi.Router) {
			// Public reads
			r.Get("/all", cfg.ListingHandler.GetAll)
			r.Get("/images/{filename}", cfg.MediaHandler.ServeImage)
			r.Get("/{id}", cfg.ListingHandler.GetByID)

			// Protected lifecycle operations - owner derives from the token
			r.Group(func(r chi.Router) {
				r.Use(authmw.Auth(cfg.TokenVerifier))

				r.Post("/", cfg.ListingHandler.Create)
				r.Get("/mine", cfg.ListingHandler.Mine)
				r.Put("/update/{id}", cfg.ListingHandler.Update)
				r.Delete("/delete/{id}", cfg.ListingHandler.Delete)
			})
		})
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{cfg.AllowedOrigin}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)

	return cors(r)
}
