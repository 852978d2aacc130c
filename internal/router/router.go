package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"poetica-backend/internal/handlers"
	"poetica-backend/internal/metrics"
	"poetica-backend/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	generateLimiter *middleware.RateLimiter,
	sessionHandler *handlers.SessionHandler,
	poemHandler *handlers.PoemHandler,
	libraryHandler *handlers.LibraryHandler,
	wsHandler http.HandlerFunc,
	frontendURL string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Session (public) ────
		r.Post("/session", sessionHandler.Create)

		// ──── Poem Routes ────
		r.Route("/poems", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(generateLimiter.Middleware).Post("/generate", poemHandler.Generate)
			r.Get("/current", poemHandler.Current)
			r.Delete("/current", poemHandler.Clear)
		})

		// ──── Library Routes ────
		r.Route("/library", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", libraryHandler.List)
			r.Post("/", libraryHandler.Save)
			r.Delete("/{id}", libraryHandler.Remove)
			r.Put("/{id}/favorite", libraryHandler.ToggleFavorite)
			r.Post("/{id}/copy", libraryHandler.Copy)
			r.Get("/{id}/export", libraryHandler.Export)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHandler)
	})

	return r
}
