package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fmorante/lexagenda-be/internal/api/handlers"
	"github.com/fmorante/lexagenda-be/internal/auth"
	"github.com/fmorante/lexagenda-be/internal/monitoring"
	"github.com/fmorante/lexagenda-be/internal/services"
	"github.com/fmorante/lexagenda-be/internal/websocket"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(
	hub *websocket.Hub,
	agendaService services.AgendaServiceProvider,
	userService services.UserServiceProvider,
	syncLogService services.SyncLogServiceProvider,
	stats monitoring.StatProvider,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration for development
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // Adjust for your frontend URL
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	agendaHandler := handlers.NewAgendaHandler(agendaService)
	userHandler := handlers.NewUserHandler(userService)
	syncLogHandler := handlers.NewSyncLogHandler(syncLogService)
	systemHandler := handlers.NewSystemHandler(stats)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", userHandler.Register)
		r.Post("/auth/login", userHandler.Login)

		// Everything below is scoped to the organization in the JWT
		r.Group(func(r chi.Router) {
			r.Use(auth.JWTMiddleware())

			r.Get("/auth/me", userHandler.Me)

			// WebSocket connection endpoint
			r.Get("/ws", wsHandler.Serve)

			r.Route("/agenda", func(r chi.Router) {
				r.Get("/events", agendaHandler.GetEvents)
				r.Post("/events", agendaHandler.Create)
				r.Put("/events/{id}", agendaHandler.Update)
				r.Delete("/events/{id}", agendaHandler.Delete)
				r.Get("/days", agendaHandler.GetDays)
				r.Post("/refresh", agendaHandler.Refresh)
			})

			r.Get("/synclog", syncLogHandler.GetRecent)
			r.Get("/system/stats", systemHandler.GetStats)
		})
	})

	return r
}
