package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router and all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://hearthsidecooking.com", "http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		// Segments
		r.Route("/segments", func(r chi.Router) {
			r.Get("/", h.ListSegments)
			r.Post("/", h.CreateSegment)
			r.Post("/evaluate", h.EvaluateRules)
			r.Get("/fields", h.GetSegmentFields)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSegment)
				r.Put("/", h.UpdateSegment)
				r.Delete("/", h.DeleteSegment)
				r.Get("/preview", h.PreviewSegment)
			})
		})

		// Automations + queue. Queue routes are declared before /{id} so
		// "queue" is never captured as an automation id.
		r.Route("/automations", func(r chi.Router) {
			r.Get("/", h.ListAutomations)
			r.Post("/", h.CreateAutomation)

			r.Route("/queue", func(r chi.Router) {
				r.Get("/all", h.ListQueue)
				r.Get("/stats", h.GetQueueStats)
				r.Post("/process", h.ProcessQueue)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetAutomation)
				r.Put("/", h.UpdateAutomation)
				r.Patch("/status", h.UpdateAutomationStatus)
				r.Delete("/", h.DeleteAutomation)
				r.Post("/trigger", h.TriggerAutomation)
			})
		})

		// Trigger events from the site (signup, purchase, contact form)
		r.Post("/triggers/dispatch", h.DispatchTrigger)

		// Audit trail
		r.Get("/activity", h.GetActivity)
	})

	return r
}
