package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/punchclock/internal/web/handlers"
	"github.com/kozaktomas/punchclock/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	punchHandler := handlers.NewPunchHandler(s.orchestrator, s.attempts, s.identifier, s.logger.Named("punch"))
	attendanceHandler := handlers.NewAttendanceHandler(s.rules, s.logger)
	statsHandler := handlers.NewStatsHandler(s.rules, s.logger)
	employeesHandler := handlers.NewEmployeesHandler(s.config.Face.DescriptorLength, s.config.Face.IndexPath, s.logger)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.auth))

			// Punch
			r.Post("/punch", punchHandler.Punch)
			r.Post("/punch/attempts", punchHandler.StartAttempt)
			r.Post("/punch/attempts/{id}/face", punchHandler.SubmitFace)
			r.Delete("/punch/attempts/{id}", punchHandler.CancelAttempt)

			// Own history
			r.Get("/attendance/me", attendanceHandler.Me)

			// Admin
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Post("/punch/identify", punchHandler.Identify)

				r.Get("/attendance", attendanceHandler.ByDate)
				r.Get("/attendance/absent", attendanceHandler.Absent)
				r.Get("/attendance/report", attendanceHandler.Report)
				r.Get("/stats/today", statsHandler.Today)

				r.Get("/employees", employeesHandler.List)
				r.Post("/employees", employeesHandler.Create)
				r.Get("/employees/{id}", employeesHandler.Get)
				r.Put("/employees/{id}", employeesHandler.Update)
				r.Delete("/employees/{id}", employeesHandler.Delete)
				r.Put("/employees/{id}/face", employeesHandler.RegisterFace)
			})
		})
	})
}
