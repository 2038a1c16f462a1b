package routes

import (
	"net/http"
	"time"

	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Tournament *handlers.TournamentHandler
	History    *handlers.HistoryHandler
	WebSocket  *handlers.WebSocketHandler
}

func SetupRoutes(router chi.Router, h Handlers, tokens middleware.TokenParser, allowedOrigins []string) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Post("/auth/token", h.Auth.Login)

	// The websocket route must not be wrapped by the request timeout.
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	organizerOnly := func(r chi.Router) {
		r.Use(middleware.Authenticate(tokens))
		r.Use(middleware.Authorize(services.RoleOrganizer))
	}

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(60 * time.Second))

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", h.Tournament.ListHandler)

			r.Group(func(r chi.Router) {
				organizerOnly(r)
				r.Post("/", h.Tournament.CreateHandler)
			})

			r.Route("/{tournamentID}", func(r chi.Router) {
				r.Get("/", h.Tournament.GetByIDHandler)
				r.Get("/withdrawals", h.Tournament.ListWithdrawalsHandler)
				r.Get("/withdrawals/search", h.Tournament.SearchWithdrawalsHandler)

				r.Group(func(r chi.Router) {
					organizerOnly(r)
					r.Post("/qualifiers", h.Tournament.ScheduleQualifierHandler)
					r.Post("/qualifiers/resolve", h.Tournament.ResolveQualifiersHandler)
					r.Post("/groups/run", h.Tournament.RunGroupStageHandler)
					r.Post("/knockout/run", h.Tournament.RunKnockoutHandler)
					r.Post("/advance", h.Tournament.AdvanceStageHandler)
					r.Post("/withdrawals", h.Tournament.RegisterWithdrawalHandler)
					r.Post("/withdrawals/process", h.Tournament.ProcessWithdrawalHandler)
				})
			})
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.History.ListHandler)
			r.Get("/stats", h.History.StatsHandler)
			r.Get("/top", h.History.TopPerformersHandler)
			r.Get("/summary", h.History.SummaryHandler)
			r.Get("/export.csv", h.History.ExportCSVHandler)
			r.Get("/{matchID}", h.History.GetByIDHandler)

			r.Group(func(r chi.Router) {
				organizerOnly(r)
				r.Post("/", h.History.RecordHandler)
				r.Post("/export", h.History.ExportHandler)
				r.Delete("/{matchID}", h.History.DeleteHandler)
			})
		})
	})
}
