package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the chi router for the ledger API. metricsHandler may
// be nil; the /metrics route is then omitted.
func NewRouter(h *Handlers, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HandleHealthCheck)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.HandleCreateAccount)
		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", h.HandleGetAccount)
			r.Delete("/", h.HandleCloseAccount)
			r.Post("/deposit", h.HandleDeposit)
			r.Post("/withdraw", h.HandleWithdraw)
			r.Post("/transfer", h.HandleTransfer)
			r.Get("/transactions", h.HandleTransactionHistory)
		})
	})

	return r
}
