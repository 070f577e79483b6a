/**
 * @description
 * HTTP router for the settlement service: authenticated client surface,
 * unauthenticated webhook ingestion, health and metrics.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes creates the router for the settlement service.
func Routes(h *Handlers, webhook *WebhookHandler, jwksURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Webhook deliveries authenticate by HMAC signature, not bearer token.
	r.Post("/webhooks/chain-activity", webhook.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Post("/transfers/build", h.BuildTransferHandler)
		r.Post("/transfers/broadcast", h.BroadcastHandler)
		r.Get("/transactions", h.ListTransactionsHandler)

		r.Post("/payment-requests", h.CreatePaymentRequestHandler)
		r.Get("/payment-requests", h.ListPaymentRequestsHandler)
		r.Get("/payment-requests/incoming", h.ListIncomingPaymentRequestsHandler)
		r.Post("/payment-requests/{id}/decline", h.DeclinePaymentRequestHandler)
		r.Post("/payment-requests/{id}/remind", h.RemindPaymentRequestHandler)
	})

	return r
}
