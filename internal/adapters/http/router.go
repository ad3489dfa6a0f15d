package http

import (
	"net/http"

	"github.com/cartlane/affiliate-settlement-service/internal/ports"
	"github.com/go-chi/chi/v5"
)

// NewRouter assembles the public API, the authenticated affiliate and
// operator surfaces, and the internal webhook used by the order service.
func NewRouter(handler *Handler, verifier ports.TokenVerifier, internalToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/attribution/track", handler.trackClick)
		r.Get("/affiliate/payment-methods", handler.paymentMethods)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(verifier))

			r.Get("/affiliate/summary", handler.getSummary)
			r.Post("/affiliate/payouts/{rail}/onboard", handler.onboardRail)
			r.Post("/affiliate/payouts/{rail}/refresh", handler.refreshRail)
			r.Delete("/affiliate/payouts/{rail}", handler.disconnectRail)

			r.Get("/commissions", handler.listCommissions)
			r.Get("/commissions/{commission_id}", handler.getCommission)
			r.Get("/commissions/{commission_id}/attempts", handler.listPayoutAttempts)
			r.Post("/commissions/{commission_id}/approve", handler.approveCommission)
			r.Post("/commissions/{commission_id}/cancel", handler.cancelCommission)
			r.Post("/commissions/{commission_id}/retry-payout", handler.retryPayout)
			r.Post("/commissions/{commission_id}/mark-paid", handler.markPaid)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(internalAuthMiddleware(internalToken))
		r.Post("/internal/events/order-payment", handler.orderPaymentEvent)
	})

	return r
}
