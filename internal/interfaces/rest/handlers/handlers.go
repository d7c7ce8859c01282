package handlers

import (
	"log/slog"
	"net/http"

	"github.com/lumapix/payments-service/internal/application/services"
	"github.com/lumapix/payments-service/internal/config"
)

// Handlers wires every HTTP endpoint to its service.
type Handlers struct {
	checkoutService   *services.CheckoutService
	settlementService *services.SettlementService
	payoutService     *services.PayoutService
	verifyService     *services.VerifyService
	auth              config.AuthConfig
	logger            *slog.Logger
}

func NewHandlers(
	checkoutService *services.CheckoutService,
	settlementService *services.SettlementService,
	payoutService *services.PayoutService,
	verifyService *services.VerifyService,
	auth config.AuthConfig,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		checkoutService:   checkoutService,
		settlementService: settlementService,
		payoutService:     payoutService,
		verifyService:     verifyService,
		auth:              auth,
		logger:            logger,
	}
}

// Register mounts all routes on the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/checkouts", h.Checkout)
	mux.HandleFunc("POST /api/v1/webhooks/{provider}", h.Webhook)
	mux.HandleFunc("POST /api/v1/payouts", h.Payouts)
	mux.HandleFunc("GET /api/v1/checkouts/{purchaseId}/verify", h.VerifyCheckout)
	mux.HandleFunc("GET /health", h.Health)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
