package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/application/services"
	"github.com/lumapix/payments-service/internal/interfaces/rest"
)

// Payout actions and the operator permission each one requires.
const (
	actionSingle         = "single"
	actionBatchThreshold = "batch-threshold"
	actionRetryFailed    = "retry-failed"
	actionPause          = "pause"
	actionResume         = "resume"
)

type payoutRequest struct {
	Action   string `json:"action"`
	WalletID string `json:"walletId,omitempty"`
}

func (h *Handlers) Payouts(w http.ResponseWriter, r *http.Request) {
	var req payoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewValidationError(err), h.logger)
		return
	}

	if err := h.authorizePayoutAction(r, req.Action); err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	switch req.Action {
	case actionSingle:
		if req.WalletID == "" {
			rest.WriteError(w, application.NewValidationError(errors.New("walletId is required for single payouts")), h.logger)
			return
		}
		payout, err := h.payoutService.PayoutSingle(r.Context(), services.SinglePayoutCommand{WalletID: req.WalletID})
		if err != nil {
			rest.WriteError(w, err, h.logger)
			return
		}
		rest.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "payout": payout}, h.logger)

	case actionBatchThreshold:
		result, err := h.payoutService.RunThresholdBatch(r.Context())
		if err != nil {
			rest.WriteError(w, err, h.logger)
			return
		}
		rest.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "batch": result}, h.logger)

	case actionRetryFailed:
		moved, err := h.payoutService.RetryFailed(r.Context())
		if err != nil {
			rest.WriteError(w, err, h.logger)
			return
		}
		rest.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "requeued": moved}, h.logger)

	case actionPause:
		if err := h.payoutService.Pause(r.Context()); err != nil {
			rest.WriteError(w, err, h.logger)
			return
		}
		rest.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "paused": true}, h.logger)

	case actionResume:
		if err := h.payoutService.Resume(r.Context()); err != nil {
			rest.WriteError(w, err, h.logger)
			return
		}
		rest.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "paused": false}, h.logger)

	default:
		rest.WriteError(w, application.NewValidationError(errors.New("unknown payout action")), h.logger)
	}
}

// authorizePayoutAction checks the bearer token's permission list for the
// requested action. Permissions are configured per token as a comma-separated
// action list; "*" grants everything.
func (h *Handlers) authorizePayoutAction(r *http.Request, action string) error {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return application.NewPermissionDeniedError(action)
	}

	permissions, ok := h.auth.OperatorTokens[token]
	if !ok {
		return application.NewPermissionDeniedError(action)
	}

	for _, p := range strings.Split(permissions, ",") {
		p = strings.TrimSpace(p)
		if p == "*" || p == action {
			return nil
		}
	}

	return application.NewPermissionDeniedError(action)
}
