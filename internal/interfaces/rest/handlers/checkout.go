package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/application/services"
	"github.com/lumapix/payments-service/internal/interfaces/rest"
)

// checkoutRequest is the client body. IdempotencyKey in the body is the
// deprecated placement; the Idempotency-Key header is preferred.
type checkoutRequest struct {
	Credits        int64    `json:"credits,omitempty"`
	MediaIDs       []string `json:"mediaIds,omitempty"`
	UnlockAll      bool     `json:"unlockAll,omitempty"`
	CreatorID      string   `json:"creatorId,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	IdempotencyKey string   `json:"idempotencyKey,omitempty"`
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	actorID := r.Header.Get("X-Actor-ID")
	if actorID == "" {
		rest.WriteError(w, application.NewValidationError(errors.New("missing X-Actor-ID header")), h.logger)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewValidationError(err), h.logger)
		return
	}

	key, err := resolveIdempotencyKey(r.Header.Get("Idempotency-Key"), req.IdempotencyKey)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	cmd := services.CheckoutCommand{
		ActorID:         actorID,
		CreatorID:       req.CreatorID,
		MediaIDs:        req.MediaIDs,
		UnlockAll:       req.UnlockAll,
		Credits:         req.Credits,
		Currency:        req.Currency,
		DetectedCountry: r.Header.Get("X-Detected-Country"),
	}

	result, err := h.checkoutService.Checkout(r.Context(), cmd, key)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	if result.Replayed {
		w.Header().Set("Idempotency-Replayed", "true")
	}
	rest.WriteRawJSON(w, result.StatusCode, result.Body, h.logger)
}

// resolveIdempotencyKey enforces the header/body precedence rule: the header
// wins, the deprecated body field is accepted alone, and a mismatch between
// the two is rejected rather than guessed at.
func resolveIdempotencyKey(headerKey, bodyKey string) (string, error) {
	switch {
	case headerKey == "" && bodyKey == "":
		return "", &application.ServiceError{
			Code:       application.ErrCodeIdempotencyKeyAbsent,
			Message:    "Idempotency-Key header is required",
			HTTPStatus: http.StatusBadRequest,
		}
	case headerKey != "" && bodyKey != "" && headerKey != bodyKey:
		return "", application.NewValidationError(
			errors.New("idempotencyKey body field does not match Idempotency-Key header"))
	case headerKey != "":
		return headerKey, nil
	default:
		return bodyKey, nil
	}
}
