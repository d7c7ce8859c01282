package handlers

import (
	"io"
	"net/http"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/domain"
	"github.com/lumapix/payments-service/internal/interfaces/rest"
)

// webhookBodyLimit caps provider payloads; real events are a few KB.
const webhookBodyLimit = 1 << 20

// Webhook receives provider notifications. The contract with providers: 200
// once the event is durably handled (including duplicates and events we
// discard), non-200 only when the signature fails so the provider redelivers.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	providerName, err := domain.ParseProvider(r.PathValue("provider"))
	if err != nil {
		rest.WriteError(w, application.NewNotFoundError("provider"), h.logger)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		rest.WriteError(w, application.NewValidationError(err), h.logger)
		return
	}

	if err := h.settlementService.Settle(r.Context(), providerName, payload, r.Header); err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, map[string]bool{"received": true}, h.logger)
}
