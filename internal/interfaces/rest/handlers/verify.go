package handlers

import (
	"net/http"

	"github.com/lumapix/payments-service/internal/interfaces/rest"
)

// VerifyCheckout is the read-only reconciliation endpoint. It re-queries the
// provider and reports agreement; it never repairs state itself.
func (h *Handlers) VerifyCheckout(w http.ResponseWriter, r *http.Request) {
	result, err := h.verifyService.Verify(r.Context(), r.PathValue("purchaseId"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, result, h.logger)
}
