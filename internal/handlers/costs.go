package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fabric/gateway/internal/billing"
	"github.com/fabric/gateway/internal/middleware"
)

type costsRequest struct {
	ProviderPrice float64 `json:"providerPrice"`
	UseLiveGas    bool    `json:"useLiveGas,omitempty"`
}

// HandleCosts quotes the full cost breakdown for routing one request at
// the given provider price. The routing fee percentage comes from the
// caller's plan, never from the request.
func HandleCosts(engine *billing.FeeEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req costsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ProviderPrice < 0 {
			writeError(w, http.StatusBadRequest, "providerPrice must be >= 0")
			return
		}

		ac, ok := middleware.AccountFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing account context")
			return
		}

		breakdown := engine.CalculateCosts(r.Context(), req.ProviderPrice,
			ac.Account.RoutingFeePct, req.UseLiveGas)

		if check := engine.ValidatePaymentAmount(breakdown.TotalCost); !check.Valid {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"costs": breakdown,
				"valid": false,
				"error": check.Reason,
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"costs": breakdown,
			"valid": true,
		})
	}
}

type validateRequest struct {
	Amount float64 `json:"amount"`
}

// HandleValidatePayment checks a raw payment amount against the
// gateway's bounds.
func HandleValidatePayment(engine *billing.FeeEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		writeJSON(w, http.StatusOK, engine.ValidatePaymentAmount(req.Amount))
	}
}
