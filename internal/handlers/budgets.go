package handlers

import (
	"context"
	"net/http"

	"github.com/fabric/gateway/internal/billing"
	"github.com/fabric/gateway/internal/database"
	"github.com/fabric/gateway/internal/middleware"
)

// BudgetReader is the store slice the budget endpoint reads.
// *database.Store satisfies it.
type BudgetReader interface {
	BudgetsByAccount(ctx context.Context, accountID string) ([]database.Budget, error)
}

// HandleBudgets returns the authenticated account's budget ledgers with
// remaining headroom.
func HandleBudgets(store BudgetReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := middleware.AccountFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing account context")
			return
		}

		budgets, err := store.BudgetsByAccount(r.Context(), ac.Account.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "budget lookup failed")
			return
		}

		type budgetView struct {
			database.Budget
			RemainingUSD float64 `json:"remaining_usd"`
		}
		views := make([]budgetView, 0, len(budgets))
		for _, b := range budgets {
			remaining := b.LimitUSD - b.SpentUSD
			if remaining < 0 {
				remaining = 0
			}
			views = append(views, budgetView{Budget: b, RemainingUSD: remaining})
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"accountId": ac.Account.ID,
			"budgets":   views,
		})
	}
}

// HandleBudgetSweep runs one reset sweep immediately instead of waiting
// for the scheduler tick. Operator endpoint.
func HandleBudgetSweep(scheduler *billing.BudgetResetScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reset, err := scheduler.ResetExpired(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "budget sweep failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"reset": reset})
	}
}
