package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/fabric/gateway/internal/database"
)

// Plan fixes the entitlements of an account tier. Plans are static;
// the account row only stores the tier name plus a denormalized copy
// of the limits current at subscription time.
type Plan struct {
	DailyLimit    int
	RoutingFeePct float64
	CanRoute      bool
	CanFeedback   bool
	CustomWeights bool
}

// Plans maps a tier name to its entitlements.
var Plans = map[string]Plan{
	"FREE":    {DailyLimit: 50, RoutingFeePct: 0, CanRoute: false, CanFeedback: false, CustomWeights: false},
	"BUILDER": {DailyLimit: 5000, RoutingFeePct: 0.5, CanRoute: true, CanFeedback: true, CustomWeights: false},
	"PRO":     {DailyLimit: 15000, RoutingFeePct: 0.4, CanRoute: true, CanFeedback: true, CustomWeights: true},
	"TEAM":    {DailyLimit: 50000, RoutingFeePct: 0.3, CanRoute: true, CanFeedback: true, CustomWeights: true},
}

// PlanFor returns the entitlements for a tier name, falling back to
// FREE for unknown tiers.
func PlanFor(name string) Plan {
	if p, ok := Plans[name]; ok {
		return p
	}
	return Plans["FREE"]
}

// AccountStore resolves API keys to accounts. Satisfied by
// database.Store.
type AccountStore interface {
	AccountByKeyHash(ctx context.Context, keyHash string) (*database.Account, error)
}

// AccountContext is the authenticated caller attached to the request
// context.
type AccountContext struct {
	Account database.Account
	Plan    Plan
}

type contextKey string

const accountKey contextKey = "account"

// WithAccount attaches an authenticated account to the context.
func WithAccount(ctx context.Context, ac *AccountContext) context.Context {
	return context.WithValue(ctx, accountKey, ac)
}

// AccountFrom extracts the authenticated account from the context.
func AccountFrom(ctx context.Context) (*AccountContext, bool) {
	ac, ok := ctx.Value(accountKey).(*AccountContext)
	return ac, ok
}

// HashAPIKey returns the hex SHA-256 digest under which API keys are
// stored. Raw keys never reach the database.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Auth requires a valid Bearer API key and injects the resolved
// account into the request context.
func Auth(accounts AccountStore, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Missing API Key", http.StatusUnauthorized)
			return
		}
		apiKey := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if apiKey == "" {
			http.Error(w, "Missing API Key", http.StatusUnauthorized)
			return
		}

		account, err := accounts.AccountByKeyHash(ctx, HashAPIKey(apiKey))
		if err != nil {
			http.Error(w, "Authentication Unavailable", http.StatusServiceUnavailable)
			return
		}
		if account == nil {
			http.Error(w, "Invalid API Key", http.StatusUnauthorized)
			return
		}

		ctx = WithAccount(ctx, &AccountContext{
			Account: *account,
			Plan:    PlanFor(account.Plan),
		})
		next(w, r.WithContext(ctx))
	}
}

// RequireRoute rejects accounts whose plan cannot route requests.
// Must run after Auth.
func RequireRoute(next http.HandlerFunc) http.HandlerFunc {
	return requirePlan(next, func(p Plan) bool { return p.CanRoute })
}

// RequireFeedback rejects accounts whose plan cannot submit feedback.
// Must run after Auth.
func RequireFeedback(next http.HandlerFunc) http.HandlerFunc {
	return requirePlan(next, func(p Plan) bool { return p.CanFeedback })
}

func requirePlan(next http.HandlerFunc, allowed func(Plan) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := AccountFrom(r.Context())
		if !ok {
			http.Error(w, "Missing Account Context", http.StatusUnauthorized)
			return
		}
		if !allowed(ac.Plan) {
			http.Error(w, "Plan Upgrade Required", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
