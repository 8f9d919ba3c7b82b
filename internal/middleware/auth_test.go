package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabric/gateway/internal/database"
)

type fakeAccountStore struct {
	accounts map[string]*database.Account
	err      error
}

func (f *fakeAccountStore) AccountByKeyHash(_ context.Context, keyHash string) (*database.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts[keyHash], nil
}

func storeWithKey(key string, account database.Account) *fakeAccountStore {
	account.APIKeyHash = HashAPIKey(key)
	return &fakeAccountStore{
		accounts: map[string]*database.Account{account.APIKeyHash: &account},
	}
}

func TestAuthInjectsAccount(t *testing.T) {
	store := storeWithKey("fab_live_abc123", database.Account{ID: "acct-1", Plan: "PRO"})

	var got *AccountContext
	handler := Auth(store, func(w http.ResponseWriter, r *http.Request) {
		got, _ = AccountFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/discover", nil)
	req.Header.Set("Authorization", "Bearer fab_live_abc123")
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "acct-1", got.Account.ID)
	assert.Equal(t, 15000, got.Plan.DailyLimit)
	assert.True(t, got.Plan.CustomWeights)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	store := storeWithKey("fab_live_abc123", database.Account{ID: "acct-1", Plan: "FREE"})
	handler := Auth(store, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/discover", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsUnknownKey(t *testing.T) {
	store := storeWithKey("fab_live_abc123", database.Account{ID: "acct-1", Plan: "FREE"})
	handler := Auth(store, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/discover", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthStoreFailureIs503(t *testing.T) {
	store := &fakeAccountStore{err: errors.New("connection refused")}
	handler := Auth(store, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/discover", nil)
	req.Header.Set("Authorization", "Bearer fab_live_abc123")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPlanForUnknownFallsBackToFree(t *testing.T) {
	p := PlanFor("ENTERPRISE")
	assert.Equal(t, Plans["FREE"], p)
}

func TestRequireRoute(t *testing.T) {
	called := false
	handler := RequireRoute(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	// FREE plan cannot route.
	req := httptest.NewRequest(http.MethodPost, "/v1/route", nil)
	ctx := WithAccount(req.Context(), &AccountContext{
		Account: database.Account{ID: "acct-1", Plan: "FREE"},
		Plan:    PlanFor("FREE"),
	})
	rec := httptest.NewRecorder()
	handler(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	// BUILDER plan can.
	ctx = WithAccount(req.Context(), &AccountContext{
		Account: database.Account{ID: "acct-2", Plan: "BUILDER"},
		Plan:    PlanFor("BUILDER"),
	})
	rec = httptest.NewRecorder()
	handler(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequireFeedbackWithoutAccount(t *testing.T) {
	handler := RequireFeedback(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/feedback", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHashAPIKeyStable(t *testing.T) {
	a := HashAPIKey("fab_live_abc123")
	b := HashAPIKey("fab_live_abc123")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashAPIKey("fab_live_abc124"))
}
