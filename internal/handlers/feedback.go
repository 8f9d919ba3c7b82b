package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fabric/gateway/internal/cache"
	"github.com/fabric/gateway/internal/database"
	"github.com/fabric/gateway/internal/events"
	"github.com/fabric/gateway/internal/middleware"
	"github.com/fabric/gateway/internal/reputation"
)

// FeedbackStore is the slice of the persistent store feedback intake
// needs. *database.Store satisfies it.
type FeedbackStore interface {
	GetProvider(ctx context.Context, id string) (*database.Provider, error)
	InsertFeedback(ctx context.Context, f database.Feedback) error
}

type feedbackRequest struct {
	ProviderID string  `json:"providerId"`
	Score      float64 `json:"score"`
	Comment    string  `json:"comment,omitempty"`
}

// HandleFeedback ingests one rating: persist it, invalidate the
// provider's category ranking, queue the reputation delta, and announce
// it on the event bus.
func HandleFeedback(
	store FeedbackStore,
	scoreCache *cache.ScoreCache,
	batcher *reputation.Batcher,
	emitter events.Emitter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ProviderID == "" {
			writeError(w, http.StatusBadRequest, "providerId is required")
			return
		}
		if req.Score < 1 || req.Score > 5 {
			writeError(w, http.StatusBadRequest, "score must be between 1 and 5")
			return
		}

		ac, ok := middleware.AccountFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing account context")
			return
		}

		provider, err := store.GetProvider(r.Context(), req.ProviderID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "provider lookup failed")
			return
		}
		if provider == nil {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}

		feedback := database.Feedback{
			ID:         uuid.NewString(),
			ProviderID: provider.ID,
			AgentID:    ac.Account.ID,
			Category:   provider.Category,
			Score:      req.Score,
			Comment:    req.Comment,
			CreatedAt:  time.Now().UTC(),
		}
		if err := store.InsertFeedback(r.Context(), feedback); err != nil {
			writeError(w, http.StatusInternalServerError, "feedback not recorded")
			return
		}

		// The cached ranking is stale the moment new feedback lands.
		if scoreCache != nil {
			scoreCache.Invalidate(r.Context(), provider.Category)
		}

		batcher.Enqueue(provider.ID, provider.RegistryID, provider.OnChainID, req.Score)

		if emitter != nil {
			emitter.Emit(events.TypeFeedbackReceived, provider.ID, map[string]interface{}{
				"feedbackId": feedback.ID,
				"providerId": provider.ID,
				"category":   provider.Category,
				"score":      req.Score,
			})
		}

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"id":         feedback.ID,
			"providerId": provider.ID,
			"queued":     true,
		})
	}
}
