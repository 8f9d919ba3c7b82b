package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fabric/gateway/internal/database"
)

// ProviderReader is the store slice the provider detail endpoint reads.
type ProviderReader interface {
	GetProvider(ctx context.Context, id string) (*database.Provider, error)
}

// HandleGetProvider returns one provider by id.
func HandleGetProvider(store ProviderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if id == "" {
			writeError(w, http.StatusBadRequest, "provider id is required")
			return
		}

		provider, err := store.GetProvider(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "provider lookup failed")
			return
		}
		if provider == nil {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}

		writeJSON(w, http.StatusOK, provider)
	}
}
