package handlers

import (
	"net/http"
	"strconv"

	"github.com/fabric/gateway/internal/cache"
	"github.com/fabric/gateway/internal/middleware"
	"github.com/fabric/gateway/internal/selector"
	"github.com/fabric/gateway/internal/trust"
)

// HandleDiscover returns the ranked providers for a category.
//
// GET /v1/discover?category=inference&limit=5&minTrust=3.5&maxPrice=0.1
//
// Weight overrides (query params weight_success_rate, weight_latency,
// weight_uptime, weight_feedback, weight_onchain, weight_longevity,
// weight_volume) are honored only for plans with custom weights.
func HandleDiscover(sel *selector.Selector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := r.URL.Query().Get("category")
		if category == "" {
			writeError(w, http.StatusBadRequest, "category is required")
			return
		}

		opts := selector.Options{
			Limit:         queryInt(r, "limit"),
			MinTrustScore: queryFloat(r, "minTrust"),
			MaxPrice:      queryFloat(r, "maxPrice"),
		}

		if overrides := weightOverrides(r); overrides != nil {
			ac, ok := middleware.AccountFrom(r.Context())
			if !ok || !ac.Plan.CustomWeights {
				writeError(w, http.StatusForbidden, "custom weights require a PRO or TEAM plan")
				return
			}
			opts.Weights = overrides
		}

		providers, err := sel.Rank(r.Context(), category, opts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "ranking unavailable")
			return
		}
		if providers == nil {
			providers = []cache.ScoredProvider{}
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"category":  category,
			"count":     len(providers),
			"providers": providers,
		})
	}
}

func weightOverrides(r *http.Request) *trust.Overrides {
	var o trust.Overrides
	found := false
	set := func(dst **float64, param string) {
		if v := r.URL.Query().Get(param); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = &f
				found = true
			}
		}
	}
	set(&o.SuccessRate, "weight_success_rate")
	set(&o.Latency, "weight_latency")
	set(&o.Uptime, "weight_uptime")
	set(&o.Feedback, "weight_feedback")
	set(&o.OnChainRep, "weight_onchain")
	set(&o.Longevity, "weight_longevity")
	set(&o.VolumeConsistency, "weight_volume")
	if !found {
		return nil
	}
	return &o
}

func queryInt(r *http.Request, param string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(param))
	return v
}

func queryFloat(r *http.Request, param string) float64 {
	v, _ := strconv.ParseFloat(r.URL.Query().Get(param), 64)
	return v
}
