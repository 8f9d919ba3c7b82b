package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/fabric/gateway/internal/reputation"
)

// Pinger reports connectivity of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChainReader reports chain connectivity for the health endpoint.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// HealthDeps are the optional collaborators the health endpoint probes.
// Nil fields are reported as disabled rather than failing.
type HealthDeps struct {
	DB      Pinger
	Redis   Pinger
	Chain   ChainReader
	Batcher *reputation.Batcher
}

// HandleHealth reports per-dependency status. The endpoint returns 200
// as long as the database is reachable; Redis and the chain are
// degradable.
func HandleHealth(deps HealthDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := map[string]interface{}{}

		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				checks["database"] = "down"
				status = http.StatusServiceUnavailable
			} else {
				checks["database"] = "ok"
			}
		} else {
			checks["database"] = "disabled"
		}

		if deps.Redis != nil {
			if err := deps.Redis.Ping(ctx); err != nil {
				checks["cache"] = "down"
			} else {
				checks["cache"] = "ok"
			}
		} else {
			checks["cache"] = "disabled"
		}

		if deps.Chain != nil {
			if block, err := deps.Chain.BlockNumber(ctx); err != nil {
				checks["chain"] = "down"
			} else {
				checks["chain"] = map[string]interface{}{"status": "ok", "block": block}
			}
		} else {
			checks["chain"] = "disabled"
		}

		if deps.Batcher != nil {
			checks["reputation_queue"] = deps.Batcher.QueueDepth()
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]interface{}{
			"status": overall,
			"time":   time.Now().UTC().Format(time.RFC3339),
			"checks": checks,
		})
	}
}
