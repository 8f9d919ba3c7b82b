package handlers

import (
	"fmt"
	"net/http"

	"github.com/fabric/gateway/internal/reputation"
)

// HandleQueueStatus reports the reputation batcher's pending depth
// against its flush threshold.
func HandleQueueStatus(batcher *reputation.Batcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		depth := batcher.QueueDepth()
		threshold := batcher.Threshold()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"pending":   depth,
			"threshold": threshold,
			"status":    fmt.Sprintf("%d/%d", depth, threshold),
		})
	}
}

// HandleFlushQueue forces a synchronous flush of all pending
// reputation deltas. Operator endpoint; entries that fail to flush stay
// queued.
func HandleFlushQueue(batcher *reputation.Batcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flushed := batcher.FlushPending(r.Context())
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"flushed":   flushed,
			"remaining": batcher.QueueDepth(),
		})
	}
}
