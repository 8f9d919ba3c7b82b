// Package reputation batches off-chain feedback deltas into on-chain
// reputation updates.
//
// On-chain writes cost orders of magnitude more than off-chain
// aggregation, so deltas accumulate per provider scope and flush as one
// batched registry call once a scope reaches the batch threshold. A
// 5-minute safety timer flushes partial batches so a quiet scope's
// deltas are never stranded.
package reputation

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fabric/gateway/internal/events"
	"github.com/fabric/gateway/internal/metrics"
)

// DefaultBatchThreshold is the per-scope queue depth that triggers a
// flush.
const DefaultBatchThreshold = 100

// Entry is one pending reputation delta.
type Entry struct {
	ID         string
	ProviderID string
	RegistryID string
	OnChainID  int64 // 0 = provider not registered on-chain
	ScoreDelta float64
	QueuedAt   time.Time
}

// ChainUpdate is one provider's aggregated update in a batched registry
// call.
type ChainUpdate struct {
	OnChainID    int64
	Score        float64 // aggregated 1–5 score
	Interactions int
}

// ChainWriter submits a batched reputation update on-chain. Duplicate
// delivery on retry must be tolerated by the registry contract; the
// batcher does not deduplicate.
type ChainWriter interface {
	BatchUpdateReputation(ctx context.Context, updates []ChainUpdate) (txHash string, err error)
}

// Store is the slice of the persistent store the batcher writes
// aggregated scores back to. *database.Store satisfies it.
type Store interface {
	ApplyReputationDelta(ctx context.Context, providerID string, newScore float64, interactions int) error
}

// Batcher accumulates per-scope reputation deltas and flushes them.
//
// Flush fires asynchronously from the enqueue that crosses the
// threshold, so enqueuing callers never block on chain latency. Entries
// are removed from the queue only on a successful flush: a failed flush
// re-queues them, counting toward the next threshold crossing
// (at-least-once delivery).
type Batcher struct {
	chain   ChainWriter
	store   Store
	emitter events.Emitter
	metrics *metrics.Metrics
	logger  *slog.Logger

	threshold int

	mu     sync.Mutex
	queues map[string][]Entry // scope (provider id) -> pending entries
	depth  int                // total pending across scopes

	timerMu sync.Mutex
	stopCh  chan struct{}
}

// NewBatcher creates a batcher. emitter may be nil.
func NewBatcher(chain ChainWriter, store Store, emitter events.Emitter, m *metrics.Metrics, threshold int, logger *slog.Logger) *Batcher {
	if threshold <= 0 {
		threshold = DefaultBatchThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		chain:     chain,
		store:     store,
		emitter:   emitter,
		metrics:   m,
		logger:    logger,
		threshold: threshold,
		queues:    make(map[string][]Entry),
	}
}

// Enqueue appends a reputation delta for a provider scope. When the
// scope's depth reaches the threshold its entries are taken off the
// queue under the lock, so exactly one flush fires per crossing, and
// flushed in the background.
func (b *Batcher) Enqueue(providerID, registryID string, onChainID int64, scoreDelta float64) {
	entry := Entry{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		RegistryID: registryID,
		OnChainID:  onChainID,
		ScoreDelta: scoreDelta,
		QueuedAt:   time.Now(),
	}

	b.mu.Lock()
	b.queues[providerID] = append(b.queues[providerID], entry)
	b.depth++
	b.metrics.QueueDepth.Set(float64(b.depth))

	var batch []Entry
	if len(b.queues[providerID]) >= b.threshold {
		batch = b.takeLocked(providerID)
	}
	b.mu.Unlock()

	if batch != nil {
		go b.flush(context.Background(), providerID, batch)
	}
}

// QueueDepth returns the total pending delta count across all scopes.
func (b *Batcher) QueueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depth
}

// Threshold returns the per-scope flush threshold.
func (b *Batcher) Threshold() int { return b.threshold }

// FlushPending synchronously flushes every scope's queued entries
// regardless of depth. Used by the safety timer and as the explicit
// retry path. Returns the number of entries flushed successfully.
func (b *Batcher) FlushPending(ctx context.Context) int {
	b.mu.Lock()
	batches := make(map[string][]Entry, len(b.queues))
	for scope := range b.queues {
		if batch := b.takeLocked(scope); batch != nil {
			batches[scope] = batch
		}
	}
	b.mu.Unlock()

	flushed := 0
	for scope, batch := range batches {
		if b.flush(ctx, scope, batch) {
			flushed += len(batch)
		}
	}
	return flushed
}

// takeLocked removes and returns a scope's pending entries. Caller must
// hold b.mu.
func (b *Batcher) takeLocked(scope string) []Entry {
	batch := b.queues[scope]
	if len(batch) == 0 {
		return nil
	}
	delete(b.queues, scope)
	b.depth -= len(batch)
	b.metrics.QueueDepth.Set(float64(b.depth))
	return batch
}

// requeue puts a failed batch back at the head of its scope's queue.
func (b *Batcher) requeue(scope string, batch []Entry) {
	b.mu.Lock()
	b.queues[scope] = append(batch, b.queues[scope]...)
	b.depth += len(batch)
	b.metrics.QueueDepth.Set(float64(b.depth))
	b.mu.Unlock()
}

// flush aggregates a scope's entries, writes the new score to the
// store, and submits the batched on-chain update. Returns false when
// the entries were re-queued for retry.
func (b *Batcher) flush(ctx context.Context, scope string, batch []Entry) bool {
	var sum float64
	var onChainID int64
	for _, e := range batch {
		sum += e.ScoreDelta
		if e.OnChainID != 0 {
			onChainID = e.OnChainID
		}
	}
	avg := sum / float64(len(batch))
	newScore := math.Round(avg*100) / 100

	if err := b.store.ApplyReputationDelta(ctx, scope, newScore, len(batch)); err != nil {
		b.logger.Error("reputation store update failed, re-queueing batch",
			"provider", scope, "entries", len(batch), "error", err)
		b.metrics.FlushTotal.WithLabelValues("error").Inc()
		b.requeue(scope, batch)
		return false
	}

	// Providers without an on-chain identity are aggregated off-chain
	// only; their entries are done once the store update lands.
	var txHash string
	if onChainID != 0 {
		var err error
		txHash, err = b.chain.BatchUpdateReputation(ctx, []ChainUpdate{{
			OnChainID:    onChainID,
			Score:        avg,
			Interactions: len(batch),
		}})
		if err != nil {
			b.logger.Error("on-chain reputation flush failed, re-queueing batch",
				"provider", scope, "entries", len(batch), "error", err)
			b.metrics.FlushTotal.WithLabelValues("error").Inc()
			b.requeue(scope, batch)
			return false
		}
	}

	b.metrics.FlushTotal.WithLabelValues("ok").Inc()
	b.metrics.FlushedEntries.Add(float64(len(batch)))
	b.logger.Info("reputation batch flushed",
		"provider", scope, "entries", len(batch), "new_score", newScore, "tx", txHash)

	if b.emitter != nil {
		b.emitter.Emit(events.TypeReputationFlushed, scope, map[string]interface{}{
			"providerId": scope,
			"entries":    len(batch),
			"newScore":   newScore,
			"txHash":     txHash,
		})
		b.emitter.Emit(events.TypeTrustUpdated, scope, map[string]interface{}{
			"providerId": scope,
			"trustScore": newScore,
		})
	}
	return true
}

// Start launches the safety flush timer, which flushes partial batches
// every interval so low-traffic scopes still reach the chain. Starting
// twice is a no-op.
func (b *Batcher) Start(interval time.Duration) {
	b.timerMu.Lock()
	defer b.timerMu.Unlock()
	if b.stopCh != nil {
		return
	}
	b.stopCh = make(chan struct{})

	go b.run(interval, b.stopCh)
	b.logger.Info("reputation batcher started",
		"threshold", b.threshold, "safety_interval", interval)
}

// Stop halts the safety flush timer.
func (b *Batcher) Stop() {
	b.timerMu.Lock()
	defer b.timerMu.Unlock()
	if b.stopCh == nil {
		return
	}
	close(b.stopCh)
	b.stopCh = nil
}

func (b *Batcher) run(interval time.Duration, stopCh chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if n := b.FlushPending(ctx); n > 0 {
				b.logger.Info("safety flush drained partial batches", "entries", n)
			}
			cancel()
		case <-stopCh:
			b.logger.Info("reputation batcher stopped")
			return
		}
	}
}
