// Package billing computes per-transaction cost breakdowns and runs the
// periodic budget reset job.
package billing

import (
	"context"
	"log/slog"
	"math"

	"github.com/fabric/gateway/internal/metrics"
)

// MaxPaymentUSD is the ceiling a single payment may not exceed.
const MaxPaymentUSD = 10000

// gasUnitsPerRoute covers the two transfers a routed transaction needs:
// provider payment plus fee collection (~65k gas each).
const gasUnitsPerRoute = 130_000

// GasEstimator returns a live USD gas cost estimate for the given gas
// units. Implementations are expected to enforce their own timeout.
type GasEstimator interface {
	EstimateGasCostUSD(ctx context.Context, gasUnits int64) (float64, error)
}

// CostBreakdown is the per-transaction cost decomposition. Ephemeral:
// returned per request, never persisted.
type CostBreakdown struct {
	ProviderCost  float64 `json:"providerCost"`
	RoutingFee    float64 `json:"routingFee"`
	GasCost       float64 `json:"gasCost"`
	TotalCost     float64 `json:"totalCost"`
	RoutingFeePct float64 `json:"routingFeePct"`
}

// ValidationResult is the outcome of a payment amount check.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// FeeEngine computes routing fees and gas costs.
type FeeEngine struct {
	estimator GasEstimator
	metrics   *metrics.Metrics
	logger    *slog.Logger

	estimatedGasUSD     float64
	gasBufferMultiplier float64
}

// NewFeeEngine creates a fee engine. estimator may be nil; live
// estimation then always uses the fallback.
func NewFeeEngine(estimator GasEstimator, m *metrics.Metrics, estimatedGasUSD, gasBufferMultiplier float64, logger *slog.Logger) *FeeEngine {
	if estimatedGasUSD == 0 {
		estimatedGasUSD = 0.00025 // Base L2 average per tx
	}
	if gasBufferMultiplier == 0 {
		gasBufferMultiplier = 1.2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeeEngine{
		estimator:           estimator,
		metrics:             m,
		logger:              logger,
		estimatedGasUSD:     estimatedGasUSD,
		gasBufferMultiplier: gasBufferMultiplier,
	}
}

// CalculateCosts returns the full cost breakdown for a route.
//
// With useEstimatedGas the gas cost is a live estimate for two
// transfers with a safety buffer; any estimation failure falls back to
// 2x the constant estimate; an approximate cost beats an unavailable
// one. All monetary outputs are rounded to 6 decimals so float noise
// never accumulates across repeated calls.
func (fe *FeeEngine) CalculateCosts(ctx context.Context, providerPrice, routingFeePct float64, useEstimatedGas bool) CostBreakdown {
	routingFee := providerPrice * routingFeePct / 100

	gasCost := fe.estimatedGasUSD
	if useEstimatedGas {
		gasCost = fe.liveGasEstimate(ctx)
	}

	return CostBreakdown{
		ProviderCost:  providerPrice,
		RoutingFee:    round6(routingFee),
		GasCost:       round6(gasCost),
		TotalCost:     round6(providerPrice + routingFee + gasCost),
		RoutingFeePct: routingFeePct,
	}
}

func (fe *FeeEngine) liveGasEstimate(ctx context.Context) float64 {
	if fe.estimator == nil {
		fe.metrics.GasEstimateFallbacks.Inc()
		return fe.estimatedGasUSD * 2
	}
	raw, err := fe.estimator.EstimateGasCostUSD(ctx, gasUnitsPerRoute)
	if err != nil {
		fe.logger.Debug("live gas estimate failed, using fallback", "error", err)
		fe.metrics.GasEstimateFallbacks.Inc()
		return fe.estimatedGasUSD * 2
	}
	return raw * fe.gasBufferMultiplier
}

// CalculateRoutingFee returns the routing fee alone.
func (fe *FeeEngine) CalculateRoutingFee(cost, feePct float64) float64 {
	return round6(cost * feePct / 100)
}

// ValidatePaymentAmount checks that a payment amount is usable. It
// returns a structured result and never fails.
func (fe *FeeEngine) ValidatePaymentAmount(amount float64) ValidationResult {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ValidationResult{Valid: false, Reason: "amount must be finite"}
	}
	if amount <= 0 {
		return ValidationResult{Valid: false, Reason: "amount must be positive"}
	}
	if amount > MaxPaymentUSD {
		return ValidationResult{Valid: false, Reason: "amount exceeds maximum ($10,000)"}
	}
	return ValidationResult{Valid: true}
}

func round6(n float64) float64 {
	return math.Round(n*1e6) / 1e6
}
