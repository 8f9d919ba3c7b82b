package database

import "time"

// Provider is a registered service provider.
type Provider struct {
	ID            string     `json:"id"`
	RegistryID    string     `json:"registry_id"`
	OnChainID     int64      `json:"on_chain_id"` // 0 = not registered on-chain
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	Endpoint      string     `json:"endpoint"`
	PricingModel  string     `json:"pricing_model"`
	BasePrice     float64    `json:"base_price"`
	Currency      string     `json:"currency"`
	WalletAddress string     `json:"wallet_address,omitempty"`
	TrustScore    float64    `json:"trust_score"`
	SuccessRate   float64    `json:"success_rate"`
	AvgLatencyMs  float64    `json:"avg_latency_ms"`
	UptimePercent float64    `json:"uptime_percent"`
	TotalRequests int64      `json:"total_requests"`
	IsActive      bool       `json:"is_active"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Feedback is one immutable rating event. Duplicate feedback per
// transaction is rejected by a unique constraint upstream.
type Feedback struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	AgentID    string    `json:"agent_id"`
	Category   string    `json:"category"`
	Score      float64   `json:"score"` // 1–5
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Budget is a spending ledger. ResetAt is always a concrete future
// instant; once passed, the budget must be reset before further spend
// is attributed against it.
type Budget struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	LimitUSD   float64   `json:"limit_usd"`
	SpentUSD   float64   `json:"spent_usd"`
	PeriodType string    `json:"period_type"` // daily, weekly, monthly
	ResetAt    time.Time `json:"reset_at"`
}

// Account is an API consumer with a plan that fixes its daily limit and
// routing fee percentage.
type Account struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Plan          string  `json:"plan"` // FREE, BUILDER, PRO, TEAM
	APIKeyHash    string  `json:"-"`
	DailyLimit    int     `json:"daily_limit"`
	RoutingFeePct float64 `json:"routing_fee_pct"`
}
