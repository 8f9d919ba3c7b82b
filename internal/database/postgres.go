// Package database is the Postgres persistence layer for providers,
// feedback, budgets, and accounts.
//
// Store errors are hard failures for callers: scoring must not return
// rankings computed from partial data, so nothing here degrades
// silently.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Store wraps the SQL connection pool with all gateway queries.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres connection pool and verifies connectivity.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	return &Store{db: db}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports store connectivity, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const providerColumns = `id, registry_id, on_chain_id, name, category, endpoint,
	pricing_model, base_price, currency, COALESCE(wallet_address, ''),
	trust_score, success_rate, avg_latency_ms, uptime_percent,
	total_requests, is_active, last_seen, created_at`

// ActiveProvidersByCategory returns up to limit active providers in a
// category, ordered by stored trust score. maxPrice <= 0 disables the
// price filter. The selector fetches more than it needs and re-ranks.
func (s *Store) ActiveProvidersByCategory(ctx context.Context, category string, maxPrice float64, limit int) ([]Provider, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM providers
		WHERE category = $1 AND is_active
		AND ($2::float8 <= 0 OR base_price <= $2)
		ORDER BY trust_score DESC LIMIT $3`, providerColumns)

	rows, err := s.db.QueryContext(ctx, query, category, maxPrice, limit)
	if err != nil {
		return nil, fmt.Errorf("query providers for %q: %w", category, err)
	}
	defer rows.Close()

	var providers []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.RegistryID, &p.OnChainID, &p.Name, &p.Category,
			&p.Endpoint, &p.PricingModel, &p.BasePrice, &p.Currency, &p.WalletAddress,
			&p.TrustScore, &p.SuccessRate, &p.AvgLatencyMs, &p.UptimePercent,
			&p.TotalRequests, &p.IsActive, &p.LastSeen, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// GetProvider returns a provider by ID, or nil when absent.
func (s *Store) GetProvider(ctx context.Context, id string) (*Provider, error) {
	query := fmt.Sprintf(`SELECT %s FROM providers WHERE id = $1`, providerColumns)

	var p Provider
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.RegistryID, &p.OnChainID,
		&p.Name, &p.Category, &p.Endpoint, &p.PricingModel, &p.BasePrice, &p.Currency,
		&p.WalletAddress, &p.TrustScore, &p.SuccessRate, &p.AvgLatencyMs,
		&p.UptimePercent, &p.TotalRequests, &p.IsActive, &p.LastSeen, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get provider %s: %w", id, err)
	}
	return &p, nil
}

// FeedbackByProviders batch-loads recent feedback for a set of
// providers in one query, newest first, capped to keep the scan
// bounded regardless of provider count.
func (s *Store) FeedbackByProviders(ctx context.Context, providerIDs []string, limit int) ([]Feedback, error) {
	if len(providerIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, provider_id, agent_id, category, score,
		COALESCE(comment, ''), created_at
		FROM feedback WHERE provider_id = ANY($1)
		ORDER BY created_at DESC LIMIT $2`, pq.Array(providerIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.ProviderID, &f.AgentID, &f.Category, &f.Score,
			&f.Comment, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// InsertFeedback records a rating event.
func (s *Store) InsertFeedback(ctx context.Context, f Feedback) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO feedback
		(id, provider_id, agent_id, category, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.ProviderID, f.AgentID, f.Category, f.Score, f.Comment, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// ApplyReputationDelta updates a provider's stored trust score and
// interaction counters after a batch flush.
func (s *Store) ApplyReputationDelta(ctx context.Context, providerID string, newScore float64, interactions int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE providers
		SET trust_score = $2, total_requests = total_requests + $3
		WHERE id = $1`, providerID, newScore, interactions)
	if err != nil {
		return fmt.Errorf("apply reputation delta for %s: %w", providerID, err)
	}
	return nil
}

// ExpiredBudgets returns every budget whose reset boundary has passed.
func (s *Store) ExpiredBudgets(ctx context.Context, now time.Time) ([]Budget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, account_id, limit_usd, spent_usd,
		period_type, reset_at FROM budgets WHERE reset_at <= $1`, now)
	if err != nil {
		return nil, fmt.Errorf("query expired budgets: %w", err)
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.AccountID, &b.LimitUSD, &b.SpentUSD,
			&b.PeriodType, &b.ResetAt); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// BudgetsByAccount returns an account's budget ledgers.
func (s *Store) BudgetsByAccount(ctx context.Context, accountID string) ([]Budget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, account_id, limit_usd, spent_usd,
		period_type, reset_at FROM budgets WHERE account_id = $1 ORDER BY period_type`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query budgets for %s: %w", accountID, err)
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.AccountID, &b.LimitUSD, &b.SpentUSD,
			&b.PeriodType, &b.ResetAt); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// ResetBudget atomically zeroes spend and advances the reset boundary.
func (s *Store) ResetBudget(ctx context.Context, id string, nextReset time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE budgets
		SET spent_usd = 0, reset_at = $2 WHERE id = $1`, id, nextReset)
	if err != nil {
		return fmt.Errorf("reset budget %s: %w", id, err)
	}
	return nil
}

// AccountByKeyHash looks up an account by its API key hash, or nil when
// no account matches.
func (s *Store) AccountByKeyHash(ctx context.Context, keyHash string) (*Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx, `SELECT id, email, plan, api_key_hash,
		daily_limit, routing_fee_pct FROM accounts WHERE api_key_hash = $1`,
		keyHash).Scan(&a.ID, &a.Email, &a.Plan, &a.APIKeyHash, &a.DailyLimit, &a.RoutingFeePct)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	return &a, nil
}
