package repository

import (
	"context"
	"fmt"
	"strings"

	"digi-merch/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// entitlementRepository implements EntitlementRepository using PostgreSQL.
type entitlementRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewEntitlementRepository creates a new PostgreSQL-backed entitlement
// repository.
func NewEntitlementRepository(pool *pgxpool.Pool, logger zerolog.Logger) EntitlementRepository {
	return &entitlementRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "entitlement").Logger(),
	}
}

// Upsert creates or replaces the entitlement row for an email. Last write
// wins; recompute is the only writer of the full row.
func (r *entitlementRepository) Upsert(ctx context.Context, entitlement *model.Entitlement) error {
	query := `
		INSERT INTO buyer_entitlements (email, approved_product_count, download_limit, download_used, is_unlimited)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			approved_product_count = EXCLUDED.approved_product_count,
			download_limit = EXCLUDED.download_limit,
			download_used = EXCLUDED.download_used,
			is_unlimited = EXCLUDED.is_unlimited
	`

	_, err := r.pool.Exec(ctx, query,
		strings.ToLower(entitlement.Email),
		entitlement.ApprovedProductCount,
		entitlement.DownloadLimit,
		entitlement.DownloadUsed,
		entitlement.IsUnlimited,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("email", entitlement.Email).
			Msg("failed to upsert entitlement")
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}

	r.logger.Debug().
		Str("email", entitlement.Email).
		Int("approved_product_count", entitlement.ApprovedProductCount).
		Bool("is_unlimited", entitlement.IsUnlimited).
		Msg("entitlement upserted")

	return nil
}

// GetByEmail retrieves the entitlement for an email.
func (r *entitlementRepository) GetByEmail(ctx context.Context, email string) (*model.Entitlement, error) {
	query := `
		SELECT email, approved_product_count, download_limit, download_used, is_unlimited
		FROM buyer_entitlements
		WHERE email = $1
	`

	var e model.Entitlement
	err := r.pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(
		&e.Email,
		&e.ApprovedProductCount,
		&e.DownloadLimit,
		&e.DownloadUsed,
		&e.IsUnlimited,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("email", email).Msg("entitlement not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("email", email).Msg("failed to query entitlement")
		return nil, fmt.Errorf("failed to query entitlement: %w", err)
	}

	return &e, nil
}

// IncrementUsage atomically bumps download_used and returns the new value.
// Concurrent redemptions may both pass the cap check before either lands
// here; the increment itself never corrupts the counter.
func (r *entitlementRepository) IncrementUsage(ctx context.Context, email string) (int, error) {
	query := `
		UPDATE buyer_entitlements
		SET download_used = download_used + 1
		WHERE email = $1
		RETURNING download_used
	`

	var used int
	err := r.pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(&used)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("no entitlement for %s", email)
		}
		r.logger.Error().Err(err).Str("email", email).Msg("failed to increment download usage")
		return 0, fmt.Errorf("failed to increment download usage: %w", err)
	}

	return used, nil
}
