package service

import (
	"context"
	"fmt"
	"strings"

	"digi-merch/internal/model"
	"digi-merch/internal/repository"

	"github.com/rs/zerolog"
)

// entitlementService implements EntitlementService.
type entitlementService struct {
	orderRepo       repository.OrderRepository
	entitlementRepo repository.EntitlementRepository
	logger          zerolog.Logger
}

// NewEntitlementService creates a new entitlement calculator.
func NewEntitlementService(
	orderRepo repository.OrderRepository,
	entitlementRepo repository.EntitlementRepository,
	logger zerolog.Logger,
) EntitlementService {
	return &entitlementService{
		orderRepo:       orderRepo,
		entitlementRepo: entitlementRepo,
		logger:          logger.With().Str("service", "entitlement").Logger(),
	}
}

// Recompute rebuilds the buyer's entitlement from the distinct product
// names across their approved orders and persists it.
//
// download_used is reset to 0 on every recompute. Whether the reset is a
// deliberate goodwill allowance or an accident of the original workflow is
// unresolved; the behavior is kept and confined to this one method.
func (s *entitlementService) Recompute(ctx context.Context, email string) (*model.Entitlement, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	orders, err := s.orderRepo.ListApprovedByEmail(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("failed to list approved orders")
		return nil, fmt.Errorf("failed to list approved orders: %w", err)
	}

	distinct := make(map[string]struct{})
	for _, order := range orders {
		for _, product := range order.Products {
			distinct[model.NormalizeName(product.Name)] = struct{}{}
		}
	}

	entitlement := &model.Entitlement{
		Email:                email,
		ApprovedProductCount: len(distinct),
		DownloadLimit:        model.DefaultDownloadLimit,
		DownloadUsed:         0,
		IsUnlimited:          len(distinct) >= model.UnlimitedThreshold,
	}

	if err := s.entitlementRepo.Upsert(ctx, entitlement); err != nil {
		return nil, fmt.Errorf("failed to persist entitlement: %w", err)
	}

	s.logger.Info().
		Str("email", email).
		Int("approved_product_count", entitlement.ApprovedProductCount).
		Bool("is_unlimited", entitlement.IsUnlimited).
		Msg("entitlement recomputed")

	return entitlement, nil
}

// GetOrRecompute loads the stored entitlement, deriving it when no row
// exists yet (e.g. orders approved before the entitlement table existed).
func (s *entitlementService) GetOrRecompute(ctx context.Context, email string) (*model.Entitlement, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	entitlement, err := s.entitlementRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load entitlement: %w", err)
	}
	if entitlement != nil {
		return entitlement, nil
	}

	s.logger.Debug().Str("email", email).Msg("no entitlement row, recomputing")
	return s.Recompute(ctx, email)
}
