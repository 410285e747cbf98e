package service

import (
	"context"
	"fmt"
	"regexp"

	"digi-merch/internal/model"
	"digi-merch/internal/repository"
	"digi-merch/internal/status"
	"digi-merch/internal/token"

	"github.com/rs/zerolog"
)

// drivePattern matches Google Drive share links so they can be rewritten
// to the direct-download form.
var drivePattern = regexp.MustCompile(`^https://drive\.google\.com/file/d/([A-Za-z0-9_-]+)`)

// redemptionService implements RedemptionService.
type redemptionService struct {
	orderRepo       repository.OrderRepository
	entitlementRepo repository.EntitlementRepository
	entitlements    EntitlementService
	tokens          *token.Service
	logger          zerolog.Logger
}

// NewRedemptionService creates a new download redemption service.
func NewRedemptionService(
	orderRepo repository.OrderRepository,
	entitlementRepo repository.EntitlementRepository,
	entitlements EntitlementService,
	tokens *token.Service,
	logger zerolog.Logger,
) RedemptionService {
	return &redemptionService{
		orderRepo:       orderRepo,
		entitlementRepo: entitlementRepo,
		entitlements:    entitlements,
		tokens:          tokens,
		logger:          logger.With().Str("service", "redemption").Logger(),
	}
}

// Redeem validates the token against the order record, enforces the
// entitlement cap, resolves the product's file link, and counts the
// download.
func (s *redemptionService) Redeem(ctx context.Context, req *model.RedeemRequest) (*model.RedeemResponse, error) {
	payload, err := s.tokens.Verify(req.Token)
	if err != nil {
		return nil, model.ErrInvalidToken
	}

	order, err := s.orderRepo.GetByEmailAndSerial(ctx, payload.Email, payload.SerialNo)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	if status.Derive(order.StatusTags) != status.Approved {
		return nil, model.ErrOrderNotApproved
	}

	entitlement, err := s.entitlements.GetOrRecompute(ctx, order.BuyerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to load entitlement: %w", err)
	}

	if entitlement.Exhausted() {
		s.logger.Warn().
			Str("email", order.BuyerEmail).
			Int("download_used", entitlement.DownloadUsed).
			Int("download_limit", entitlement.DownloadLimit).
			Msg("download limit reached")
		return nil, model.ErrDownloadLimit
	}

	// Product names on the stored order are matched exactly; the emailed
	// download page echoes the stored names back.
	var product *model.OrderProduct
	for i := range order.Products {
		if order.Products[i].Name == req.ProductName {
			product = &order.Products[i]
			break
		}
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}

	if product.FileLink == "" {
		return nil, model.ErrLinkNotConfigured
	}

	redirectURL := directDownloadLink(product.FileLink)

	// The link is served even if persisting the count fails: delivery is
	// at-least-once, and the counter is best-effort under failure.
	if !entitlement.IsUnlimited {
		used, err := s.entitlementRepo.IncrementUsage(ctx, order.BuyerEmail)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("email", order.BuyerEmail).
				Msg("failed to persist download count, serving link anyway")
			entitlement.DownloadUsed++
		} else {
			entitlement.DownloadUsed = used
		}
	}

	s.logger.Info().
		Str("serial_no", order.SerialNo).
		Str("product", product.Name).
		Int("download_used", entitlement.DownloadUsed).
		Msg("download redeemed")

	return &model.RedeemResponse{
		RedirectURL: redirectURL,
		Entitlement: entitlement,
	}, nil
}

// Delivery returns the access-link landing payload: the order's items and
// the buyer's entitlement snapshot.
func (s *redemptionService) Delivery(ctx context.Context, tok string) (*model.DeliveryResponse, error) {
	payload, err := s.tokens.Verify(tok)
	if err != nil {
		return nil, model.ErrInvalidToken
	}

	order, err := s.orderRepo.GetByEmailAndSerial(ctx, payload.Email, payload.SerialNo)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	derived := status.Derive(order.StatusTags)
	if derived != status.Approved {
		return nil, model.ErrOrderNotApproved
	}

	entitlement, err := s.entitlements.GetOrRecompute(ctx, order.BuyerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to load entitlement: %w", err)
	}

	// File links stay server-side; the page redeems per product.
	products := make([]model.OrderProduct, len(order.Products))
	for i, p := range order.Products {
		p.FileLink = ""
		products[i] = p
	}

	return &model.DeliveryResponse{
		SerialNo:    order.SerialNo,
		Status:      string(derived),
		Products:    products,
		Entitlement: entitlement,
	}, nil
}

// directDownloadLink rewrites known share-link shapes to their direct
// download form. Unknown hosts pass through untouched.
func directDownloadLink(link string) string {
	if match := drivePattern.FindStringSubmatch(link); match != nil {
		return "https://drive.google.com/uc?export=download&id=" + match[1]
	}
	return link
}
