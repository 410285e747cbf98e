package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"digi-merch/internal/catalog"
	"digi-merch/internal/mail"
	"digi-merch/internal/model"
	"digi-merch/internal/payment"
	"digi-merch/internal/repository"
	"digi-merch/internal/status"
	"digi-merch/internal/token"

	"github.com/rs/zerolog"
)

// Review actions accepted from the admin surface.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// reviewService implements ReviewService.
type reviewService struct {
	orderRepo    repository.OrderRepository
	catalog      *catalog.Catalog
	entitlements EntitlementService
	tokens       *token.Service
	sender       mail.Sender
	baseURL      string
	logger       zerolog.Logger
}

// NewReviewService creates a new review/approval service.
func NewReviewService(
	orderRepo repository.OrderRepository,
	cat *catalog.Catalog,
	entitlements EntitlementService,
	tokens *token.Service,
	sender mail.Sender,
	baseURL string,
	logger zerolog.Logger,
) ReviewService {
	return &reviewService{
		orderRepo:    orderRepo,
		catalog:      cat,
		entitlements: entitlements,
		tokens:       tokens,
		sender:       sender,
		baseURL:      baseURL,
		logger:       logger.With().Str("service", "review").Logger(),
	}
}

// Review applies an approve/reject decision to an order. Approval is
// all-or-nothing: every product must resolve to a delivery link (override
// map first, catalog fallback second) or nothing is persisted.
func (s *reviewService) Review(ctx context.Context, serialNo string, req *model.ReviewRequest) (*model.ReviewResponse, error) {
	if req == nil || (req.Action != ActionApprove && req.Action != ActionReject) {
		return nil, model.ErrInvalidAction
	}

	order, err := s.orderRepo.GetBySerial(ctx, serialNo)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	if req.Action == ActionReject {
		return s.reject(ctx, order)
	}
	return s.approve(ctx, order, req.DeliveryLinks)
}

func (s *reviewService) reject(ctx context.Context, order *model.Order) (*model.ReviewResponse, error) {
	tags := status.Append(order.StatusTags, status.TagRejected)
	if err := s.orderRepo.UpdateStatusTags(ctx, order.ID, tags); err != nil {
		return nil, fmt.Errorf("failed to record rejection: %w", err)
	}

	s.logger.Info().
		Str("serial_no", order.SerialNo).
		Msg("order rejected")

	return &model.ReviewResponse{
		SerialNo: order.SerialNo,
		Status:   string(status.Rejected),
	}, nil
}

func (s *reviewService) approve(ctx context.Context, order *model.Order, overrides map[string]string) (*model.ReviewResponse, error) {
	resolved, unresolved := s.resolveLinks(order.Products, overrides)
	if len(unresolved) > 0 {
		s.logger.Warn().
			Str("serial_no", order.SerialNo).
			Strs("unresolved", unresolved).
			Msg("approval blocked by unresolved delivery links")
		return nil, &model.UnresolvedProductsError{Names: unresolved}
	}

	if err := s.orderRepo.UpdateProducts(ctx, order.ID, resolved); err != nil {
		return nil, fmt.Errorf("failed to persist resolved products: %w", err)
	}
	order.Products = resolved

	tags := status.Append(order.StatusTags, status.TagApproved)
	if err := s.orderRepo.UpdateStatusTags(ctx, order.ID, tags); err != nil {
		return nil, fmt.Errorf("failed to record approval: %w", err)
	}
	order.StatusTags = tags

	if _, err := s.entitlements.Recompute(ctx, order.BuyerEmail); err != nil {
		// The approval itself already landed; an entitlement failure is
		// recoverable on the next redemption's lazy recompute.
		s.logger.Error().
			Err(err).
			Str("serial_no", order.SerialNo).
			Msg("entitlement recompute failed after approval")
	}

	s.sendAccessLink(ctx, order)

	s.logger.Info().
		Str("serial_no", order.SerialNo).
		Str("buyer_email", order.BuyerEmail).
		Msg("order approved")

	return &model.ReviewResponse{
		SerialNo: order.SerialNo,
		Status:   string(status.Approved),
	}, nil
}

// resolveLinks fills in missing file links from the override map or the
// catalog, returning the resolved list and the names that stayed empty.
func (s *reviewService) resolveLinks(products []model.OrderProduct, overrides map[string]string) ([]model.OrderProduct, []string) {
	resolved := make([]model.OrderProduct, len(products))
	var unresolved []string

	for i, product := range products {
		resolved[i] = product
		if product.FileLink != "" {
			continue
		}

		key := model.NormalizeName(product.Name)
		if link, ok := overrides[key]; ok && link != "" {
			resolved[i].FileLink = link
			continue
		}
		if entry, ok := s.catalog.Lookup(product.Name); ok && entry.FileLink != "" {
			resolved[i].FileLink = entry.FileLink
			continue
		}

		unresolved = append(unresolved, product.Name)
	}

	return resolved, unresolved
}

// sendAccessLink emails the buyer the signed delivery URL. Failures are
// recorded on the ledger, never propagated: the approval already stands.
func (s *reviewService) sendAccessLink(ctx context.Context, order *model.Order) {
	tok, err := s.tokens.Issue(token.Payload{
		Email:    order.BuyerEmail,
		SerialNo: order.SerialNo,
	})
	if err != nil {
		s.recordEmailOutcome(ctx, order, "customer:failed:token-issue")
		s.logger.Error().Err(err).Str("serial_no", order.SerialNo).Msg("failed to issue delivery token")
		return
	}

	deliveryURL := fmt.Sprintf("%s/api/delivery?access=%s", s.baseURL, url.QueryEscape(tok))

	err = s.sender.Send(ctx, mail.Message{
		To:      order.BuyerEmail,
		Subject: mail.AccessLinkSubject(order.SerialNo),
		HTML:    mail.AccessLinkHTML(order, deliveryURL),
	})
	if err != nil {
		s.recordEmailOutcome(ctx, order, "customer:failed:"+summarize(err))
		return
	}
	s.recordEmailOutcome(ctx, order, "customer:sent")
}

func (s *reviewService) recordEmailOutcome(ctx context.Context, order *model.Order, tag string) {
	tags := status.Append(order.StatusTags, tag)
	order.StatusTags = tags
	if err := s.orderRepo.UpdateStatusTags(ctx, order.ID, tags); err != nil {
		s.logger.Error().
			Err(err).
			Str("serial_no", order.SerialNo).
			Msg("failed to record email outcome tag")
	}
}

// Archive appends the archival tag. Derived status is untouched.
func (s *reviewService) Archive(ctx context.Context, serialNo string) error {
	order, err := s.orderRepo.GetBySerial(ctx, serialNo)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return model.ErrOrderNotFound
	}

	tags := status.Append(order.StatusTags, status.TagArchived)
	if err := s.orderRepo.UpdateStatusTags(ctx, order.ID, tags); err != nil {
		return fmt.Errorf("failed to archive order: %w", err)
	}

	s.logger.Info().Str("serial_no", serialNo).Msg("order archived")
	return nil
}

// FulfillPayment reacts to a payment-confirmed webhook event. Duplicate
// deliveries are absorbed by inspecting the status ledger before any
// side effect.
func (s *reviewService) FulfillPayment(ctx context.Context, event *payment.WebhookEvent) error {
	if event.Type != payment.EventPaymentPaid {
		s.logger.Debug().Str("type", event.Type).Msg("ignoring webhook event type")
		return nil
	}
	if event.SerialNo == "" {
		return fmt.Errorf("paid event carried no serial_no metadata")
	}

	order, err := s.orderRepo.GetBySerial(ctx, event.SerialNo)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return model.ErrOrderNotFound
	}

	// Idempotency: an order already paid or approved is acknowledged
	// without side effects.
	if status.Has(order.StatusTags, status.TagPaid) || status.Derive(order.StatusTags) == status.Approved {
		s.logger.Info().
			Str("serial_no", order.SerialNo).
			Msg("duplicate payment webhook ignored")
		return nil
	}

	if event.ReferenceNo != "" && order.ReferenceNo == "" {
		if err := s.orderRepo.UpdateReference(ctx, order.ID, event.ReferenceNo); err != nil {
			s.logger.Error().Err(err).Str("serial_no", order.SerialNo).Msg("failed to record gateway reference")
		}
	}

	tags := status.Append(order.StatusTags, status.TagPaid)
	if err := s.orderRepo.UpdateStatusTags(ctx, order.ID, tags); err != nil {
		return fmt.Errorf("failed to record payment tag: %w", err)
	}
	order.StatusTags = tags

	// Auto-approval: catalog fallback only. Orders whose links cannot all
	// be resolved stay pending for manual review.
	_, err = s.approve(ctx, order, nil)
	if err != nil {
		var unresolvedErr *model.UnresolvedProductsError
		if errors.As(err, &unresolvedErr) {
			s.logger.Warn().
				Str("serial_no", order.SerialNo).
				Strs("unresolved", unresolvedErr.Names).
				Msg("paid order left pending: delivery links unresolved")
			return nil
		}
		return err
	}

	return nil
}
