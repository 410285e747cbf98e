package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"digi-merch/internal/mail"
	"digi-merch/internal/model"
	"digi-merch/internal/payment"
	"digi-merch/internal/repository"
	"digi-merch/internal/sequence"
	"digi-merch/internal/serial"
	"digi-merch/internal/status"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Intake channels and their payment-reference formats.
const (
	ChannelGcash    = "gcash"
	ChannelBank     = "bank"
	ChannelCard     = "card"
	ChannelCheckout = "checkout"
)

var (
	emailPattern         = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	trailingDigits       = regexp.MustCompile(`(\d+)\s*$`)
	bankReferencePattern = regexp.MustCompile(`^\d{10,24}$`)
	cardReferencePattern = regexp.MustCompile(`^#[A-Za-z0-9]{8,24}$`)
)

// orderService implements OrderService.
type orderService struct {
	orderRepo repository.OrderRepository
	seq       sequence.Sequence
	sender    mail.Sender
	gateway   payment.Client
	adminTo   string
	logger    zerolog.Logger
}

// NewOrderService creates a new order intake service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	seq sequence.Sequence,
	sender mail.Sender,
	gateway payment.Client,
	adminTo string,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		seq:       seq,
		sender:    sender,
		gateway:   gateway,
		adminTo:   adminTo,
		logger:    logger.With().Str("service", "order").Logger(),
	}
}

// Submit validates a purchase claim, allocates a serial, persists the
// order, and dispatches the notification emails. The HTTP outcome is
// decided once the row is durably created; email delivery is best-effort
// and recorded on the status ledger.
func (s *orderService) Submit(ctx context.Context, req *model.SubmitOrderRequest) (*model.SubmitOrderResponse, error) {
	order, err := s.createOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	emailStatus := s.notify(ctx, order)

	return &model.SubmitOrderResponse{
		SerialNo:    order.SerialNo,
		SequenceNo:  order.SequenceNo,
		CreatedAt:   order.CreatedAt,
		EmailStatus: emailStatus,
	}, nil
}

// Checkout submits a gateway-channel order and asks the payment gateway
// for a hosted checkout URL carrying the serial as correlation metadata.
func (s *orderService) Checkout(ctx context.Context, req *model.SubmitOrderRequest) (*model.CheckoutResponse, error) {
	req.Channel = ChannelCheckout
	if req.PaymentPortalUsed == "" {
		req.PaymentPortalUsed = "checkout"
	}

	order, err := s.createOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Order %s (%d items)", order.SerialNo, len(order.Products))
	checkoutURL, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		Amount:      order.TotalAmount,
		Description: description,
		BuyerEmail:  order.BuyerEmail,
		BuyerName:   order.BuyerUsername,
		Metadata: map[string]string{
			"serial_no": order.SerialNo,
		},
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("serial_no", order.SerialNo).
			Msg("failed to create checkout session")
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &model.CheckoutResponse{
		SerialNo:    order.SerialNo,
		CheckoutURL: checkoutURL,
	}, nil
}

// createOrder runs validation and the serial allocation loop, persisting
// the new pending order.
func (s *orderService) createOrder(ctx context.Context, req *model.SubmitOrderRequest) (*model.Order, error) {
	if err := s.validateSubmit(req); err != nil {
		return nil, err
	}

	now := time.Now()

	totalAmount := req.TotalAmount
	if totalAmount == 0 {
		for _, p := range req.Products {
			totalAmount += p.Amount
		}
	}

	seqNo := s.nextSequence(ctx)

	order := &model.Order{
		ID:                uuid.New(),
		SequenceNo:        seqNo,
		BuyerUsername:     strings.TrimSpace(req.Username),
		BuyerEmail:        strings.ToLower(strings.TrimSpace(req.Email)),
		Products:          req.Products,
		TotalAmount:       totalAmount,
		ReferenceNo:       normalizeReference(req.Channel, req.ReferenceNo),
		PaymentPortalUsed: req.PaymentPortalUsed,
		PaymentDetailUsed: req.PaymentDetailUsed,
		StatusTags:        status.TagPending,
		CreatedAt:         now,
	}

	if err := s.allocateAndCreate(ctx, order, now); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("serial_no", order.SerialNo).
		Str("buyer_email", order.BuyerEmail).
		Int("product_count", len(order.Products)).
		Msg("order created successfully")

	return order, nil
}

// allocateAndCreate runs the optimistic serial allocation loop: scan the
// month's serials for the highest suffix, then insert with increasing
// suffixes until one lands or the attempts run out. Only a conflict
// on the serial column is retried; any other insert error is fatal.
func (s *orderService) allocateAndCreate(ctx context.Context, order *model.Order, now time.Time) error {
	monthPrefix := serial.MonthPrefix(now)
	existing, err := s.orderRepo.ListSerialsByPrefix(ctx, monthPrefix)
	if err != nil {
		return fmt.Errorf("failed to scan existing serials: %w", err)
	}

	maxSuffix := serial.MaxSuffix(existing)

	for attempt := 1; attempt <= serial.MaxAttempts; attempt++ {
		order.SerialNo = serial.Format(now, maxSuffix+attempt)

		err := s.orderRepo.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, model.ErrSerialConflict) {
			return fmt.Errorf("failed to create order: %w", err)
		}

		s.logger.Warn().
			Str("serial_no", order.SerialNo).
			Int("attempt", attempt).
			Msg("serial collision, retrying with next suffix")
	}

	s.logger.Error().
		Str("month_prefix", monthPrefix).
		Int("attempts", serial.MaxAttempts).
		Msg("serial allocation exhausted")

	return model.ErrSerialExhausted
}

// nextSequence fetches the display sequence number. The counter is
// informational, so failures degrade to 0 rather than blocking intake.
func (s *orderService) nextSequence(ctx context.Context) int64 {
	if s.seq == nil {
		return 0
	}
	n, err := s.seq.Next(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sequence counter unavailable, using 0")
		return 0
	}
	return n
}

// notify dispatches the buyer and admin notification emails concurrently,
// records each outcome on the status ledger, and returns the combined
// outcome string.
func (s *orderService) notify(ctx context.Context, order *model.Order) string {
	type sendResult struct {
		tag string
		err error
	}

	send := func(prefix, to, subject, html string, out chan<- sendResult) {
		if to == "" {
			out <- sendResult{tag: prefix + ":skipped"}
			return
		}
		err := s.sender.Send(ctx, mail.Message{To: to, Subject: subject, HTML: html})
		if err != nil {
			out <- sendResult{tag: fmt.Sprintf("%s:failed:%s", prefix, summarize(err)), err: err}
			return
		}
		out <- sendResult{tag: prefix + ":sent"}
	}

	customerChan := make(chan sendResult, 1)
	adminChan := make(chan sendResult, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		send("customer", order.BuyerEmail,
			mail.OrderReceivedSubject(order.SerialNo),
			mail.OrderReceivedHTML(order), customerChan)
	}()
	go func() {
		defer wg.Done()
		send("admin", s.adminTo,
			mail.AdminAlertSubject(order.SerialNo),
			mail.AdminAlertHTML(order), adminChan)
	}()
	wg.Wait()

	customer := <-customerChan
	admin := <-adminChan

	tags := order.StatusTags
	tags = status.Append(tags, customer.tag)
	tags = status.Append(tags, admin.tag)
	order.StatusTags = tags

	if err := s.orderRepo.UpdateStatusTags(ctx, order.ID, tags); err != nil {
		s.logger.Error().
			Err(err).
			Str("serial_no", order.SerialNo).
			Msg("failed to record email outcome tags")
	}

	return customer.tag + " | " + admin.tag
}

// GetBySerial retrieves an order by serial.
func (s *orderService) GetBySerial(ctx context.Context, serialNo string) (*model.Order, error) {
	order, err := s.orderRepo.GetBySerial(ctx, serialNo)
	if err != nil {
		s.logger.Error().Err(err).Str("serial_no", serialNo).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// List retrieves orders newest-first, optionally filtered by derived
// status. Filtering happens after the page fetch because the ledger is
// free text.
func (s *orderService) List(ctx context.Context, limit, offset int, statusFilter string) ([]model.Order, error) {
	orders, err := s.orderRepo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	if statusFilter == "" {
		return orders, nil
	}

	filtered := make([]model.Order, 0, len(orders))
	for _, order := range orders {
		if string(status.Derive(order.StatusTags)) == statusFilter {
			filtered = append(filtered, order)
		}
	}
	return filtered, nil
}

// validateSubmit collects every validation failure so the caller sees the
// exact list of reasons at once.
func (s *orderService) validateSubmit(req *model.SubmitOrderRequest) error {
	if req == nil {
		return model.NewValidationError([]string{"request body is required"})
	}

	var reasons []string

	if strings.TrimSpace(req.Username) == "" {
		reasons = append(reasons, "username is required")
	}

	if !emailPattern.MatchString(strings.TrimSpace(req.Email)) {
		reasons = append(reasons, "email must be a valid address")
	}

	if len(req.Products) == 0 {
		reasons = append(reasons, "at least one product is required")
	}
	hasPositive := false
	for i, p := range req.Products {
		if strings.TrimSpace(p.Name) == "" {
			reasons = append(reasons, fmt.Sprintf("product %d: name is required", i))
		}
		if p.Amount < 0 {
			reasons = append(reasons, fmt.Sprintf("product %d: amount must not be negative", i))
		}
		if p.Amount > 0 {
			hasPositive = true
		}
	}
	if len(req.Products) > 0 && !hasPositive {
		reasons = append(reasons, "at least one product must have a positive amount")
	}

	total := req.TotalAmount
	if total == 0 {
		for _, p := range req.Products {
			total += p.Amount
		}
	}
	if total <= 0 {
		reasons = append(reasons, "total amount must be greater than zero")
	}

	if reason := validateReference(req.Channel, req.ReferenceNo); reason != "" {
		reasons = append(reasons, reason)
	}

	if len(reasons) > 0 {
		s.logger.Warn().
			Strs("reasons", reasons).
			Msg("submission rejected by validation")
		return model.NewValidationError(reasons)
	}

	return nil
}

// validateReference checks the channel-dependent payment reference format.
// The gateway channel gets its reference later from the webhook.
func validateReference(channel, reference string) string {
	reference = strings.TrimSpace(reference)

	switch channel {
	case ChannelCheckout:
		return ""
	case ChannelBank:
		if !bankReferencePattern.MatchString(reference) {
			return "reference number must be 10 to 24 digits for bank transfers"
		}
	case ChannelCard:
		if !cardReferencePattern.MatchString(reference) {
			return "reference number must be # followed by 8 to 24 alphanumerics for card payments"
		}
	default:
		// GCash-style intake: the last 6 digits of whatever the buyer
		// pasted are the reference.
		match := trailingDigits.FindStringSubmatch(reference)
		if match == nil || len(match[1]) < 6 {
			return "reference number must end in at least 6 digits"
		}
	}
	return ""
}

// normalizeReference canonicalises the stored reference for the channel.
func normalizeReference(channel, reference string) string {
	reference = strings.TrimSpace(reference)
	if channel == ChannelGcash || channel == "" {
		if match := trailingDigits.FindStringSubmatch(reference); match != nil && len(match[1]) >= 6 {
			digits := match[1]
			return digits[len(digits)-6:]
		}
	}
	return reference
}

// summarize flattens an error into a short tag-safe string.
func summarize(err error) string {
	msg := strings.ReplaceAll(err.Error(), "|", "/")
	if len(msg) > 80 {
		msg = msg[:80]
	}
	return msg
}
