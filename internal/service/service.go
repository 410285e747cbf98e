package service

import (
	"context"

	"digi-merch/internal/model"
	"digi-merch/internal/payment"
)

// OrderService defines operations for order intake.
type OrderService interface {
	// Submit validates a purchase claim, allocates a serial, persists the
	// order, and dispatches the notification emails.
	Submit(ctx context.Context, req *model.SubmitOrderRequest) (*model.SubmitOrderResponse, error)

	// Checkout submits a gateway-channel order and returns the hosted
	// checkout URL for it.
	Checkout(ctx context.Context, req *model.SubmitOrderRequest) (*model.CheckoutResponse, error)

	// GetBySerial retrieves an order by serial. Returns (nil, nil) when
	// no order matches.
	GetBySerial(ctx context.Context, serialNo string) (*model.Order, error)

	// List retrieves orders newest-first, optionally filtered by derived
	// status.
	List(ctx context.Context, limit, offset int, statusFilter string) ([]model.Order, error)
}

// ReviewService defines the admin review operations and webhook
// fulfillment.
type ReviewService interface {
	// Review applies an approve/reject decision to an order.
	Review(ctx context.Context, serialNo string, req *model.ReviewRequest) (*model.ReviewResponse, error)

	// Archive appends the archival tag without touching derived status.
	Archive(ctx context.Context, serialNo string) error

	// FulfillPayment reacts to a payment-confirmed webhook event.
	// Duplicate deliveries are absorbed via the status ledger.
	FulfillPayment(ctx context.Context, event *payment.WebhookEvent) error
}

// EntitlementService computes and serves buyer download entitlements.
type EntitlementService interface {
	// Recompute rebuilds the buyer's entitlement from their approved
	// orders and persists it. Resets download usage.
	Recompute(ctx context.Context, email string) (*model.Entitlement, error)

	// GetOrRecompute loads the stored entitlement, deriving it on the fly
	// when no row exists yet.
	GetOrRecompute(ctx context.Context, email string) (*model.Entitlement, error)
}

// RedemptionService gates download link resolution behind the delivery
// token and the entitlement cap.
type RedemptionService interface {
	// Redeem validates the token, enforces the cap, resolves the file
	// link, and counts the download.
	Redeem(ctx context.Context, req *model.RedeemRequest) (*model.RedeemResponse, error)

	// Delivery returns the access-link landing payload for a token.
	Delivery(ctx context.Context, tok string) (*model.DeliveryResponse, error)
}
