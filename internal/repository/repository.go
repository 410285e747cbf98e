package repository

import (
	"context"

	"digi-merch/internal/model"

	"github.com/google/uuid"
)

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// Create inserts a new order. A uniqueness violation on the serial
	// column is returned as model.ErrSerialConflict so the allocator can
	// retry; any other failure is fatal.
	Create(ctx context.Context, order *model.Order) error

	// GetBySerial retrieves an order by serial number. Returns (nil, nil)
	// when no order matches.
	GetBySerial(ctx context.Context, serialNo string) (*model.Order, error)

	// GetByEmailAndSerial retrieves an order by lower-cased buyer email
	// and serial number. Returns (nil, nil) when no order matches.
	GetByEmailAndSerial(ctx context.Context, email, serialNo string) (*model.Order, error)

	// ListSerialsByPrefix returns every serial starting with the given
	// month prefix.
	ListSerialsByPrefix(ctx context.Context, prefix string) ([]string, error)

	// List retrieves orders newest-first with pagination support.
	List(ctx context.Context, limit, offset int) ([]model.Order, error)

	// ListApprovedByEmail returns the buyer's orders whose status ledger
	// carries the approved review tag.
	ListApprovedByEmail(ctx context.Context, email string) ([]model.Order, error)

	// UpdateStatusTags replaces the order's status ledger.
	UpdateStatusTags(ctx context.Context, id uuid.UUID, statusTags string) error

	// UpdateProducts replaces the order's product list.
	UpdateProducts(ctx context.Context, id uuid.UUID, products []model.OrderProduct) error

	// UpdateReference sets the payment reference recorded by the gateway.
	UpdateReference(ctx context.Context, id uuid.UUID, referenceNo string) error
}

// EntitlementRepository defines the interface for buyer entitlement rows.
type EntitlementRepository interface {
	// Upsert creates or replaces the entitlement for an email.
	Upsert(ctx context.Context, entitlement *model.Entitlement) error

	// GetByEmail retrieves the entitlement for a lower-cased email.
	// Returns (nil, nil) when no row exists.
	GetByEmail(ctx context.Context, email string) (*model.Entitlement, error)

	// IncrementUsage atomically bumps download_used and returns the new
	// value.
	IncrementUsage(ctx context.Context, email string) (int, error)
}
