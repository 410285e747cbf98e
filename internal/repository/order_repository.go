package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"digi-merch/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create inserts a new order row with its products as JSONB.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	productsJSON, err := json.Marshal(order.Products)
	if err != nil {
		return fmt.Errorf("failed to encode products: %w", err)
	}

	query := `
		INSERT INTO orders (
			id, serial_no, sequence_no, buyer_username, buyer_email,
			products, total_amount, reference_no, payment_portal_used,
			payment_detail_used, status_tags, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.pool.Exec(ctx, query,
		order.ID,
		order.SerialNo,
		order.SequenceNo,
		order.BuyerUsername,
		strings.ToLower(order.BuyerEmail),
		productsJSON,
		order.TotalAmount,
		order.ReferenceNo,
		order.PaymentPortalUsed,
		order.PaymentDetailUsed,
		order.StatusTags,
		order.CreatedAt,
	)
	if err != nil {
		if isSerialConflict(err) {
			r.logger.Warn().
				Str("serial_no", order.SerialNo).
				Msg("serial collision on insert")
			return model.ErrSerialConflict
		}
		r.logger.Error().
			Err(err).
			Str("serial_no", order.SerialNo).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("serial_no", order.SerialNo).
		Msg("order created successfully")

	return nil
}

// isSerialConflict reports whether the error is a unique violation
// attributable to the serial column. Other unique violations stay fatal.
func isSerialConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, "serial")
}

const orderColumns = `
	id, serial_no, sequence_no, buyer_username, buyer_email,
	products, total_amount, reference_no, payment_portal_used,
	payment_detail_used, status_tags, created_at
`

// GetBySerial retrieves an order by serial number.
func (r *orderRepository) GetBySerial(ctx context.Context, serialNo string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE serial_no = $1`

	order, err := r.scanOne(r.pool.QueryRow(ctx, query, serialNo))
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("serial_no", serialNo).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("serial_no", serialNo).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return order, nil
}

// GetByEmailAndSerial retrieves an order by buyer email and serial.
func (r *orderRepository) GetByEmailAndSerial(ctx context.Context, email, serialNo string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE buyer_email = $1 AND serial_no = $2`

	order, err := r.scanOne(r.pool.QueryRow(ctx, query, strings.ToLower(email), serialNo))
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().
				Str("serial_no", serialNo).
				Msg("order not found for buyer")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("serial_no", serialNo).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return order, nil
}

// ListSerialsByPrefix returns every serial matching the month prefix.
func (r *orderRepository) ListSerialsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT serial_no FROM orders WHERE serial_no ILIKE $1 || '%'`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		r.logger.Error().Err(err).Str("prefix", prefix).Msg("failed to query serials")
		return nil, fmt.Errorf("failed to query serials: %w", err)
	}
	defer rows.Close()

	var serials []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan serial row")
			return nil, fmt.Errorf("failed to scan serial: %w", err)
		}
		serials = append(serials, s)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating serial rows")
		return nil, fmt.Errorf("error iterating serials: %w", err)
	}

	return serials, nil
}

// List retrieves orders newest-first with pagination support.
func (r *orderRepository) List(ctx context.Context, limit, offset int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// ListApprovedByEmail returns the buyer's approved orders. The ledger is
// free text, so the filter is a substring match on the review tag.
func (r *orderRepository) ListApprovedByEmail(ctx context.Context, email string) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE buyer_email = $1 AND status_tags ILIKE '%review:approved%'
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, strings.ToLower(email))
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query approved orders")
		return nil, fmt.Errorf("failed to query approved orders: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// UpdateStatusTags replaces the order's status ledger.
func (r *orderRepository) UpdateStatusTags(ctx context.Context, id uuid.UUID, statusTags string) error {
	query := `UPDATE orders SET status_tags = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, statusTags)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update status tags")
		return fmt.Errorf("failed to update status tags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no order with id %s", id)
	}

	return nil
}

// UpdateProducts replaces the order's product list.
func (r *orderRepository) UpdateProducts(ctx context.Context, id uuid.UUID, products []model.OrderProduct) error {
	productsJSON, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("failed to encode products: %w", err)
	}

	query := `UPDATE orders SET products = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, productsJSON)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update products")
		return fmt.Errorf("failed to update products: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no order with id %s", id)
	}

	return nil
}

// UpdateReference sets the payment reference recorded by the gateway.
func (r *orderRepository) UpdateReference(ctx context.Context, id uuid.UUID, referenceNo string) error {
	query := `UPDATE orders SET reference_no = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, referenceNo)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update reference")
		return fmt.Errorf("failed to update reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no order with id %s", id)
	}

	return nil
}

func (r *orderRepository) scanOne(row pgx.Row) (*model.Order, error) {
	var order model.Order
	var productsJSON []byte

	err := row.Scan(
		&order.ID,
		&order.SerialNo,
		&order.SequenceNo,
		&order.BuyerUsername,
		&order.BuyerEmail,
		&productsJSON,
		&order.TotalAmount,
		&order.ReferenceNo,
		&order.PaymentPortalUsed,
		&order.PaymentDetailUsed,
		&order.StatusTags,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(productsJSON, &order.Products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	return &order, nil
}

func (r *orderRepository) scanMany(rows pgx.Rows) ([]model.Order, error) {
	var orders []model.Order
	for rows.Next() {
		order, err := r.scanOne(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
