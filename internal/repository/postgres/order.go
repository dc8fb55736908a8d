package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/database"
	apperrors "github.com/klarna/sfcc-klarna-payments-sub001/pkg/errors"
)

const orderColumns = `order_no, shopper_key, customer_id, country, currency, locale, total_amount, status,
		       provider_order_id, fraud_status, redirect_url, export_status, confirmation_status, payment_status,
		       captured_amount, settlement, cart, created_at, updated_at`

const (
	insertOrderSQL = `
		INSERT INTO orders (order_no, shopper_key, customer_id, country, currency, locale, total_amount, status,
		                    provider_order_id, fraud_status, redirect_url, export_status, confirmation_status, payment_status,
		                    captured_amount, settlement, cart, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	selectOrderByNoSQL = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE order_no = $1`

	selectOrderByProviderIDSQL = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE provider_order_id = $1`

	updateOrderSQL = `
		UPDATE orders
		SET status = $1, provider_order_id = $2, fraud_status = $3, redirect_url = $4,
		    export_status = $5, confirmation_status = $6, payment_status = $7,
		    captured_amount = $8, settlement = $9, updated_at = $10
		WHERE order_no = $11`

	clearSettlementSQL = `
		UPDATE orders
		SET settlement = NULL, updated_at = $1
		WHERE order_no = $2`
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order into the database.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateOrder", insertOrderSQL)
	defer func() { end(err) }()

	settlementJSON, err := marshalNullable(o.Settlement)
	if err != nil {
		return fmt.Errorf("marshal settlement: %w", err)
	}
	cartJSON, err := marshalNullable(o.Cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	_, err = database.Executor(ctx, r.db).Exec(ctx, insertOrderSQL,
		o.OrderNo,
		o.ShopperKey,
		o.CustomerID,
		o.Country,
		o.Currency,
		o.Locale,
		o.TotalAmount,
		string(o.Status),
		o.ProviderOrderID,
		string(o.FraudStatus),
		o.RedirectURL,
		string(o.ExportStatus),
		string(o.ConfirmationStatus),
		string(o.PaymentStatus),
		o.CapturedAmount,
		settlementJSON,
		cartJSON,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("order %s already exists", o.OrderNo))
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByOrderNo retrieves an order by its local order number.
func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	return r.scanOrder(ctx, "GetOrderByNo", selectOrderByNoSQL, orderNo)
}

// GetByProviderOrderID retrieves an order by the provider's order id.
func (r *OrderRepository) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*domain.Order, error) {
	return r.scanOrder(ctx, "GetOrderByProviderID", selectOrderByProviderIDSQL, providerOrderID)
}

// Update persists the provider annotation and statuses of an order.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateOrder", updateOrderSQL)
	defer func() { end(err) }()

	settlementJSON, err := marshalNullable(o.Settlement)
	if err != nil {
		return fmt.Errorf("marshal settlement: %w", err)
	}

	o.UpdatedAt = time.Now().UTC()

	ct, err := database.Executor(ctx, r.db).Exec(ctx, updateOrderSQL,
		string(o.Status),
		o.ProviderOrderID,
		string(o.FraudStatus),
		o.RedirectURL,
		string(o.ExportStatus),
		string(o.ConfirmationStatus),
		string(o.PaymentStatus),
		o.CapturedAmount,
		settlementJSON,
		o.UpdatedAt,
		o.OrderNo,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", o.OrderNo)
	}
	return nil
}

// ClearSettlement removes stored virtual card data from an order.
func (r *OrderRepository) ClearSettlement(ctx context.Context, orderNo string) (err error) {
	ctx, end := database.TraceQuery(ctx, "ClearOrderSettlement", clearSettlementSQL)
	defer func() { end(err) }()

	ct, err := database.Executor(ctx, r.db).Exec(ctx, clearSettlementSQL, time.Now().UTC(), orderNo)
	if err != nil {
		return fmt.Errorf("clear settlement: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", orderNo)
	}
	return nil
}

func (r *OrderRepository) scanOrder(ctx context.Context, op, query, arg string) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var (
		order                               domain.Order
		status, fraud, export, confirm, pay string
		settlementJSON, cartJSON            []byte
	)

	err = database.Executor(ctx, r.db).QueryRow(ctx, query, arg).Scan(
		&order.OrderNo,
		&order.ShopperKey,
		&order.CustomerID,
		&order.Country,
		&order.Currency,
		&order.Locale,
		&order.TotalAmount,
		&status,
		&order.ProviderOrderID,
		&fraud,
		&order.RedirectURL,
		&export,
		&confirm,
		&pay,
		&order.CapturedAmount,
		&settlementJSON,
		&cartJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", arg)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.FraudStatus = domain.FraudStatus(fraud)
	order.ExportStatus = domain.ExportStatus(export)
	order.ConfirmationStatus = domain.ConfirmationStatus(confirm)
	order.PaymentStatus = domain.PaymentStatus(pay)

	if len(settlementJSON) > 0 {
		if err := json.Unmarshal(settlementJSON, &order.Settlement); err != nil {
			return nil, fmt.Errorf("unmarshal settlement: %w", err)
		}
	}
	if len(cartJSON) > 0 {
		if err := json.Unmarshal(cartJSON, &order.Cart); err != nil {
			return nil, fmt.Errorf("unmarshal cart: %w", err)
		}
	}
	return &order, nil
}

// marshalNullable encodes v as JSON, or returns nil for a nil pointer so
// the column is stored as NULL.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
