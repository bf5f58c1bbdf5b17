package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
)

const errDuplicateEntry = 1062

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, sub domain.OrderSubmission) (domain.Order, error) {
	var shipping []byte
	if sub.ShippingAddress != nil {
		b, err := json.Marshal(sub.ShippingAddress)
		if err != nil {
			return domain.Order{}, fmt.Errorf("marshal shipping address: %w", err)
		}
		shipping = b
	}
	billing, err := json.Marshal(sub.BillingAddress)
	if err != nil {
		return domain.Order{}, fmt.Errorf("marshal billing address: %w", err)
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		OrderNumber:   sub.OrderNumber,
		Reference:     sub.Reference,
		CustomerName:  sub.Customer.Name,
		CustomerEmail: sub.Customer.Email,
		PaymentStatus: domain.PaymentStatusPending,
		TotalAmount:   sub.TotalAmount,
		Currency:      sub.Currency,
		CreatedAt:     sub.SubmittedAt,
		UpdatedAt:     sub.SubmittedAt,
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, reference, customer_name, customer_email, customer_phone,
			delivery_option, shipping_address, billing_address, subtotal, shipping_fee, total_amount,
			currency, payment_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderNumber, order.Reference, sub.Customer.Name, sub.Customer.Email, sub.Customer.Phone,
		sub.DeliveryOption, nullableJSON(shipping), billing, sub.Subtotal, sub.ShippingFee, sub.TotalAmount,
		sub.Currency, order.PaymentStatus, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == errDuplicateEntry {
			return domain.Order{}, fmt.Errorf("insert order %s: %w", sub.Reference, domain.ErrDuplicateRequest)
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, line := range sub.Lines {
		var attrs []byte
		if len(line.Attributes) > 0 {
			if attrs, err = json.Marshal(line.Attributes); err != nil {
				return domain.Order{}, fmt.Errorf("marshal attributes: %w", err)
			}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, variant_id, attributes, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID, line.ProductID, line.ProductName, line.VariantID, nullableJSON(attrs),
			line.Quantity, line.UnitPrice, line.LineTotal,
		)
		if err != nil {
			return domain.Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit order: %w", err)
	}
	return order, nil
}

func (m *MySQLAdapter) FindOrderByReference(ctx context.Context, reference string) (domain.Order, error) {
	var o domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, order_number, reference, customer_name, customer_email, payment_status,
			total_amount, currency, created_at, updated_at
		FROM orders WHERE reference = ?`, reference,
	).Scan(&o.ID, &o.OrderNumber, &o.Reference, &o.CustomerName, &o.CustomerEmail, &o.PaymentStatus,
		&o.TotalAmount, &o.Currency, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

func (m *MySQLAdapter) MarkPaidIfPending(ctx context.Context, reference string) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = ?, updated_at = NOW(6)
		WHERE reference = ? AND payment_status = ?`,
		domain.PaymentStatusPaid, reference, domain.PaymentStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("update order: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

func (m *MySQLAdapter) GetStock(ctx context.Context, productIDs []int64) (map[int64]domain.Inventory, error) {
	out := make(map[int64]domain.Inventory, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(productIDs)), ",")

	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, stock, version, updated_at
		FROM inventory WHERE product_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inv domain.Inventory
		if err := rows.Scan(&inv.ProductID, &inv.Quantity, &inv.Version, &inv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		out[inv.ProductID] = inv
	}
	return out, rows.Err()
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
