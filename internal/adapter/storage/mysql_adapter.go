package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mvribeiro/zapstore/internal/core/checkout"
	"github.com/mvribeiro/zapstore/internal/core/domain"
	"github.com/mvribeiro/zapstore/internal/core/inventory"
	"github.com/mvribeiro/zapstore/internal/port"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// CreateOrder places an order inside one transaction: store check, catalog
// load, conditional stock decrements, aggregate build, row inserts. Any
// failure rolls the whole thing back, so a rejected placement leaves stock
// and orders untouched.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	if len(draft.Lines) == 0 {
		return domain.Order{}, checkout.ErrEmptyDraft
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM stores WHERE id = ?`, draft.StoreID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrStoreNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query store: %w", err)
	}

	variations, err := loadVariations(ctx, tx, draft.StoreID, draft.Lines)
	if err != nil {
		return domain.Order{}, err
	}

	// Refuse lines the store cannot price before touching any stock row.
	for _, line := range draft.Lines {
		if _, ok := variations[line.VariationID]; !ok {
			return domain.Order{}, &domain.VariationNotFoundError{
				VariationID: line.VariationID,
				StoreID:     draft.StoreID,
			}
		}
	}

	if err := inventory.ReserveAndDecrement(ctx, &txStockStore{tx: tx}, draft.Lines); err != nil {
		return domain.Order{}, err
	}

	order, err := checkout.Build(draft, variations)
	if err != nil {
		return domain.Order{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, store_id, customer_name, customer_phone, customer_email, status, total, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.StoreID, order.CustomerName, order.CustomerPhone,
		nullString(order.CustomerEmail), string(order.Status), order.Total,
		nullString(order.Notes), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_variation_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			item.ID, item.OrderID, item.ProductVariationID, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return domain.Order{}, fmt.Errorf("insert order item %s: %w", item.ProductVariationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

func (m *MySQLAdapter) FindByID(ctx context.Context, id string) (domain.Order, error) {
	var (
		order  domain.Order
		status string
		email  sql.NullString
		notes  sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, store_id, customer_name, customer_phone, customer_email, status, total, notes, created_at, updated_at
		FROM orders WHERE id = ?`, id,
	).Scan(&order.ID, &order.StoreID, &order.CustomerName, &order.CustomerPhone,
		&email, &status, &order.Total, &notes, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order: %w", err)
	}
	order.CustomerEmail = email.String
	order.Notes = notes.String
	order.Status = domain.OrderStatus(status)

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, product_variation_id, quantity, unit_price
		FROM order_items WHERE order_id = ?`, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductVariationID, &item.Quantity, &item.UnitPrice); err != nil {
			return domain.Order{}, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("iterate order items: %w", err)
	}
	return order, nil
}

func (m *MySQLAdapter) ListByStore(ctx context.Context, storeID string, filter port.ListFilter) ([]domain.Order, int, error) {
	where := []string{"store_id = ?"}
	args := []any{storeID}

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CustomerName != "" {
		where = append(where, "customer_name LIKE ?")
		args = append(args, "%"+filter.CustomerName+"%")
	}
	if filter.CustomerPhone != "" {
		where = append(where, "customer_phone = ?")
		args = append(args, filter.CustomerPhone)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	pageArgs := append(args, filter.Limit, offset)
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, store_id, customer_name, customer_phone, customer_email, status, total, notes, created_at, updated_at
		FROM orders WHERE `+cond+`
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			order  domain.Order
			status string
			email  sql.NullString
			notes  sql.NullString
		)
		if err := rows.Scan(&order.ID, &order.StoreID, &order.CustomerName, &order.CustomerPhone,
			&email, &status, &order.Total, &notes, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		order.CustomerEmail = email.String
		order.Notes = notes.String
		order.Status = domain.OrderStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

func (m *MySQLAdapter) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW(3) WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Zero affected rows is ambiguous on MySQL: either the order is
		// missing or the row already held these exact values.
		var one int
		err := m.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		if err != nil {
			return domain.Order{}, fmt.Errorf("query order: %w", err)
		}
	}

	return m.FindByID(ctx, id)
}

// txStockStore is the inventory ledger's view of the open transaction.
// The decrement is a single conditional UPDATE so two racing placements
// for the last unit can never both pass the stock check.
type txStockStore struct {
	tx *sql.Tx
}

func (s *txStockStore) TryDecrement(ctx context.Context, variationID string, qty int) (bool, int, error) {
	result, err := s.tx.ExecContext(ctx, `
		UPDATE product_variations
		SET stock = stock - ?, updated_at = NOW(3)
		WHERE id = ? AND stock >= ?`,
		qty, variationID, qty,
	)
	if err != nil {
		return false, 0, fmt.Errorf("update stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 1 {
		return true, 0, nil
	}

	// Locking read: under REPEATABLE READ a plain SELECT would report the
	// transaction's snapshot, not the committed stock that made the
	// conditional update miss.
	var available int
	err = s.tx.QueryRowContext(ctx, `SELECT stock FROM product_variations WHERE id = ? FOR UPDATE`, variationID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("query stock: %w", err)
	}
	return false, available, nil
}

func loadVariations(ctx context.Context, tx *sql.Tx, storeID string, lines []domain.Line) (map[string]domain.ProductVariation, error) {
	ids := make([]any, 0, len(lines)+1)
	ids = append(ids, storeID)
	for _, l := range lines {
		ids = append(ids, l.VariationID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(lines)), ",")

	rows, err := tx.QueryContext(ctx, `
		SELECT pv.id, pv.product_id, pv.color, pv.size, pv.price, pv.discount_price, pv.stock
		FROM product_variations pv
		JOIN products p ON p.id = pv.product_id
		WHERE p.store_id = ? AND pv.id IN (`+placeholders+`)`, ids...)
	if err != nil {
		return nil, fmt.Errorf("query variations: %w", err)
	}
	defer rows.Close()

	variations := make(map[string]domain.ProductVariation, len(lines))
	for rows.Next() {
		var (
			v        domain.ProductVariation
			discount sql.NullInt64
		)
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Color, &v.Size, &v.Price, &discount, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variation: %w", err)
		}
		if discount.Valid {
			v.DiscountPrice = &discount.Int64
		}
		variations[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variations: %w", err)
	}
	return variations, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
