package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tranvu/mercato/internal/domain"
)

// Postgres implements Querier on a pgx connection pool.
//
// Stock mutations serialize per SKU with SELECT ... FOR UPDATE so two
// concurrent reservations cannot both observe sufficient available stock
// and jointly over-reserve.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed Querier.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const orderColumns = `id, user_id, user_email, address, phone, note,
	total_price_cents, payment_method, payment_status, status, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.UserEmail, &o.Address, &o.Phone, &o.Note,
		&o.TotalPriceCents, &o.Method, &o.PaymentStatus, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

// CreateOrderWithReservation inserts the order, its items, and the stock
// reservation in one transaction. Any shortfall rolls the whole unit back.
func (p *Postgres) CreateOrderWithReservation(ctx context.Context, params InsertOrderParams) (*domain.OrderDetail, []StockShortfall, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, item := range params.Items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}

	order, err := scanOrder(tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, user_email, address, phone, note,
			total_price_cents, payment_method, payment_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+orderColumns,
		params.UserID, params.UserEmail, params.Address, params.Phone, params.Note,
		total, params.Method, domain.PaymentPending, domain.OrderPendingPayment))
	if err != nil {
		return nil, nil, fmt.Errorf("insert order: %w", err)
	}

	orderID := domain.UUIDString(order.ID)

	items := make([]domain.OrderItem, 0, len(params.Items))
	reserve := make([]domain.ReserveItem, 0, len(params.Items))
	for _, in := range params.Items {
		var variation any
		if in.VariationID != "" {
			variation = in.VariationID
		}
		var item domain.OrderItem
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, variation_id,
				product_name, product_image, quantity, unit_price_cents, total_price_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, order_id, product_id, variation_id, product_name,
				product_image, quantity, unit_price_cents, total_price_cents`,
			orderID, in.ProductID, variation, in.ProductName, in.ProductImage,
			in.Quantity, in.UnitPriceCents, in.UnitPriceCents*int64(in.Quantity),
		).Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariationID,
			&item.ProductName, &item.ProductImage, &item.Quantity,
			&item.UnitPriceCents, &item.TotalPriceCents)
		if err != nil {
			return nil, nil, fmt.Errorf("insert order item: %w", err)
		}
		items = append(items, item)
		reserve = append(reserve, domain.ReserveItem{
			SKU:      domain.SKURef{ProductID: in.ProductID, VariationID: in.VariationID},
			Quantity: in.Quantity,
		})
	}

	shortfalls, err := reserveStockTx(ctx, tx, orderID, reserve)
	if err != nil {
		return nil, nil, err
	}
	if len(shortfalls) > 0 {
		return nil, shortfalls, nil // rollback via defer
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit order tx: %w", err)
	}

	return &domain.OrderDetail{Order: order, Items: items}, nil, nil
}

func (p *Postgres) GetOrderByID(ctx context.Context, orderID string) (domain.Order, error) {
	return scanOrder(p.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
}

func (p *Postgres) GetOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, order_id, product_id, variation_id, product_name,
			product_image, quantity, unit_price_cents, total_price_cents
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariationID,
			&item.ProductName, &item.ProductImage, &item.Quantity,
			&item.UnitPriceCents, &item.TotalPriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (p *Postgres) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (p *Postgres) ListOrders(ctx context.Context, status *domain.OrderStatus) ([]domain.Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		rows, err = p.pool.Query(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC`, *status)
	} else {
		rows, err = p.pool.Query(ctx,
			`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	}
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()
	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.UserEmail, &o.Address, &o.Phone, &o.Note,
			&o.TotalPriceCents, &o.Method, &o.PaymentStatus, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	return scanOrder(p.pool.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, orderID, status))
}

func (p *Postgres) UpdateOrderPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (domain.Order, error) {
	return scanOrder(p.pool.QueryRow(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, orderID, status))
}

// --- Payments ---

const paymentColumns = `id, order_id, amount_cents, currency, method, status, transaction_id, created_at`

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var pm domain.Payment
	err := row.Scan(&pm.ID, &pm.OrderID, &pm.AmountCents, &pm.Currency,
		&pm.Method, &pm.Status, &pm.TransactionID, &pm.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pm, ErrNotFound
	}
	return pm, err
}

func (p *Postgres) InsertPayment(ctx context.Context, params InsertPaymentParams) (domain.Payment, error) {
	return scanPayment(p.pool.QueryRow(ctx, `
		INSERT INTO payments (order_id, amount_cents, currency, method, status, transaction_id)
		VALUES ($1, $2, $3, $4, $5, '')
		RETURNING `+paymentColumns,
		params.OrderID, params.AmountCents, params.Currency, params.Method, params.Status))
}

func (p *Postgres) GetPaymentByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	return scanPayment(p.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID))
}

func (p *Postgres) GetOpenPaymentByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	return scanPayment(p.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE order_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`,
		orderID, domain.PaymentPending, domain.PaymentProcessing))
}

func (p *Postgres) ListPaymentsByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var pm domain.Payment
		if err := rows.Scan(&pm.ID, &pm.OrderID, &pm.AmountCents, &pm.Currency,
			&pm.Method, &pm.Status, &pm.TransactionID, &pm.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, pm)
	}
	return payments, rows.Err()
}

func (p *Postgres) UpdatePaymentStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, transactionID string) (domain.Payment, error) {
	return scanPayment(p.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = $2,
		    transaction_id = CASE WHEN $3 = '' THEN transaction_id ELSE $3 END
		WHERE id = $1
		RETURNING `+paymentColumns, paymentID, status, transactionID))
}

func (p *Postgres) InsertRefund(ctx context.Context, params InsertRefundParams) (domain.Refund, error) {
	var r domain.Refund
	err := p.pool.QueryRow(ctx, `
		INSERT INTO refunds (payment_id, amount_cents, reason)
		VALUES ($1, $2, $3)
		RETURNING id, payment_id, amount_cents, reason, created_at`,
		params.PaymentID, params.AmountCents, params.Reason,
	).Scan(&r.ID, &r.PaymentID, &r.AmountCents, &r.Reason, &r.CreatedAt)
	return r, err
}

func (p *Postgres) SumRefundsByPayment(ctx context.Context, paymentID string) (int64, error) {
	var sum int64
	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM refunds WHERE payment_id = $1`, paymentID,
	).Scan(&sum)
	return sum, err
}

// --- Stock ledger ---

const stockColumns = `id, product_id, variation_id, available_stock, reserved_stock, min_stock_level, updated_at`

func scanStock(row pgx.Row) (domain.StockItem, error) {
	var s domain.StockItem
	err := row.Scan(&s.ID, &s.ProductID, &s.VariationID,
		&s.AvailableStock, &s.ReservedStock, &s.MinStockLevel, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

func (p *Postgres) GetStockBySKU(ctx context.Context, sku domain.SKURef) (domain.StockItem, error) {
	if sku.VariationID != "" {
		return scanStock(p.pool.QueryRow(ctx,
			`SELECT `+stockColumns+` FROM stock_items WHERE product_id = $1 AND variation_id = $2`,
			sku.ProductID, sku.VariationID))
	}
	return scanStock(p.pool.QueryRow(ctx,
		`SELECT `+stockColumns+` FROM stock_items WHERE product_id = $1 AND variation_id IS NULL`,
		sku.ProductID))
}

func (p *Postgres) GetStockItem(ctx context.Context, stockItemID string) (domain.StockItem, error) {
	return scanStock(p.pool.QueryRow(ctx,
		`SELECT `+stockColumns+` FROM stock_items WHERE id = $1`, stockItemID))
}

func (p *Postgres) ListStockItems(ctx context.Context) ([]domain.StockItem, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+stockColumns+` FROM stock_items ORDER BY product_id, variation_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.StockItem
	for rows.Next() {
		var s domain.StockItem
		if err := rows.Scan(&s.ID, &s.ProductID, &s.VariationID,
			&s.AvailableStock, &s.ReservedStock, &s.MinStockLevel, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (p *Postgres) ListStockMovements(ctx context.Context, stockItemID string) ([]domain.StockMovement, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, stock_item_id, type, quantity, reason, reference, actor_id, created_at
		FROM stock_movements WHERE stock_item_id = $1 ORDER BY created_at DESC`, stockItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []domain.StockMovement
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.StockItemID, &m.Type, &m.Quantity,
			&m.Reason, &m.Reference, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (p *Postgres) ReserveStock(ctx context.Context, orderID string, items []domain.ReserveItem) ([]StockShortfall, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	shortfalls, err := reserveStockTx(ctx, tx, orderID, items)
	if err != nil {
		return nil, err
	}
	if len(shortfalls) > 0 {
		return shortfalls, nil // rollback via defer
	}
	return nil, tx.Commit(ctx)
}

// reserveStockTx locks each SKU row, checks availability, and applies the
// move inside the caller's transaction. Shortfalls leave the transaction
// untouched for the caller to roll back.
func reserveStockTx(ctx context.Context, tx pgx.Tx, orderID string, items []domain.ReserveItem) ([]StockShortfall, error) {
	var shortfalls []StockShortfall

	for _, it := range items {
		var stockID string
		var available int32
		var row pgx.Row
		if it.SKU.VariationID != "" {
			row = tx.QueryRow(ctx, `
				SELECT id, available_stock FROM stock_items
				WHERE product_id = $1 AND variation_id = $2 FOR UPDATE`,
				it.SKU.ProductID, it.SKU.VariationID)
		} else {
			row = tx.QueryRow(ctx, `
				SELECT id, available_stock FROM stock_items
				WHERE product_id = $1 AND variation_id IS NULL FOR UPDATE`,
				it.SKU.ProductID)
		}
		if err := row.Scan(&stockID, &available); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				shortfalls = append(shortfalls, StockShortfall{SKU: it.SKU, Requested: it.Quantity})
				continue
			}
			return nil, fmt.Errorf("lock stock row for %s: %w", it.SKU, err)
		}

		if available < it.Quantity {
			shortfalls = append(shortfalls, StockShortfall{
				SKU: it.SKU, Requested: it.Quantity, Available: available,
			})
			continue
		}

		if _, err := tx.Exec(ctx, `
			UPDATE stock_items
			SET available_stock = available_stock - $2,
			    reserved_stock = reserved_stock + $2,
			    updated_at = now()
			WHERE id = $1`, stockID, it.Quantity); err != nil {
			return nil, fmt.Errorf("reserve stock for %s: %w", it.SKU, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_reservations (order_id, stock_item_id, quantity, status)
			VALUES ($1, $2, $3, 'RESERVED')
			ON CONFLICT (order_id, stock_item_id) DO NOTHING`,
			orderID, stockID, it.Quantity); err != nil {
			return nil, fmt.Errorf("record reservation for %s: %w", it.SKU, err)
		}

		if err := insertMovementTx(ctx, tx, stockID, domain.MovementReserved,
			it.Quantity, "order reservation", orderID, ""); err != nil {
			return nil, err
		}
	}

	return shortfalls, nil
}

func insertMovementTx(ctx context.Context, tx pgx.Tx, stockID string, typ domain.MovementType, qty int32, reason, reference, actor string) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (stock_item_id, type, quantity, reason, reference, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		stockID, typ, qty, reason, reference, actor); err != nil {
		return fmt.Errorf("record %s movement: %w", typ, err)
	}
	return nil
}

func (p *Postgres) ReleaseStock(ctx context.Context, orderID string) error {
	return p.settleReservation(ctx, orderID, "RELEASED", domain.MovementReleased, true)
}

func (p *Postgres) CommitStock(ctx context.Context, orderID string) error {
	return p.settleReservation(ctx, orderID, "COMMITTED", domain.MovementOut, false)
}

// settleReservation closes the order's active reservation rows. Release
// returns quantity to available; commit only drains reserved.
func (p *Postgres) settleReservation(ctx context.Context, orderID, newStatus string, movement domain.MovementType, returnToAvailable bool) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT r.stock_item_id, r.quantity FROM stock_reservations r
		JOIN stock_items s ON s.id = r.stock_item_id
		WHERE r.order_id = $1 AND r.status = 'RESERVED'
		FOR UPDATE OF s`, orderID)
	if err != nil {
		return err
	}

	type line struct {
		stockID string
		qty     int32
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.stockID, &l.qty); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil // idempotent: nothing reserved for this order
	}

	for _, l := range lines {
		var query string
		if returnToAvailable {
			query = `UPDATE stock_items
				SET available_stock = available_stock + $2,
				    reserved_stock = reserved_stock - $2,
				    updated_at = now()
				WHERE id = $1 AND reserved_stock >= $2`
		} else {
			query = `UPDATE stock_items
				SET reserved_stock = reserved_stock - $2, updated_at = now()
				WHERE id = $1 AND reserved_stock >= $2`
		}
		ct, err := tx.Exec(ctx, query, l.stockID, l.qty)
		if err != nil {
			return fmt.Errorf("settle stock %s: %w", l.stockID, err)
		}
		if ct.RowsAffected() != 1 {
			// Reserved counter below the recorded reservation: ledger corruption.
			return ErrNegativeStock
		}
		if err := insertMovementTx(ctx, tx, l.stockID, movement, l.qty, "reservation "+newStatus, orderID, ""); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE stock_reservations SET status = $2
		WHERE order_id = $1 AND status = 'RESERVED'`, orderID, newStatus); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (p *Postgres) AdjustStock(ctx context.Context, params AdjustStockParams) (domain.StockItem, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.StockItem{}, fmt.Errorf("begin adjust tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var available int32
	err = tx.QueryRow(ctx,
		`SELECT available_stock FROM stock_items WHERE id = $1 FOR UPDATE`,
		params.StockItemID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockItem{}, ErrNotFound
	}
	if err != nil {
		return domain.StockItem{}, err
	}

	if available+params.Delta < 0 {
		return domain.StockItem{}, ErrNegativeStock
	}

	item, err := scanStock(tx.QueryRow(ctx, `
		UPDATE stock_items
		SET available_stock = available_stock + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+stockColumns, params.StockItemID, params.Delta))
	if err != nil {
		return domain.StockItem{}, err
	}

	qty := params.Delta
	if qty < 0 {
		qty = -qty
	}
	if err := insertMovementTx(ctx, tx, params.StockItemID, params.Type, qty,
		params.Reason, params.Reference, params.ActorID); err != nil {
		return domain.StockItem{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.StockItem{}, err
	}
	return item, nil
}

// --- Carts ---

func scanCart(row pgx.Row) (domain.Cart, error) {
	var c domain.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

func (p *Postgres) GetOrCreateCartByUser(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := scanCart(p.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID))
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return cart, err
	}
	return scanCart(p.pool.QueryRow(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
		RETURNING id, user_id, created_at, updated_at`, userID))
}

func (p *Postgres) GetCartByID(ctx context.Context, cartID string) (domain.Cart, error) {
	return scanCart(p.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE id = $1`, cartID))
}

func (p *Postgres) GetCartItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, product_id, variation_id, product_name, product_image,
			quantity, unit_price_cents, selected
		FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.VariationID,
			&item.ProductName, &item.ProductImage, &item.Quantity,
			&item.UnitPriceCents, &item.Selected); err != nil {
			return nil, err
		}
		item.LineSubtotal = item.UnitPriceCents * int64(item.Quantity)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (p *Postgres) UpsertCartItem(ctx context.Context, params UpsertCartItemParams) error {
	var variation any
	if params.SKU.VariationID != "" {
		variation = params.SKU.VariationID
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, variation_id,
			product_name, product_image, quantity, unit_price_cents, selected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		ON CONFLICT (cart_id, product_id, variation_key) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    unit_price_cents = EXCLUDED.unit_price_cents,
		    selected = true`,
		params.CartID, params.SKU.ProductID, variation,
		params.ProductName, params.ProductImage, params.Quantity, params.UnitPriceCents)
	return err
}

func (p *Postgres) UpdateCartItemQuantity(ctx context.Context, cartID string, sku domain.SKURef, quantity int32) error {
	ct, err := p.execCartItem(ctx, cartID, sku,
		`UPDATE cart_items SET quantity = $4 WHERE cart_id = $1 AND product_id = $2 AND variation_key = $3`,
		quantity)
	if err != nil {
		return err
	}
	if ct == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteCartItem(ctx context.Context, cartID string, sku domain.SKURef) error {
	ct, err := p.execCartItem(ctx, cartID, sku,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2 AND variation_key = $3`)
	if err != nil {
		return err
	}
	if ct == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SetCartItemSelected(ctx context.Context, cartID string, sku domain.SKURef, selected bool) error {
	ct, err := p.execCartItem(ctx, cartID, sku,
		`UPDATE cart_items SET selected = $4 WHERE cart_id = $1 AND product_id = $2 AND variation_key = $3`,
		selected)
	if err != nil {
		return err
	}
	if ct == 0 {
		return ErrNotFound
	}
	return nil
}

// execCartItem runs a cart-line statement keyed by (cart, product,
// variation_key), where variation_key collapses NULL variations to ''.
func (p *Postgres) execCartItem(ctx context.Context, cartID string, sku domain.SKURef, query string, extra ...any) (int64, error) {
	args := append([]any{cartID, sku.ProductID, sku.VariationID}, extra...)
	ct, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (p *Postgres) SetAllCartItemsSelected(ctx context.Context, cartID string, selected bool) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE cart_items SET selected = $2 WHERE cart_id = $1`, cartID, selected)
	return err
}

func (p *Postgres) DeleteSelectedCartItems(ctx context.Context, cartID string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND selected`, cartID)
	return err
}

func (p *Postgres) ClearCart(ctx context.Context, cartID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

// --- Users ---

func scanUser(row pgx.Row) (domain.User, error) {
	var id pgtype.UUID
	var u domain.User
	err := row.Scan(&id, &u.Email, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, ErrNotFound
	}
	u.ID = id.Bytes
	return u, err
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(p.pool.QueryRow(ctx,
		`SELECT id, email, role FROM users WHERE email = $1`, email))
}

func (p *Postgres) UpsertUser(ctx context.Context, email, role string) (domain.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `
		INSERT INTO users (email, role)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET role = EXCLUDED.role
		RETURNING id, email, role`, email, role))
}

var _ Querier = (*Postgres)(nil)
