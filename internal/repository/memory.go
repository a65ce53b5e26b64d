package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tranvu/mercato/internal/domain"
)

// Memory is a mutex-guarded in-memory Querier for tests and local
// development. It enforces the same invariants as Postgres: all-or-nothing
// reservation, idempotent release, non-negative stock counters.
type Memory struct {
	mu sync.Mutex

	orders     map[string]domain.Order
	orderItems map[string][]domain.OrderItem // keyed by order id
	payments   map[string]domain.Payment
	refunds    map[string][]domain.Refund // keyed by payment id

	stock        map[string]domain.StockItem      // keyed by stock item id
	stockBySKU   map[string]string                // SKURef.String() -> stock item id
	movements    map[string][]domain.StockMovement // keyed by stock item id
	reservations map[string][]memoryReservation   // keyed by order id, active only

	carts       map[string]domain.Cart // keyed by cart id
	cartsByUser map[string]string      // user id -> cart id
	cartItems   map[string][]domain.CartItem

	users map[string]domain.User // keyed by email

	orderSeq int // insertion order for stable listing
	orderPos map[string]int
}

type memoryReservation struct {
	stockItemID string
	quantity    int32
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		orders:       make(map[string]domain.Order),
		orderItems:   make(map[string][]domain.OrderItem),
		payments:     make(map[string]domain.Payment),
		refunds:      make(map[string][]domain.Refund),
		stock:        make(map[string]domain.StockItem),
		stockBySKU:   make(map[string]string),
		movements:    make(map[string][]domain.StockMovement),
		reservations: make(map[string][]memoryReservation),
		carts:        make(map[string]domain.Cart),
		cartsByUser:  make(map[string]string),
		cartItems:    make(map[string][]domain.CartItem),
		users:        make(map[string]domain.User),
		orderPos:     make(map[string]int),
	}
}

func newUUID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func parseUUID(s string) pgtype.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func now() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now(), Valid: true}
}

// SeedStock registers a stock row for a SKU and returns its id. Test helper.
func (m *Memory) SeedStock(sku domain.SKURef, available, minLevel int32) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := domain.StockItem{
		ID:             newUUID(),
		ProductID:      parseUUID(sku.ProductID),
		AvailableStock: available,
		MinStockLevel:  minLevel,
		UpdatedAt:      now(),
	}
	if sku.VariationID != "" {
		item.VariationID = parseUUID(sku.VariationID)
	}
	id := domain.UUIDString(item.ID)
	m.stock[id] = item
	m.stockBySKU[sku.String()] = id
	return id
}

// --- Orders ---

func (m *Memory) CreateOrderWithReservation(ctx context.Context, params InsertOrderParams) (*domain.OrderDetail, []StockShortfall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	reserve := make([]domain.ReserveItem, 0, len(params.Items))
	for _, in := range params.Items {
		total += in.UnitPriceCents * int64(in.Quantity)
		reserve = append(reserve, domain.ReserveItem{
			SKU:      domain.SKURef{ProductID: in.ProductID, VariationID: in.VariationID},
			Quantity: in.Quantity,
		})
	}

	// Check every line before touching anything so a shortfall leaves the
	// store unchanged.
	shortfalls := m.findShortfalls(reserve)
	if len(shortfalls) > 0 {
		return nil, shortfalls, nil
	}

	order := domain.Order{
		ID:              newUUID(),
		UserID:          parseUUID(params.UserID),
		UserEmail:       params.UserEmail,
		Address:         params.Address,
		Phone:           params.Phone,
		Note:            params.Note,
		TotalPriceCents: total,
		Method:          params.Method,
		PaymentStatus:   domain.PaymentPending,
		Status:          domain.OrderPendingPayment,
		CreatedAt:       now(),
		UpdatedAt:       now(),
	}
	orderID := domain.UUIDString(order.ID)
	m.orders[orderID] = order
	m.orderSeq++
	m.orderPos[orderID] = m.orderSeq

	items := make([]domain.OrderItem, 0, len(params.Items))
	for _, in := range params.Items {
		item := domain.OrderItem{
			ID:              newUUID(),
			OrderID:         order.ID,
			ProductID:       parseUUID(in.ProductID),
			ProductName:     in.ProductName,
			ProductImage:    in.ProductImage,
			Quantity:        in.Quantity,
			UnitPriceCents:  in.UnitPriceCents,
			TotalPriceCents: in.UnitPriceCents * int64(in.Quantity),
		}
		if in.VariationID != "" {
			item.VariationID = parseUUID(in.VariationID)
		}
		items = append(items, item)
	}
	m.orderItems[orderID] = items

	m.applyReservation(orderID, reserve)

	return &domain.OrderDetail{Order: order, Items: items}, nil, nil
}

func (m *Memory) GetOrderByID(ctx context.Context, orderID string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return domain.Order{}, ErrNotFound
	}
	return order, nil
}

func (m *Memory) GetOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.orderItems[orderID]
	out := make([]domain.OrderItem, len(items))
	copy(out, items)
	return out, nil
}

func (m *Memory) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, o := range m.orders {
		if domain.UUIDString(o.UserID) == userID {
			out = append(out, o)
		}
	}
	m.sortNewestFirst(out)
	return out, nil
}

func (m *Memory) ListOrders(ctx context.Context, status *domain.OrderStatus) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, o := range m.orders {
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, o)
	}
	m.sortNewestFirst(out)
	return out, nil
}

func (m *Memory) sortNewestFirst(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return m.orderPos[domain.UUIDString(orders[i].ID)] > m.orderPos[domain.UUIDString(orders[j].ID)]
	})
}

func (m *Memory) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return domain.Order{}, ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = now()
	m.orders[orderID] = order
	return order, nil
}

func (m *Memory) UpdateOrderPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return domain.Order{}, ErrNotFound
	}
	order.PaymentStatus = status
	order.UpdatedAt = now()
	m.orders[orderID] = order
	return order, nil
}

// --- Payments ---

func (m *Memory) InsertPayment(ctx context.Context, params InsertPaymentParams) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment := domain.Payment{
		ID:          newUUID(),
		OrderID:     parseUUID(params.OrderID),
		AmountCents: params.AmountCents,
		Currency:    params.Currency,
		Method:      params.Method,
		Status:      params.Status,
		CreatedAt:   now(),
	}
	m.payments[domain.UUIDString(payment.ID)] = payment
	return payment, nil
}

func (m *Memory) GetPaymentByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment, ok := m.payments[paymentID]
	if !ok {
		return domain.Payment{}, ErrNotFound
	}
	return payment, nil
}

func (m *Memory) GetOpenPaymentByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var open *domain.Payment
	for _, p := range m.payments {
		p := p
		if domain.UUIDString(p.OrderID) != orderID {
			continue
		}
		if p.Status != domain.PaymentPending && p.Status != domain.PaymentProcessing {
			continue
		}
		if open == nil || p.CreatedAt.Time.After(open.CreatedAt.Time) {
			open = &p
		}
	}
	if open == nil {
		return domain.Payment{}, ErrNotFound
	}
	return *open, nil
}

func (m *Memory) ListPaymentsByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Payment
	for _, p := range m.payments {
		if domain.UUIDString(p.OrderID) == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Time.Before(out[j].CreatedAt.Time)
	})
	return out, nil
}

func (m *Memory) UpdatePaymentStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, transactionID string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment, ok := m.payments[paymentID]
	if !ok {
		return domain.Payment{}, ErrNotFound
	}
	payment.Status = status
	if transactionID != "" {
		payment.TransactionID = transactionID
	}
	m.payments[paymentID] = payment
	return payment, nil
}

func (m *Memory) InsertRefund(ctx context.Context, params InsertRefundParams) (domain.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	refund := domain.Refund{
		ID:          newUUID(),
		PaymentID:   parseUUID(params.PaymentID),
		AmountCents: params.AmountCents,
		Reason:      params.Reason,
		CreatedAt:   now(),
	}
	m.refunds[params.PaymentID] = append(m.refunds[params.PaymentID], refund)
	return refund, nil
}

func (m *Memory) SumRefundsByPayment(ctx context.Context, paymentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum int64
	for _, r := range m.refunds[paymentID] {
		sum += r.AmountCents
	}
	return sum, nil
}

// --- Stock ledger ---

func (m *Memory) GetStockBySKU(ctx context.Context, sku domain.SKURef) (domain.StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.stockBySKU[sku.String()]
	if !ok {
		return domain.StockItem{}, ErrNotFound
	}
	return m.stock[id], nil
}

func (m *Memory) GetStockItem(ctx context.Context, stockItemID string) (domain.StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.stock[stockItemID]
	if !ok {
		return domain.StockItem{}, ErrNotFound
	}
	return item, nil
}

func (m *Memory) ListStockItems(ctx context.Context) ([]domain.StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.StockItem, 0, len(m.stock))
	for _, item := range m.stock {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return domain.UUIDString(out[i].ID) < domain.UUIDString(out[j].ID)
	})
	return out, nil
}

func (m *Memory) ListStockMovements(ctx context.Context, stockItemID string) ([]domain.StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	movements := m.movements[stockItemID]
	out := make([]domain.StockMovement, len(movements))
	// Newest first.
	for i, mv := range movements {
		out[len(movements)-1-i] = mv
	}
	return out, nil
}

func (m *Memory) ReserveStock(ctx context.Context, orderID string, items []domain.ReserveItem) ([]StockShortfall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	shortfalls := m.findShortfalls(items)
	if len(shortfalls) > 0 {
		return shortfalls, nil
	}
	m.applyReservation(orderID, items)
	return nil, nil
}

// findShortfalls checks a batch against available stock without mutating.
func (m *Memory) findShortfalls(items []domain.ReserveItem) []StockShortfall {
	var shortfalls []StockShortfall
	for _, it := range items {
		id, ok := m.stockBySKU[it.SKU.String()]
		if !ok {
			shortfalls = append(shortfalls, StockShortfall{SKU: it.SKU, Requested: it.Quantity})
			continue
		}
		stock := m.stock[id]
		if stock.AvailableStock < it.Quantity {
			shortfalls = append(shortfalls, StockShortfall{
				SKU: it.SKU, Requested: it.Quantity, Available: stock.AvailableStock,
			})
		}
	}
	return shortfalls
}

// applyReservation moves quantity from available to reserved for every
// item. Callers must have verified availability under the same lock.
func (m *Memory) applyReservation(orderID string, items []domain.ReserveItem) {
	for _, it := range items {
		id := m.stockBySKU[it.SKU.String()]
		stock := m.stock[id]
		stock.AvailableStock -= it.Quantity
		stock.ReservedStock += it.Quantity
		stock.UpdatedAt = now()
		m.stock[id] = stock

		m.reservations[orderID] = append(m.reservations[orderID], memoryReservation{
			stockItemID: id,
			quantity:    it.Quantity,
		})
		m.appendMovement(id, domain.MovementReserved, it.Quantity, "order reservation", orderID, "")
	}
}

func (m *Memory) appendMovement(stockID string, typ domain.MovementType, qty int32, reason, reference, actor string) {
	m.movements[stockID] = append(m.movements[stockID], domain.StockMovement{
		ID:          newUUID(),
		StockItemID: parseUUID(stockID),
		Type:        typ,
		Quantity:    qty,
		Reason:      reason,
		Reference:   reference,
		ActorID:     actor,
		CreatedAt:   now(),
	})
}

func (m *Memory) ReleaseStock(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := m.reservations[orderID]
	if len(lines) == 0 {
		return nil // idempotent
	}
	for _, l := range lines {
		stock := m.stock[l.stockItemID]
		if stock.ReservedStock < l.quantity {
			return ErrNegativeStock
		}
		stock.ReservedStock -= l.quantity
		stock.AvailableStock += l.quantity
		stock.UpdatedAt = now()
		m.stock[l.stockItemID] = stock
		m.appendMovement(l.stockItemID, domain.MovementReleased, l.quantity, "reservation RELEASED", orderID, "")
	}
	delete(m.reservations, orderID)
	return nil
}

func (m *Memory) CommitStock(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := m.reservations[orderID]
	if len(lines) == 0 {
		return nil // idempotent
	}
	for _, l := range lines {
		stock := m.stock[l.stockItemID]
		if stock.ReservedStock < l.quantity {
			return ErrNegativeStock
		}
		stock.ReservedStock -= l.quantity
		stock.UpdatedAt = now()
		m.stock[l.stockItemID] = stock
		m.appendMovement(l.stockItemID, domain.MovementOut, l.quantity, "reservation COMMITTED", orderID, "")
	}
	delete(m.reservations, orderID)
	return nil
}

func (m *Memory) AdjustStock(ctx context.Context, params AdjustStockParams) (domain.StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stock, ok := m.stock[params.StockItemID]
	if !ok {
		return domain.StockItem{}, ErrNotFound
	}
	if stock.AvailableStock+params.Delta < 0 {
		return domain.StockItem{}, ErrNegativeStock
	}
	stock.AvailableStock += params.Delta
	stock.UpdatedAt = now()
	m.stock[params.StockItemID] = stock

	qty := params.Delta
	if qty < 0 {
		qty = -qty
	}
	m.appendMovement(params.StockItemID, params.Type, qty, params.Reason, params.Reference, params.ActorID)
	return stock, nil
}

// --- Carts ---

func (m *Memory) GetOrCreateCartByUser(ctx context.Context, userID string) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.cartsByUser[userID]; ok {
		return m.carts[id], nil
	}
	cart := domain.Cart{
		ID:        newUUID(),
		UserID:    parseUUID(userID),
		CreatedAt: now(),
		UpdatedAt: now(),
	}
	id := domain.UUIDString(cart.ID)
	m.carts[id] = cart
	m.cartsByUser[userID] = id
	return cart, nil
}

func (m *Memory) GetCartByID(ctx context.Context, cartID string) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[cartID]
	if !ok {
		return domain.Cart{}, ErrNotFound
	}
	return cart, nil
}

func (m *Memory) GetCartItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.cartItems[cartID]
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].LineSubtotal = out[i].UnitPriceCents * int64(out[i].Quantity)
	}
	return out, nil
}

func (m *Memory) UpsertCartItem(ctx context.Context, params UpsertCartItemParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.cartItems[params.CartID]
	for i := range items {
		if items[i].SKU() == params.SKU {
			items[i].Quantity += params.Quantity
			items[i].UnitPriceCents = params.UnitPriceCents
			items[i].Selected = true
			return nil
		}
	}
	item := domain.CartItem{
		ID:             newUUID(),
		ProductID:      parseUUID(params.SKU.ProductID),
		ProductName:    params.ProductName,
		ProductImage:   params.ProductImage,
		Quantity:       params.Quantity,
		UnitPriceCents: params.UnitPriceCents,
		Selected:       true,
	}
	if params.SKU.VariationID != "" {
		item.VariationID = parseUUID(params.SKU.VariationID)
	}
	m.cartItems[params.CartID] = append(items, item)
	return nil
}

func (m *Memory) UpdateCartItemQuantity(ctx context.Context, cartID string, sku domain.SKURef, quantity int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.cartItems[cartID]
	for i := range items {
		if items[i].SKU() == sku {
			items[i].Quantity = quantity
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) DeleteCartItem(ctx context.Context, cartID string, sku domain.SKURef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.cartItems[cartID]
	for i := range items {
		if items[i].SKU() == sku {
			m.cartItems[cartID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) SetCartItemSelected(ctx context.Context, cartID string, sku domain.SKURef, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.cartItems[cartID]
	for i := range items {
		if items[i].SKU() == sku {
			items[i].Selected = selected
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) SetAllCartItemsSelected(ctx context.Context, cartID string, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.cartItems[cartID]
	for i := range items {
		items[i].Selected = selected
	}
	return nil
}

func (m *Memory) DeleteSelectedCartItems(ctx context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.cartItems[cartID]
	kept := items[:0]
	for _, item := range items {
		if !item.Selected {
			kept = append(kept, item)
		}
	}
	m.cartItems[cartID] = kept
	return nil
}

func (m *Memory) ClearCart(ctx context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cartItems, cartID)
	return nil
}

// --- Users ---

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[email]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

func (m *Memory) UpsertUser(ctx context.Context, email, role string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, ok := m.users[email]; ok {
		user.Role = role
		m.users[email] = user
		return user, nil
	}
	user := domain.User{ID: uuid.New(), Email: email, Role: role}
	m.users[email] = user
	return user, nil
}

var _ Querier = (*Memory)(nil)
