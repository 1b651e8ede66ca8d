package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"

	"gorm.io/gorm"
)

type repos struct {
	db *db
}

func (r *repos) Orders() repo.OrderRepository                         { return &orders{r.db} }
func (r *repos) OrderItems() repo.OrderItemRepository                 { return &orderItems{r.db} }
func (r *repos) Carts() repo.CartRepository                           { return &carts{r.db} }
func (r *repos) CartItems() repo.CartItemRepository                   { return &cartItems{r.db} }
func (r *repos) CartHistories() repo.CartHistoryRepository            { return &histories{r.db} }
func (r *repos) Addresses() repo.AddressRepository                    { return &addresses{r.db} }
func (r *repos) Inventory() repo.InventoryRepository                  { return &inventory{r.db} }
func (r *repos) Products() repo.ProductRepository                     { return &products{r.db} }
func (r *repos) StockNotifications() repo.StockNotificationRepository { return &notifications{r.db} }
func (r *repos) Outbox() repo.OutboxRepository                        { return &outbox{r.db} }
func (r *repos) AuditLogs() repo.AuditLogRepository                   { return &auditLogs{r.db} }

// Users はトランザクション外専用
func (s *Store) Users() repo.UserRepository { return &users{&db{s: s}} }

func page[V any](list []V, p, limit int) []V {
	if p < 1 {
		p = 1
	}
	if limit <= 0 {
		return list
	}
	start := (p - 1) * limit
	if start >= len(list) {
		return []V{}
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

func reversed[V any](list []V) []V {
	out := make([]V, len(list))
	for i, v := range list {
		out[len(list)-1-i] = v
	}
	return out
}

// =====================
// products
// =====================

type products struct{ d *db }

func live(p model.Product) bool { return !p.DeletedAt.Valid }

func (r *products) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var list []model.Product
	err := r.d.read(func(st *state) error {
		term := strings.ToLower(strings.TrimSpace(q.Q))
		for _, p := range sortedValues(st.products) {
			if !live(p) || !p.IsActive {
				continue
			}
			if term != "" && !strings.Contains(strings.ToLower(p.Name), term) {
				continue
			}
			if q.MinPrice != nil && p.Price.LessThan(*q.MinPrice) {
				continue
			}
			if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
				continue
			}
			if q.InStock && p.Stock <= 0 {
				continue
			}
			list = append(list, p)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	switch q.Sort {
	case "price_asc":
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].Price.Equal(list[j].Price) {
				return list[i].Price.LessThan(list[j].Price)
			}
			return list[i].ID < list[j].ID
		})
	case "price_desc":
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].Price.Equal(list[j].Price) {
				return list[i].Price.GreaterThan(list[j].Price)
			}
			return list[i].ID > list[j].ID
		})
	default:
		list = reversed(list)
	}
	return page(list, q.Page, q.Limit), int64(len(list)), nil
}

func (r *products) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var out model.Product
	err := r.d.read(func(st *state) error {
		p, ok := st.products[id]
		if !ok || !live(p) {
			return repo.ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r *products) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Product
	err := r.d.read(func(st *state) error {
		for _, p := range sortedValues(st.products) {
			if want[p.ID] && live(p) {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (r *products) Create(ctx context.Context, p model.Product) (model.Product, error) {
	p.ID = r.d.s.nextID()
	p.Stock = 0
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	err := r.d.write("Products.Create", func(st *state) error {
		st.products[p.ID] = p
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *products) Update(ctx context.Context, p model.Product) error {
	return r.d.write("Products.Update", func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok || !live(cur) {
			return repo.ErrNotFound
		}
		cur.Name = p.Name
		cur.Description = p.Description
		cur.Price = p.Price
		cur.MinStockLevel = p.MinStockLevel
		cur.IsActive = p.IsActive
		cur.IsReturnable = p.IsReturnable
		cur.IsExchangeable = p.IsExchangeable
		cur.UpdatedAt = time.Now()
		st.products[p.ID] = cur
		return nil
	})
}

func (r *products) SoftDelete(ctx context.Context, id int64) error {
	at := time.Now()
	return r.d.write("Products.SoftDelete", func(st *state) error {
		cur, ok := st.products[id]
		if !ok || !live(cur) {
			return repo.ErrNotFound
		}
		cur.DeletedAt = gorm.DeletedAt{Time: at, Valid: true}
		st.products[id] = cur
		return nil
	})
}

// =====================
// inventory
// =====================

type inventory struct{ d *db }

func (r *inventory) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (int64, bool, error) {
	var after int64
	var ok bool
	err := r.d.write("Inventory.DecreaseStockIfEnough", func(st *state) error {
		p, found := st.products[productID]
		if !found || !live(p) || p.Stock < qty {
			ok = false
			return nil
		}
		p.Stock -= qty
		st.products[productID] = p
		after, ok = p.Stock, true
		return nil
	})
	return after, ok, err
}

func (r *inventory) IncreaseStock(ctx context.Context, productID int64, qty int64) (int64, error) {
	var after int64
	err := r.d.write("Inventory.IncreaseStock", func(st *state) error {
		p, found := st.products[productID]
		if !found || !live(p) {
			return repo.ErrNotFound
		}
		p.Stock += qty
		st.products[productID] = p
		after = p.Stock
		return nil
	})
	return after, err
}

func (r *inventory) AppendMovement(ctx context.Context, m *model.StockMovement) error {
	if m.Quantity <= 0 {
		return errors.New("movement quantity must be positive")
	}
	m.ID = r.d.s.nextID()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	row := *m
	return r.d.write("Inventory.AppendMovement", func(st *state) error {
		st.movements[row.ID] = row
		return nil
	})
}

func (r *inventory) ListMovements(ctx context.Context, f repo.MovementFilter) ([]model.StockMovement, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	var list []model.StockMovement
	err := r.d.read(func(st *state) error {
		for _, m := range reversed(sortedValues(st.movements)) {
			if f.ProductID != nil && m.ProductID != *f.ProductID {
				continue
			}
			if f.OrderID != nil && (m.OrderID == nil || *m.OrderID != *f.OrderID) {
				continue
			}
			if f.Type != nil && m.Type != *f.Type {
				continue
			}
			list = append(list, m)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page(list, f.Page, f.Limit), int64(len(list)), nil
}

func (r *inventory) MovementTotals(ctx context.Context, productID int64) (int64, int64, error) {
	var in, out int64
	err := r.d.read(func(st *state) error {
		for _, m := range st.movements {
			if m.ProductID != productID {
				continue
			}
			if m.Type == model.MovementIn {
				in += m.Quantity
			} else {
				out += m.Quantity
			}
		}
		return nil
	})
	return in, out, err
}

// =====================
// carts
// =====================

type carts struct{ d *db }

func activeCart(st *state, userID int64) (model.Cart, bool) {
	for _, c := range st.carts {
		if c.UserID == userID && !c.IsArchived {
			return c, true
		}
	}
	return model.Cart{}, false
}

func (r *carts) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if c, err := r.FindActiveByUserID(ctx, userID); err == nil {
		return c, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, err
	}
	c := model.Cart{UserID: userID}
	if err := r.Create(ctx, &c); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return r.FindActiveByUserID(ctx, userID)
		}
		return model.Cart{}, err
	}
	return c, nil
}

func (r *carts) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var out model.Cart
	err := r.d.read(func(st *state) error {
		c, ok := activeCart(st, userID)
		if !ok {
			return repo.ErrNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (r *carts) FindByID(ctx context.Context, cartID int64) (model.Cart, error) {
	var out model.Cart
	err := r.d.read(func(st *state) error {
		c, ok := st.carts[cartID]
		if !ok {
			return repo.ErrNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (r *carts) Create(ctx context.Context, cart *model.Cart) error {
	cart.ID = r.d.s.nextID()
	now := time.Now()
	cart.CreatedAt, cart.UpdatedAt = now, now
	row := *cart
	return r.d.write("Carts.Create", func(st *state) error {
		if !row.IsArchived {
			if _, ok := activeCart(st, row.UserID); ok {
				return repo.ErrDuplicate
			}
		}
		st.carts[row.ID] = row
		return nil
	})
}

func (r *carts) Archive(ctx context.Context, cartID int64) error {
	at := time.Now()
	return r.d.write("Carts.Archive", func(st *state) error {
		c, ok := st.carts[cartID]
		if !ok || c.IsArchived {
			return repo.ErrNotFound
		}
		c.IsArchived = true
		c.ArchivedAt = &at
		st.carts[cartID] = c
		return nil
	})
}

// =====================
// cart items
// =====================

type cartItems struct{ d *db }

func (r *cartItems) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	out := []model.CartItem{}
	err := r.d.read(func(st *state) error {
		for _, it := range sortedValues(st.cartItems) {
			if it.CartID == cartID {
				out = append(out, it)
			}
		}
		return nil
	})
	return out, err
}

func (r *cartItems) UpsertVariant(ctx context.Context, item model.CartItem) error {
	if item.Quantity <= 0 {
		return errors.New("invalid quantity")
	}
	item.ID = r.d.s.nextID()
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now
	return r.d.write("CartItems.UpsertVariant", func(st *state) error {
		for id, ex := range st.cartItems {
			if ex.CartID == item.CartID && ex.ProductID == item.ProductID && ex.Size == item.Size && ex.Color == item.Color {
				ex.Quantity += item.Quantity
				ex.UpdatedAt = now
				st.cartItems[id] = ex
				return nil
			}
		}
		st.cartItems[item.ID] = item
		return nil
	})
}

func (r *cartItems) CreateBulk(ctx context.Context, items []model.CartItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]model.CartItem, len(items))
	now := time.Now()
	for i, it := range items {
		it.ID = r.d.s.nextID()
		it.CreatedAt, it.UpdatedAt = now, now
		rows[i] = it
		items[i].ID = it.ID
	}
	return r.d.write("CartItems.CreateBulk", func(st *state) error {
		for _, it := range rows {
			st.cartItems[it.ID] = it
		}
		return nil
	})
}

func (r *cartItems) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	return r.d.write("CartItems.UpdateQuantity", func(st *state) error {
		it, ok := st.cartItems[cartItemID]
		if !ok {
			return repo.ErrNotFound
		}
		it.Quantity = qty
		st.cartItems[cartItemID] = it
		return nil
	})
}

func (r *cartItems) DeleteByID(ctx context.Context, cartItemID int64) error {
	return r.d.write("CartItems.DeleteByID", func(st *state) error {
		if _, ok := st.cartItems[cartItemID]; !ok {
			return repo.ErrNotFound
		}
		delete(st.cartItems, cartItemID)
		return nil
	})
}

func (r *cartItems) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var out model.CartItem
	err := r.d.read(func(st *state) error {
		it, ok := st.cartItems[cartItemID]
		if !ok {
			return repo.ErrNotFound
		}
		out = it
		return nil
	})
	return out, err
}

func (r *cartItems) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	var owned bool
	err := r.d.read(func(st *state) error {
		it, ok := st.cartItems[cartItemID]
		if !ok {
			return nil
		}
		c, ok := st.carts[it.CartID]
		owned = ok && c.UserID == userID && !c.IsArchived
		return nil
	})
	return owned, err
}

// =====================
// cart histories
// =====================

type histories struct{ d *db }

func (r *histories) Create(ctx context.Context, h *model.CartHistory) error {
	h.ID = r.d.s.nextID()
	h.CreatedAt = time.Now()
	row := *h
	return r.d.write("CartHistories.Create", func(st *state) error {
		st.histories[row.ID] = row
		return nil
	})
}

func (r *histories) FindByID(ctx context.Context, historyID int64) (model.CartHistory, error) {
	var out model.CartHistory
	err := r.d.read(func(st *state) error {
		h, ok := st.histories[historyID]
		if !ok {
			return repo.ErrNotFound
		}
		out = h
		return nil
	})
	return out, err
}

func (r *histories) ListByUserID(ctx context.Context, userID int64) ([]model.CartHistory, error) {
	out := []model.CartHistory{}
	err := r.d.read(func(st *state) error {
		for _, h := range reversed(sortedValues(st.histories)) {
			if h.UserID == userID {
				out = append(out, h)
			}
		}
		return nil
	})
	return out, err
}

// =====================
// addresses
// =====================

type addresses struct{ d *db }

// ユーザーごとにデフォルトは1件まで
func checkDefault(st *state, a model.Address) error {
	if !a.IsDefault || a.UserID == nil {
		return nil
	}
	for _, ex := range st.addresses {
		if ex.ID != a.ID && ex.IsDefault && ex.OwnedBy(*a.UserID) {
			return repo.ErrDuplicate
		}
	}
	return nil
}

func (r *addresses) Create(ctx context.Context, address *model.Address) error {
	address.ID = r.d.s.nextID()
	now := time.Now()
	address.CreatedAt, address.UpdatedAt = now, now
	row := *address
	return r.d.write("Addresses.Create", func(st *state) error {
		if err := checkDefault(st, row); err != nil {
			return err
		}
		st.addresses[row.ID] = row
		return nil
	})
}

func (r *addresses) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	var out []model.Address
	err := r.d.read(func(st *state) error {
		for _, a := range sortedValues(st.addresses) {
			if a.OwnedBy(userID) {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsDefault && !out[j].IsDefault })
	return out, err
}

func (r *addresses) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	var out model.Address
	err := r.d.read(func(st *state) error {
		a, ok := st.addresses[addressID]
		if !ok {
			return repo.ErrNotFound
		}
		out = a
		return nil
	})
	return out, err
}

func (r *addresses) Update(ctx context.Context, address model.Address) error {
	now := time.Now()
	return r.d.write("Addresses.Update", func(st *state) error {
		cur, ok := st.addresses[address.ID]
		if !ok {
			return repo.ErrNotFound
		}
		if err := checkDefault(st, address); err != nil {
			return err
		}
		address.UserID = cur.UserID
		address.CreatedAt = cur.CreatedAt
		address.UpdatedAt = now
		st.addresses[address.ID] = address
		return nil
	})
}

func (r *addresses) Delete(ctx context.Context, addressID int64) error {
	return r.d.write("Addresses.Delete", func(st *state) error {
		if _, ok := st.addresses[addressID]; !ok {
			return repo.ErrNotFound
		}
		delete(st.addresses, addressID)
		return nil
	})
}

func (r *addresses) ClearDefault(ctx context.Context, userID int64) error {
	return r.d.write("Addresses.ClearDefault", func(st *state) error {
		for id, a := range st.addresses {
			if a.IsDefault && a.OwnedBy(userID) {
				a.IsDefault = false
				st.addresses[id] = a
			}
		}
		return nil
	})
}

// =====================
// orders
// =====================

type orders struct{ d *db }

func (r *orders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var out model.Order
	err := r.d.read(func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return repo.ErrNotFound
		}
		out = o
		return nil
	})
	return out, err
}

func (r *orders) ListByUserID(ctx context.Context, userID int64, p int, limit int) ([]model.Order, int64, error) {
	var list []model.Order
	err := r.d.read(func(st *state) error {
		for _, o := range reversed(sortedValues(st.orders)) {
			if o.OwnedBy(userID) {
				list = append(list, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page(list, p, limit), int64(len(list)), nil
}

func (r *orders) Create(ctx context.Context, order *model.Order) error {
	order.ID = r.d.s.nextID()
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	row := *order
	return r.d.write("Orders.Create", func(st *state) error {
		for _, ex := range st.orders {
			if ex.IdempotencyKey == row.IdempotencyKey {
				return repo.ErrDuplicate
			}
		}
		st.orders[row.ID] = row
		return nil
	})
}

func (r *orders) Transition(ctx context.Context, orderID int64, from, to model.OrderStatus, fields map[string]any) (bool, error) {
	var ok bool
	now := time.Now()
	err := r.d.write("Orders.Transition", func(st *state) error {
		o, found := st.orders[orderID]
		if !found || o.Status != from {
			ok = false
			return nil
		}
		o.Status = to
		for k, v := range fields {
			if err := setField(&o, k, v); err != nil {
				return err
			}
		}
		o.UpdatedAt = now
		st.orders[orderID] = o
		ok = true
		return nil
	})
	return ok, err
}

func setField(o *model.Order, key string, v any) error {
	switch key {
	case "status_before_request":
		if v == nil {
			o.StatusBeforeRequest = nil
			return nil
		}
		s, ok := v.(model.OrderStatus)
		if !ok {
			return fmt.Errorf("field %s: unexpected %T", key, v)
		}
		o.StatusBeforeRequest = &s
		return nil
	case "cancel_reason":
		return setString(&o.CancelReason, key, v)
	case "return_reason":
		return setString(&o.ReturnReason, key, v)
	case "exchange_reason":
		return setString(&o.ExchangeReason, key, v)
	case "admin_note":
		return setString(&o.AdminNote, key, v)
	case "tracking_number":
		return setString(&o.TrackingNumber, key, v)
	case "cancel_requested_at":
		return setTime(&o.CancelRequestedAt, key, v)
	case "return_requested_at":
		return setTime(&o.ReturnRequestedAt, key, v)
	case "exchange_requested_at":
		return setTime(&o.ExchangeRequestedAt, key, v)
	case "confirmed_at":
		return setTime(&o.ConfirmedAt, key, v)
	case "shipped_at":
		return setTime(&o.ShippedAt, key, v)
	case "delivered_at":
		return setTime(&o.DeliveredAt, key, v)
	case "closed_at":
		return setTime(&o.ClosedAt, key, v)
	case "can_cancel":
		return setBool(&o.CanCancel, key, v)
	case "can_return":
		return setBool(&o.CanReturn, key, v)
	case "can_exchange":
		return setBool(&o.CanExchange, key, v)
	case "exchange_order_item_id":
		return setInt64(&o.Exchange.OrderItemID, key, v)
	case "exchange_requested_product_id":
		return setInt64(&o.Exchange.RequestedProductID, key, v)
	case "exchange_requested_size":
		return setStringPtr(&o.Exchange.RequestedSize, key, v)
	case "exchange_requested_color":
		return setStringPtr(&o.Exchange.RequestedColor, key, v)
	}
	return fmt.Errorf("unknown order column %q", key)
}

func setString(dst *string, key string, v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("field %s: unexpected %T", key, v)
	}
	*dst = s
	return nil
}

func setStringPtr(dst **string, key string, v any) error {
	if v == nil {
		*dst = nil
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("field %s: unexpected %T", key, v)
	}
	*dst = &s
	return nil
}

func setTime(dst **time.Time, key string, v any) error {
	if v == nil {
		*dst = nil
		return nil
	}
	t, ok := v.(time.Time)
	if !ok {
		return fmt.Errorf("field %s: unexpected %T", key, v)
	}
	*dst = &t
	return nil
}

func setBool(dst *bool, key string, v any) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("field %s: unexpected %T", key, v)
	}
	*dst = b
	return nil
}

func setInt64(dst **int64, key string, v any) error {
	if v == nil {
		*dst = nil
		return nil
	}
	n, ok := v.(int64)
	if !ok {
		return fmt.Errorf("field %s: unexpected %T", key, v)
	}
	*dst = &n
	return nil
}

func (r *orders) UpdateInvoice(ctx context.Context, orderID int64, pdfURL string, status model.EinvoiceStatus) error {
	return r.d.write("Orders.UpdateInvoice", func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return repo.ErrNotFound
		}
		o.EinvoicePdfURL = pdfURL
		o.EinvoiceStatus = status
		st.orders[orderID] = o
		return nil
	})
}

func (r *orders) FindByIdempotencyKey(ctx context.Context, key string) (model.Order, bool, error) {
	var out model.Order
	var found bool
	err := r.d.read(func(st *state) error {
		for _, o := range st.orders {
			if o.IdempotencyKey == key {
				out, found = o, true
				return nil
			}
		}
		return nil
	})
	return out, found, err
}

func (r *orders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	var list []model.Order
	err := r.d.read(func(st *state) error {
		for _, o := range reversed(sortedValues(st.orders)) {
			if f.Status != "" && string(o.Status) != f.Status {
				continue
			}
			if f.UserID != nil && !o.OwnedBy(*f.UserID) {
				continue
			}
			if f.From != nil && o.CreatedAt.Before(*f.From) {
				continue
			}
			if f.To != nil && o.CreatedAt.After(*f.To) {
				continue
			}
			list = append(list, o)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page(list, f.Page, f.Limit), int64(len(list)), nil
}

// =====================
// order items
// =====================

type orderItems struct{ d *db }

func (r *orderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]model.OrderItem, len(items))
	now := time.Now()
	for i, it := range items {
		it.ID = r.d.s.nextID()
		it.OrderID = orderID
		it.CreatedAt = now
		rows[i] = it
		items[i].ID, items[i].OrderID = it.ID, orderID
	}
	return r.d.write("OrderItems.CreateBulk", func(st *state) error {
		for _, it := range rows {
			st.orderItems[it.ID] = it
		}
		return nil
	})
}

func (r *orderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	out := []model.OrderItem{}
	err := r.d.read(func(st *state) error {
		for _, it := range sortedValues(st.orderItems) {
			if it.OrderID == orderID {
				out = append(out, it)
			}
		}
		return nil
	})
	return out, err
}

func (r *orderItems) FindByID(ctx context.Context, itemID int64) (model.OrderItem, error) {
	var out model.OrderItem
	err := r.d.read(func(st *state) error {
		it, ok := st.orderItems[itemID]
		if !ok {
			return repo.ErrNotFound
		}
		out = it
		return nil
	})
	return out, err
}

// =====================
// stock notifications
// =====================

type notifications struct{ d *db }

func (r *notifications) FindActive(ctx context.Context, productID int64, subscriberKey string) (model.UserStockNotification, bool, error) {
	var out model.UserStockNotification
	var found bool
	err := r.d.read(func(st *state) error {
		for _, n := range st.notifications {
			if n.IsActive && n.ProductID == productID && n.SubscriberKey == subscriberKey {
				out, found = n, true
				return nil
			}
		}
		return nil
	})
	return out, found, err
}

func (r *notifications) Create(ctx context.Context, n *model.UserStockNotification) error {
	n.ID = r.d.s.nextID()
	n.CreatedAt = time.Now()
	row := *n
	return r.d.write("StockNotifications.Create", func(st *state) error {
		if row.IsActive {
			for _, ex := range st.notifications {
				if ex.IsActive && ex.ProductID == row.ProductID && ex.SubscriberKey == row.SubscriberKey {
					return repo.ErrDuplicate
				}
			}
		}
		st.notifications[row.ID] = row
		return nil
	})
}

func (r *notifications) ListActiveByProduct(ctx context.Context, productID int64) ([]model.UserStockNotification, error) {
	var out []model.UserStockNotification
	err := r.d.read(func(st *state) error {
		for _, n := range sortedValues(st.notifications) {
			if n.IsActive && n.ProductID == productID {
				out = append(out, n)
			}
		}
		return nil
	})
	return out, err
}

func (r *notifications) ListActiveByUser(ctx context.Context, userID int64) ([]model.UserStockNotification, error) {
	var out []model.UserStockNotification
	err := r.d.read(func(st *state) error {
		for _, n := range reversed(sortedValues(st.notifications)) {
			if n.IsActive && n.UserID != nil && *n.UserID == userID {
				out = append(out, n)
			}
		}
		return nil
	})
	return out, err
}

func (r *notifications) Deactivate(ctx context.Context, id int64, notifiedAt *time.Time) (bool, error) {
	var ok bool
	err := r.d.write("StockNotifications.Deactivate", func(st *state) error {
		n, found := st.notifications[id]
		if !found || !n.IsActive {
			ok = false
			return nil
		}
		n.IsActive = false
		n.NotifiedAt = notifiedAt
		st.notifications[id] = n
		ok = true
		return nil
	})
	return ok, err
}

// =====================
// outbox
// =====================

type outbox struct{ d *db }

func (r *outbox) Append(ctx context.Context, e *model.OutboxEvent) error {
	e.ID = r.d.s.nextID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	row := *e
	return r.d.write("Outbox.Append", func(st *state) error {
		st.outbox[row.ID] = row
		return nil
	})
}

func (r *outbox) ClaimPending(ctx context.Context, limit, maxAttempts int, now, leaseUntil time.Time) ([]model.OutboxEvent, error) {
	var out []model.OutboxEvent
	err := r.d.read(func(st *state) error {
		for _, e := range sortedValues(st.outbox) {
			if e.PublishedAt != nil || e.Attempts >= maxAttempts {
				continue
			}
			if e.LockedUntil != nil && !e.LockedUntil.Before(now) {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	if err != nil || len(out) == 0 {
		return out, err
	}

	ids := make([]int64, len(out))
	for i := range out {
		ids[i] = out[i].ID
		out[i].LockedUntil = &leaseUntil
	}
	err = r.d.write("Outbox.Claim", func(st *state) error {
		for _, id := range ids {
			e, ok := st.outbox[id]
			if !ok {
				continue
			}
			e.LockedUntil = &leaseUntil
			st.outbox[id] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outbox) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	return r.d.write("Outbox.MarkPublished", func(st *state) error {
		e, ok := st.outbox[id]
		if !ok {
			return repo.ErrNotFound
		}
		e.PublishedAt = &at
		e.LastError = ""
		e.LockedUntil = nil
		st.outbox[id] = e
		return nil
	})
}

func (r *outbox) MarkFailed(ctx context.Context, id int64, reason string) error {
	return r.d.write("Outbox.MarkFailed", func(st *state) error {
		e, ok := st.outbox[id]
		if !ok {
			return repo.ErrNotFound
		}
		e.Attempts++
		e.LastError = reason
		e.LockedUntil = nil
		st.outbox[id] = e
		return nil
	})
}

// =====================
// audit logs / users
// =====================

type auditLogs struct{ d *db }

func (r *auditLogs) Create(ctx context.Context, log model.AuditLog) error {
	log.ID = r.d.s.nextID()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	return r.d.write("AuditLogs.Create", func(st *state) error {
		st.auditLogs[log.ID] = log
		return nil
	})
}

func (r *auditLogs) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, int64, error) {
	var out []model.AuditLog
	err := r.d.read(func(st *state) error {
		for _, l := range reversed(sortedValues(st.auditLogs)) {
			switch {
			case f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID,
				f.Action != "" && l.Action != f.Action,
				f.ResourceType != "" && l.ResourceType != f.ResourceType,
				f.ResourceID != nil && l.ResourceID != *f.ResourceID,
				f.From != nil && l.CreatedAt.Before(*f.From),
				f.To != nil && l.CreatedAt.After(*f.To):
				continue
			}
			out = append(out, l)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page(out, f.Page, f.Limit), int64(len(out)), nil
}

type users struct{ d *db }

func (r *users) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	var out *model.User
	err := r.d.read(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return repo.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}
