package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/logger"
	"fashionshop/internal/metrics"
	repo "fashionshop/internal/repository"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var orderTracer = otel.Tracer("fashionshop/order-engine")

// 同じ冪等キーの注文が並行して入った。ロールバック後に既存注文を読み直す。
var errIdempotencyRace = errors.New("idempotency key taken concurrently")

type OrderUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	carts      repo.CartRepository
	cartItems  repo.CartItemRepository
	products   repo.ProductRepository
	addresses  repo.AddressRepository
	ledger     *InventoryLedger
	shipping   ShippingPolicy
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	carts repo.CartRepository,
	cartItems repo.CartItemRepository,
	products repo.ProductRepository,
	addresses repo.AddressRepository,
	ledger *InventoryLedger,
	shipping ShippingPolicy,
) *OrderUsecase {
	return &OrderUsecase{
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		carts:      carts,
		cartItems:  cartItems,
		products:   products,
		addresses:  addresses,
		ledger:     ledger,
		shipping:   shipping,
	}
}

type OrderLineInput struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int64  `json:"quantity"`
}

type GuestInput struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Itemsが空ならログインユーザーのカートから注文する。
// 住所はAddressID（住所録）かAddress（その場で入力）のどちらか。
type PlaceOrderInput struct {
	Items []OrderLineInput

	AddressID        int64
	InvoiceAddressID int64
	Address          *AddressInput
	InvoiceAddress   *AddressInput

	Guest *GuestInput

	ShippingMethod string
	PaymentMethod  string
	InvoiceType    string
	TaxID          string
	TaxOffice      string
	CompanyTitle   string
	Note           string

	IdempotencyKey string
}

type OrderItemOutput struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type OrderOutput struct {
	ID               int64                 `json:"id"`
	UserID           *int64                `json:"user_id,omitempty"`
	GuestEmail       string                `json:"guest_email,omitempty"`
	Status           model.OrderStatus     `json:"status"`
	AddressID        int64                 `json:"address_id"`
	InvoiceAddressID int64                 `json:"invoice_address_id"`
	ShippingMethod   model.ShippingMethod  `json:"shipping_method"`
	PaymentMethod    model.PaymentMethod   `json:"payment_method"`
	InvoiceType      model.InvoiceType     `json:"invoice_type"`
	Subtotal         decimal.Decimal       `json:"subtotal"`
	Discount         decimal.Decimal       `json:"discount"`
	ShippingCost     decimal.Decimal       `json:"shipping_cost"`
	Total            decimal.Decimal       `json:"total"`
	CanCancel        bool                  `json:"can_cancel"`
	CanReturn        bool                  `json:"can_return"`
	CanExchange      bool                  `json:"can_exchange"`
	CancelReason     string                `json:"cancel_reason,omitempty"`
	ReturnReason     string                `json:"return_reason,omitempty"`
	ExchangeReason   string                `json:"exchange_reason,omitempty"`
	Exchange         model.ExchangeRequest `json:"exchange"`

	CancelRequestedAt   *time.Time `json:"cancel_requested_at,omitempty"`
	ReturnRequestedAt   *time.Time `json:"return_requested_at,omitempty"`
	ExchangeRequestedAt *time.Time `json:"exchange_requested_at,omitempty"`

	TrackingNumber   string                `json:"tracking_number,omitempty"`
	EinvoicePdfURL   string                `json:"einvoice_pdf_url,omitempty"`
	EinvoiceStatus   model.EinvoiceStatus  `json:"einvoice_status"`
	CreatedAt        time.Time             `json:"created_at"`
	Items            []OrderItemOutput     `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int64         `json:"total"`
}

// 入力チェック済みの注文内容
type checkout struct {
	key          string
	shipping     model.ShippingMethod
	payment      model.PaymentMethod
	invoiceType  model.InvoiceType
	guest        GuestInput
	fromCart     bool
	lines        []OrderLineInput
	cartID       int64
	deliveryAddr *model.Address
	invoiceAddr  *model.Address
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, id Identity, in PlaceOrderInput) (OrderOutput, error) {
	ctx, span := orderTracer.Start(ctx, "OrderUsecase.PlaceOrder")
	defer span.End()

	c, err := u.validateCheckout(id, in)
	if err != nil {
		return OrderOutput{}, err
	}

	// 同じキーなら同じ結果（トランザクション前に見る）
	if out, found, err := u.replay(ctx, id, c); found || err != nil {
		return out, err
	}

	if c.fromCart {
		if err := u.loadCartLines(ctx, id, c); err != nil {
			return OrderOutput{}, err
		}
	}

	// 事前チェック（ロックを持つ前に安く落とす）
	if _, err := u.ledger.CheckAvailability(ctx, u.products, toStockLines(c.lines)); err != nil {
		return OrderOutput{}, err
	}

	if err := u.resolveAddresses(ctx, id, in, c); err != nil {
		return OrderOutput{}, err
	}

	started := time.Now()
	var out OrderOutput
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := u.commit(ctx, r, id, in, c)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	metrics.PlaceOrderDuration.Observe(time.Since(started).Seconds())

	if errors.Is(err, errIdempotencyRace) {
		out, found, err := u.replay(ctx, id, c)
		if err != nil {
			return OrderOutput{}, err
		}
		if !found {
			return OrderOutput{}, newError(ErrConflict, "idempotency conflict")
		}
		return out, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "place order failed")
		return OrderOutput{}, err
	}

	buyer := "user"
	if id.IsGuest() {
		buyer = "guest"
	}
	metrics.OrdersPlaced.WithLabelValues(buyer).Inc()
	span.SetAttributes(attribute.Int64("order.id", out.ID), attribute.String("buyer", buyer))
	logger.Info(ctx).
		Int64("order_id", out.ID).
		Str("buyer", buyer).
		Str("total", out.Total.StringFixed(2)).
		Int("lines", len(out.Items)).
		Msg("order placed")

	return out, nil
}

func (u *OrderUsecase) validateCheckout(id Identity, in PlaceOrderInput) (*checkout, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return nil, validation("invalid idempotency_key")
	}

	c := &checkout{key: key}

	switch m := model.ShippingMethod(in.ShippingMethod); m {
	case model.ShippingStandard, model.ShippingExpress, model.ShippingStorePickup:
		c.shipping = m
	case "":
		c.shipping = model.ShippingStandard
	default:
		return nil, validation("invalid shipping_method")
	}

	switch m := model.PaymentMethod(in.PaymentMethod); m {
	case model.PaymentCreditCard, model.PaymentBankTransfer, model.PaymentCashOnDelivery:
		c.payment = m
	default:
		return nil, validation("invalid payment_method")
	}

	switch t := model.InvoiceType(in.InvoiceType); t {
	case "", model.InvoiceIndividual:
		c.invoiceType = model.InvoiceIndividual
	case model.InvoiceCorporate:
		// 法人請求書は税番号・税務署・会社名が必須
		if strings.TrimSpace(in.TaxID) == "" || strings.TrimSpace(in.TaxOffice) == "" || strings.TrimSpace(in.CompanyTitle) == "" {
			return nil, validation("tax_id, tax_office and company_title required for corporate invoice")
		}
		c.invoiceType = t
	default:
		return nil, validation("invalid invoice_type")
	}

	if id.IsGuest() {
		if in.Guest == nil {
			return nil, validation("guest contact required")
		}
		g := GuestInput{
			Email:     strings.ToLower(strings.TrimSpace(in.Guest.Email)),
			FirstName: strings.TrimSpace(in.Guest.FirstName),
			LastName:  strings.TrimSpace(in.Guest.LastName),
			Phone:     strings.TrimSpace(in.Guest.Phone),
		}
		if g.FirstName == "" || g.LastName == "" || g.Email == "" || g.Phone == "" {
			return nil, validation("guest name, surname, email and phone required")
		}
		if _, err := mail.ParseAddress(g.Email); err != nil {
			return nil, validation("invalid guest email")
		}
		c.guest = g

		if len(in.Items) == 0 {
			return nil, validation("items required")
		}
		if in.Address == nil {
			return nil, validation("address required")
		}
	} else if in.AddressID <= 0 && in.Address == nil {
		return nil, validation("address required")
	}

	if in.Address != nil {
		if err := in.Address.validate(); err != nil {
			return nil, err
		}
	}
	if in.InvoiceAddress != nil {
		if err := in.InvoiceAddress.validate(); err != nil {
			return nil, err
		}
	}

	if len(in.Items) == 0 {
		c.fromCart = true
		return c, nil
	}

	lines, err := normalizeLines(in.Items)
	if err != nil {
		return nil, err
	}
	c.lines = lines
	return c, nil
}

func normalizeLines(items []OrderLineInput) ([]OrderLineInput, error) {
	out := make([]OrderLineInput, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, validation("invalid product_id")
		}
		if it.Quantity < 1 {
			return nil, validation("invalid quantity")
		}
		size, color := strings.TrimSpace(it.Size), strings.TrimSpace(it.Color)
		if size == "" || color == "" {
			return nil, validation("size and color required")
		}
		out = append(out, OrderLineInput{ProductID: it.ProductID, Size: size, Color: color, Quantity: it.Quantity})
	}
	return out, nil
}

// replay は冪等キーで既存注文を探す。別の購入者が使ったキーならConflict。
func (u *OrderUsecase) replay(ctx context.Context, id Identity, c *checkout) (OrderOutput, bool, error) {
	existing, found, err := u.orders.FindByIdempotencyKey(ctx, c.key)
	if err != nil {
		return OrderOutput{}, false, internal(err)
	}
	if !found {
		return OrderOutput{}, false, nil
	}

	sameBuyer := existing.OwnedBy(id.UserID)
	if id.IsGuest() {
		sameBuyer = existing.IsGuest() && existing.GuestEmail == c.guest.Email
	}
	if !sameBuyer {
		return OrderOutput{}, true, newError(ErrConflict, "idempotency key already used")
	}

	items, err := u.orderItems.ListByOrderID(ctx, existing.ID)
	if err != nil {
		return OrderOutput{}, true, internal(err)
	}
	return toOrderOutput(existing, items), true, nil
}

func (u *OrderUsecase) loadCartLines(ctx context.Context, id Identity, c *checkout) error {
	if id.IsGuest() {
		return validation("items required")
	}

	cart, err := u.carts.FindActiveByUserID(ctx, id.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return validation("cart empty")
	}
	if err != nil {
		return internal(err)
	}
	items, err := u.cartItems.ListByCartID(ctx, cart.ID)
	if err != nil {
		return internal(err)
	}
	if len(items) == 0 {
		return validation("cart empty")
	}

	c.cartID = cart.ID
	c.lines = cartItemsToLines(items)
	return nil
}

// 住所録の住所は所有チェック（他人のものは存在しない扱い）
func (u *OrderUsecase) resolveAddresses(ctx context.Context, id Identity, in PlaceOrderInput, c *checkout) error {
	owned := func(addressID int64) (*model.Address, error) {
		a, err := u.addresses.FindByID(ctx, addressID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newError(ErrNotFound, "address not found")
		}
		if err != nil {
			return nil, internal(err)
		}
		if id.IsGuest() || !a.OwnedBy(id.UserID) {
			return nil, newError(ErrNotFound, "address not found")
		}
		return &a, nil
	}

	if in.Address == nil {
		a, err := owned(in.AddressID)
		if err != nil {
			return err
		}
		c.deliveryAddr = a
	}
	if in.InvoiceAddress == nil && in.InvoiceAddressID > 0 {
		a, err := owned(in.InvoiceAddressID)
		if err != nil {
			return err
		}
		c.invoiceAddr = a
	}
	return nil
}

// commit は注文作成・明細・在庫減算・outboxを1トランザクションで書く。
func (u *OrderUsecase) commit(ctx context.Context, r repo.TxRepos, id Identity, in PlaceOrderInput, c *checkout) (OrderOutput, error) {
	lines := c.lines
	if c.fromCart {
		// 事前チェック後にカートが変わっていないかトランザクション内で読み直す
		cart, err := r.Carts().FindActiveByUserID(ctx, id.UserID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && cart.ID != c.cartID) {
			return OrderOutput{}, newError(ErrConflict, "cart changed")
		}
		if err != nil {
			return OrderOutput{}, internal(err)
		}
		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return OrderOutput{}, internal(err)
		}
		if len(items) == 0 {
			return OrderOutput{}, validation("cart empty")
		}
		lines = cartItemsToLines(items)
	}

	ids := make([]int64, 0, len(lines))
	for _, ln := range lines {
		ids = append(ids, ln.ProductID)
	}
	found, err := r.Products().FindByIDs(ctx, ids)
	if err != nil {
		return OrderOutput{}, internal(err)
	}
	byID := make(map[int64]model.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	// 価格はこの時点の商品価格をスナップショットする
	canReturn, canExchange := true, true
	subtotal := decimal.Zero
	items := make([]model.OrderItem, 0, len(lines))
	for _, ln := range lines {
		p, ok := byID[ln.ProductID]
		if !ok || !p.IsActive {
			return OrderOutput{}, newError(ErrProductNotFound, "product not found")
		}
		canReturn = canReturn && p.IsReturnable
		canExchange = canExchange && p.IsExchangeable

		it := model.OrderItem{
			ProductID:           p.ID,
			ProductNameSnapshot: p.Name,
			UnitPriceSnapshot:   p.Price,
			Size:                ln.Size,
			Color:               ln.Color,
			Quantity:            ln.Quantity,
		}
		subtotal = subtotal.Add(it.LineTotal())
		items = append(items, it)
	}

	delivery, err := u.addressFor(ctx, r, c.deliveryAddr, in.Address)
	if err != nil {
		return OrderOutput{}, err
	}
	invoice := delivery
	if c.invoiceAddr != nil || in.InvoiceAddress != nil {
		invoice, err = u.addressFor(ctx, r, c.invoiceAddr, in.InvoiceAddress)
		if err != nil {
			return OrderOutput{}, err
		}
	}

	shippingCost := u.shipping.Cost(c.shipping, subtotal)
	discount := decimal.Zero

	order := model.Order{
		UserID:           id.userIDPtr(),
		GuestEmail:       c.guest.Email,
		GuestFirstName:   c.guest.FirstName,
		GuestLastName:    c.guest.LastName,
		GuestPhone:       c.guest.Phone,
		AddressID:        delivery,
		InvoiceAddressID: invoice,
		ShippingMethod:   c.shipping,
		PaymentMethod:    c.payment,
		Subtotal:         subtotal,
		Discount:         discount,
		ShippingCost:     shippingCost,
		Total:            subtotal.Sub(discount).Add(shippingCost),
		Note:             strings.TrimSpace(in.Note),
		InvoiceType:      c.invoiceType,
		Status:           model.OrderStatusPending,
		CanCancel:        true,
		CanReturn:        canReturn,
		CanExchange:      canExchange,
		EinvoiceStatus:   model.EinvoicePending,
		IdempotencyKey:   c.key,
	}
	if c.invoiceType == model.InvoiceCorporate {
		order.TaxID = strings.TrimSpace(in.TaxID)
		order.TaxOffice = strings.TrimSpace(in.TaxOffice)
		order.CompanyTitle = strings.TrimSpace(in.CompanyTitle)
	}

	if err := r.Orders().Create(ctx, &order); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return OrderOutput{}, errIdempotencyRace
		}
		return OrderOutput{}, internal(err)
	}

	if err := r.OrderItems().CreateBulk(ctx, order.ID, items); err != nil {
		return OrderOutput{}, internal(err)
	}

	// 条件付きUPDATEで減算。足りなければ全部ロールバック
	if err := u.ledger.ReserveAndCommit(ctx, r, toStockLines(lines), MovementMeta{
		OrderID:     &order.ID,
		Source:      model.MovementSourceOrder,
		ActorUserID: id.userIDPtr(),
		Description: orderCartName(order.ID),
	}); err != nil {
		return OrderOutput{}, err
	}

	if err := appendOutbox(ctx, r, model.EventOrderPlaced, order.ID, model.OrderPlacedPayload{OrderID: order.ID}); err != nil {
		return OrderOutput{}, err
	}

	if c.fromCart {
		if _, err := archiveCart(ctx, r, id.UserID, c.cartID, orderCartName(order.ID)); err != nil {
			return OrderOutput{}, err
		}
	}

	return toOrderOutput(order, items), nil
}

// 入力された住所は注文用として保存する（住所録には入れない）
func (u *OrderUsecase) addressFor(ctx context.Context, r repo.TxRepos, saved *model.Address, inline *AddressInput) (int64, error) {
	if inline == nil {
		return saved.ID, nil
	}
	a := inline.toModel(nil)
	if err := r.Addresses().Create(ctx, &a); err != nil {
		return 0, internal(err)
	}
	return a.ID, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, id Identity, page, limit int) (OrderListOutput, error) {
	if id.IsGuest() {
		return OrderListOutput{}, newError(ErrUnauthorized, "unauthorized")
	}
	page, limit = normalizePage(page, limit)

	orders, total, err := u.orders.ListByUserID(ctx, id.UserID, page, limit)
	if err != nil {
		return OrderListOutput{}, internal(err)
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		items, err := u.orderItems.ListByOrderID(ctx, o.ID)
		if err != nil {
			return OrderListOutput{}, internal(err)
		}
		outs = append(outs, toOrderOutput(o, items))
	}
	return OrderListOutput{Items: outs, Page: page, Limit: limit, Total: total}, nil
}

func (u *OrderUsecase) GetMyOrder(ctx context.Context, id Identity, orderID int64) (OrderOutput, error) {
	if id.IsGuest() {
		return OrderOutput{}, newError(ErrUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, validation("invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, newError(ErrNotFound, "not found")
	}
	if err != nil {
		return OrderOutput{}, internal(err)
	}
	//他人の注文は「存在しない扱い」にする
	if !o.OwnedBy(id.UserID) {
		return OrderOutput{}, newError(ErrNotFound, "not found")
	}

	items, err := u.orderItems.ListByOrderID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, internal(err)
	}
	return toOrderOutput(o, items), nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func cartItemsToLines(items []model.CartItem) []OrderLineInput {
	lines := make([]OrderLineInput, 0, len(items))
	for _, it := range items {
		lines = append(lines, OrderLineInput{ProductID: it.ProductID, Size: it.Size, Color: it.Color, Quantity: it.Quantity})
	}
	return lines
}

func toStockLines(lines []OrderLineInput) []StockLine {
	out := make([]StockLine, 0, len(lines))
	for _, ln := range lines {
		out = append(out, StockLine{ProductID: ln.ProductID, Quantity: ln.Quantity})
	}
	return out
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Size:      it.Size,
			Color:     it.Color,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		ID:               o.ID,
		UserID:           o.UserID,
		GuestEmail:       o.GuestEmail,
		Status:           o.Status,
		AddressID:        o.AddressID,
		InvoiceAddressID: o.InvoiceAddressID,
		ShippingMethod:   o.ShippingMethod,
		PaymentMethod:    o.PaymentMethod,
		InvoiceType:      o.InvoiceType,
		Subtotal:         o.Subtotal,
		Discount:         o.Discount,
		ShippingCost:     o.ShippingCost,
		Total:            o.Total,
		CanCancel:        o.CanCancel,
		CanReturn:        o.CanReturn,
		CanExchange:      o.CanExchange,
		CancelReason:     o.CancelReason,
		ReturnReason:     o.ReturnReason,
		ExchangeReason:   o.ExchangeReason,
		Exchange:         o.Exchange,

		CancelRequestedAt:   o.CancelRequestedAt,
		ReturnRequestedAt:   o.ReturnRequestedAt,
		ExchangeRequestedAt: o.ExchangeRequestedAt,

		TrackingNumber:   o.TrackingNumber,
		EinvoicePdfURL:   o.EinvoicePdfURL,
		EinvoiceStatus:   o.EinvoiceStatus,
		CreatedAt:        o.CreatedAt,
		Items:            outItems,
	}
}
