package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/logger"
	"fashionshop/internal/metrics"
	repo "fashionshop/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("notification")

// 請求書の元データ
type InvoiceData struct {
	Order          model.Order
	Items          []model.OrderItem
	Address        model.Address
	InvoiceAddress model.Address
}

type OrderMail struct {
	To        string
	Name      string
	Order     model.Order
	Items     []model.OrderItem
	Invoice   []byte
	InvoiceAt string
}

type StatusMail struct {
	To    string
	Name  string
	Order model.Order
	From  model.OrderStatus
}

type InvoiceRenderer interface {
	Render(ctx context.Context, data InvoiceData) ([]byte, error)
}

type ObjectStore interface {
	// 保存先のURLを返す
	PutInvoice(ctx context.Context, orderID int64, pdf []byte) (string, error)
}

type OrderMailer interface {
	SendOrderConfirmation(ctx context.Context, m OrderMail) error
	SendStatusChanged(ctx context.Context, m StatusMail) error
}

type StockNotifier interface {
	NotifyRestocked(ctx context.Context, productID int64) (int, error)
}

// Handler はコミット後の副作用をまとめて実行する。
// どの段階が失敗してもログとメトリクスに残すだけで、注文には影響させない。
type Handler struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	addresses  repo.AddressRepository
	users      repo.UserRepository
	renderer   InvoiceRenderer
	store      ObjectStore
	mailer     OrderMailer
	stock      StockNotifier
}

func NewHandler(
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	addresses repo.AddressRepository,
	users repo.UserRepository,
	renderer InvoiceRenderer,
	store ObjectStore,
	mailer OrderMailer,
	stock StockNotifier,
) *Handler {
	return &Handler{
		orders:     orders,
		orderItems: orderItems,
		addresses:  addresses,
		users:      users,
		renderer:   renderer,
		store:      store,
		mailer:     mailer,
		stock:      stock,
	}
}

// Handle は1イベントを処理する。返すエラーはpayloadが読めない等、再試行しても無駄なものだけ。
func (h *Handler) Handle(ctx context.Context, e model.OutboxEvent) error {
	ctx, span := tracer.Start(ctx, "notification.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", string(e.Type)),
		attribute.Int64("event.aggregate_id", e.AggregateID),
	)

	switch e.Type {
	case model.EventOrderPlaced:
		var p model.OrderPlacedPayload
		if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		h.orderPlaced(ctx, p.OrderID)
	case model.EventOrderStatusChanged:
		var p model.OrderStatusChangedPayload
		if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		h.statusChanged(ctx, p)
	case model.EventProductRestocked:
		var p model.ProductRestockedPayload
		if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		if h.stock == nil {
			return nil
		}
		sent, err := h.stock.NotifyRestocked(ctx, p.ProductID)
		if err != nil {
			h.fail(ctx, "stock_fanout", p.ProductID, err)
			return nil
		}
		logger.Info(ctx).Int64("product_id", p.ProductID).Int("sent", sent).Msg("back-in-stock notifications sent")
	default:
		logger.Warn(ctx).Str("type", string(e.Type)).Msg("unknown outbox event type")
	}
	return nil
}

func (h *Handler) orderPlaced(ctx context.Context, orderID int64) {
	o, err := h.orders.FindByID(ctx, orderID)
	if err != nil {
		h.fail(ctx, "load_order", orderID, err)
		return
	}
	items, err := h.orderItems.ListByOrderID(ctx, orderID)
	if err != nil {
		h.fail(ctx, "load_order", orderID, err)
		return
	}

	pdf, url := h.invoice(ctx, o, items)
	if url != "" {
		o.EinvoicePdfURL = url
	}

	to, name, err := h.buyer(ctx, o)
	if err != nil {
		h.fail(ctx, "buyer", orderID, err)
		return
	}
	if h.mailer == nil {
		return
	}
	err = h.mailer.SendOrderConfirmation(ctx, OrderMail{
		To:        to,
		Name:      name,
		Order:     o,
		Items:     items,
		Invoice:   pdf,
		InvoiceAt: url,
	})
	if err != nil {
		h.fail(ctx, "confirmation_email", orderID, err)
		return
	}
	logger.Info(ctx).Int64("order_id", orderID).Str("to", to).Msg("order confirmation sent")
}

// 請求書の生成と保存。失敗したらeinvoice_statusをFAILEDにする
func (h *Handler) invoice(ctx context.Context, o model.Order, items []model.OrderItem) ([]byte, string) {
	if h.renderer == nil {
		return nil, ""
	}

	data := InvoiceData{Order: o, Items: items}
	var err error
	if data.Address, err = h.addresses.FindByID(ctx, o.AddressID); err != nil {
		h.invoiceFailed(ctx, o.ID, "invoice_render", err)
		return nil, ""
	}
	data.InvoiceAddress = data.Address
	if o.InvoiceAddressID != o.AddressID {
		if data.InvoiceAddress, err = h.addresses.FindByID(ctx, o.InvoiceAddressID); err != nil {
			h.invoiceFailed(ctx, o.ID, "invoice_render", err)
			return nil, ""
		}
	}

	pdf, err := h.renderer.Render(ctx, data)
	if err != nil {
		h.invoiceFailed(ctx, o.ID, "invoice_render", err)
		return nil, ""
	}

	if h.store == nil {
		// 保存先が無くても添付はできる
		return pdf, ""
	}
	url, err := h.store.PutInvoice(ctx, o.ID, pdf)
	if err != nil {
		h.invoiceFailed(ctx, o.ID, "invoice_upload", err)
		return pdf, ""
	}
	if err := h.orders.UpdateInvoice(ctx, o.ID, url, model.EinvoiceGenerated); err != nil {
		h.fail(ctx, "invoice_save", o.ID, err)
		return pdf, url
	}
	return pdf, url
}

func (h *Handler) invoiceFailed(ctx context.Context, orderID int64, stage string, cause error) {
	h.fail(ctx, stage, orderID, cause)
	if err := h.orders.UpdateInvoice(ctx, orderID, "", model.EinvoiceFailed); err != nil {
		h.fail(ctx, "invoice_save", orderID, err)
	}
}

func (h *Handler) statusChanged(ctx context.Context, p model.OrderStatusChangedPayload) {
	if h.mailer == nil {
		return
	}
	o, err := h.orders.FindByID(ctx, p.OrderID)
	if err != nil {
		h.fail(ctx, "load_order", p.OrderID, err)
		return
	}
	to, name, err := h.buyer(ctx, o)
	if err != nil {
		h.fail(ctx, "buyer", p.OrderID, err)
		return
	}
	// 送信時点の状態ではなくイベントの遷移先を知らせる
	o.Status = p.To
	if err := h.mailer.SendStatusChanged(ctx, StatusMail{To: to, Name: name, Order: o, From: p.From}); err != nil {
		h.fail(ctx, "status_email", p.OrderID, err)
	}
}

// 宛先。ゲストは注文のメール、会員はユーザーのメール
func (h *Handler) buyer(ctx context.Context, o model.Order) (string, string, error) {
	if o.IsGuest() {
		if o.GuestEmail == "" {
			return "", "", errors.New("guest order without email")
		}
		return o.GuestEmail, o.GuestFirstName, nil
	}
	u, err := h.users.FindByID(ctx, *o.UserID)
	if err != nil {
		return "", "", fmt.Errorf("find user %d: %w", *o.UserID, err)
	}
	return u.Email, u.FirstName, nil
}

func (h *Handler) fail(ctx context.Context, stage string, id int64, err error) {
	metrics.PostCommitFailures.WithLabelValues(stage).Inc()
	logger.Error(ctx).Err(err).Str("stage", stage).Int64("aggregate_id", id).Msg("post-commit step failed")
}
