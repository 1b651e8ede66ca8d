package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/logger"
	"fashionshop/internal/metrics"
	repo "fashionshop/internal/repository"
)

// OrderLifecycleUsecase は購入者からのキャンセル・返品・交換の申請。
// 承認・却下はAdminOrderUsecase。
type OrderLifecycleUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
}

func NewOrderLifecycleUsecase(tx repo.TransactionManager, orders repo.OrderRepository, orderItems repo.OrderItemRepository) *OrderLifecycleUsecase {
	return &OrderLifecycleUsecase{tx: tx, orders: orders, orderItems: orderItems}
}

type ExchangeRequestInput struct {
	Reason             string
	OrderItemID        int64
	RequestedProductID int64
	RequestedSize      string
	RequestedColor     string
}

func (u *OrderLifecycleUsecase) RequestCancellation(ctx context.Context, id Identity, orderID int64, reason string) (OrderOutput, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return OrderOutput{}, err
	}

	return u.request(ctx, id, orderID, model.OrderStatusCancellationRequested, func(r repo.TxRepos, o model.Order, now time.Time) (map[string]any, error) {
		if o.Status != model.OrderStatusPending && o.Status != model.OrderStatusConfirmed {
			return nil, invalidTransition(o.Status, model.OrderStatusCancellationRequested)
		}
		if !o.CanCancel {
			return nil, newError(ErrInvalidTransition, "order cannot be cancelled")
		}
		return map[string]any{
			"cancel_reason":         reason,
			"cancel_requested_at":   now,
			"status_before_request": o.Status,
		}, nil
	})
}

func (u *OrderLifecycleUsecase) RequestReturn(ctx context.Context, id Identity, orderID int64, reason string) (OrderOutput, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return OrderOutput{}, err
	}

	return u.request(ctx, id, orderID, model.OrderStatusReturnRequested, func(r repo.TxRepos, o model.Order, now time.Time) (map[string]any, error) {
		if o.Status != model.OrderStatusDelivered {
			return nil, invalidTransition(o.Status, model.OrderStatusReturnRequested)
		}
		if !o.CanReturn {
			return nil, newError(ErrInvalidTransition, "order cannot be returned")
		}
		return map[string]any{
			"return_reason":         reason,
			"return_requested_at":   now,
			"status_before_request": o.Status,
		}, nil
	})
}

// 交換は明細1行を別の商品（またはサイズ・色）に替える申請
func (u *OrderLifecycleUsecase) RequestExchange(ctx context.Context, id Identity, orderID int64, in ExchangeRequestInput) (OrderOutput, error) {
	reason, err := requireReason(in.Reason)
	if err != nil {
		return OrderOutput{}, err
	}
	size, color := strings.TrimSpace(in.RequestedSize), strings.TrimSpace(in.RequestedColor)
	if in.OrderItemID <= 0 || in.RequestedProductID <= 0 {
		return OrderOutput{}, validation("order_item_id and requested_product_id required")
	}
	if size == "" || color == "" {
		return OrderOutput{}, validation("requested size and color required")
	}

	return u.request(ctx, id, orderID, model.OrderStatusExchangeRequested, func(r repo.TxRepos, o model.Order, now time.Time) (map[string]any, error) {
		if o.Status != model.OrderStatusDelivered {
			return nil, invalidTransition(o.Status, model.OrderStatusExchangeRequested)
		}
		if !o.CanExchange {
			return nil, newError(ErrInvalidTransition, "order cannot be exchanged")
		}

		item, err := r.OrderItems().FindByID(ctx, in.OrderItemID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && item.OrderID != o.ID) {
			return nil, validation("order item does not belong to order")
		}
		if err != nil {
			return nil, internal(err)
		}

		p, err := r.Products().FindByID(ctx, in.RequestedProductID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
			return nil, newError(ErrProductNotFound, "product not found")
		}
		if err != nil {
			return nil, internal(err)
		}

		return map[string]any{
			"exchange_reason":               reason,
			"exchange_requested_at":         now,
			"exchange_order_item_id":        item.ID,
			"exchange_requested_product_id": p.ID,
			"exchange_requested_size":       size,
			"exchange_requested_color":      color,
			"status_before_request":         o.Status,
		}, nil
	})
}

// request は本人の注文かを確認してから遷移する。
func (u *OrderLifecycleUsecase) request(
	ctx context.Context,
	id Identity,
	orderID int64,
	to model.OrderStatus,
	fieldsFor func(r repo.TxRepos, o model.Order, now time.Time) (map[string]any, error),
) (OrderOutput, error) {
	if id.IsGuest() {
		return OrderOutput{}, newError(ErrUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, validation("invalid id")
	}

	var from model.OrderStatus
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, "not found")
		}
		if err != nil {
			return internal(err)
		}
		if !o.OwnedBy(id.UserID) {
			return newError(ErrForbidden, "forbidden")
		}

		fields, err := fieldsFor(r, o, time.Now())
		if err != nil {
			return err
		}
		from = o.Status
		return applyTransition(ctx, r, o, to, fields)
	})
	if err != nil {
		return OrderOutput{}, err
	}

	recordTransition(ctx, orderID, from, to)
	return loadOrder(ctx, u.orders, u.orderItems, orderID)
}

// applyTransition は遷移表を確認し、status = from の条件付きUPDATEで遷移する。
// 同じトランザクションでorder.status_changedをoutboxに書く。
func applyTransition(ctx context.Context, r repo.TxRepos, o model.Order, to model.OrderStatus, fields map[string]any) error {
	if !o.Status.CanTransitionTo(to) {
		return invalidTransition(o.Status, to)
	}

	ok, err := r.Orders().Transition(ctx, o.ID, o.Status, to, fields)
	if err != nil {
		return internal(err)
	}
	if !ok {
		// 他のリクエストが先に遷移させた
		return newError(ErrInvalidTransition, "order status changed concurrently")
	}

	return appendOutbox(ctx, r, model.EventOrderStatusChanged, o.ID, model.OrderStatusChangedPayload{
		OrderID: o.ID,
		From:    o.Status,
		To:      to,
	})
}

func recordTransition(ctx context.Context, orderID int64, from, to model.OrderStatus) {
	metrics.OrderTransitions.WithLabelValues(string(from), string(to)).Inc()
	logger.Info(ctx).
		Int64("order_id", orderID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("order status changed")
}

func invalidTransition(from, to model.OrderStatus) error {
	return newError(ErrInvalidTransition, fmt.Sprintf("cannot change status from %s to %s", from, to))
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", validation("reason required")
	}
	if len(reason) > 1000 {
		return "", validation("reason too long")
	}
	return reason, nil
}

func loadOrder(ctx context.Context, orders repo.OrderRepository, orderItems repo.OrderItemRepository, orderID int64) (OrderOutput, error) {
	o, err := orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, newError(ErrNotFound, "not found")
	}
	if err != nil {
		return OrderOutput{}, internal(err)
	}
	items, err := orderItems.ListByOrderID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, internal(err)
	}
	return toOrderOutput(o, items), nil
}
