package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"
)

// AdminOrderUsecase は管理者の注文操作。
// 遷移はすべて遷移表＋条件付きUPDATEで行い、監査ログを残す。
type AdminOrderUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	ledger     *InventoryLedger
}

func NewAdminOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	ledger *InventoryLedger,
) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, orders: orders, orderItems: orderItems, ledger: ledger}
}

type AdvanceOrderInput struct {
	// SHIPPEDにするときは必須
	TrackingNumber string
	Note           string
}

type AdminDecisionInput struct {
	Note string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, actor Identity, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	if !actor.IsAdmin() {
		return OrderListOutput{}, newError(ErrForbidden, "forbidden")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return OrderListOutput{}, validation("invalid status")
	}
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)

	orders, total, err := u.orders.ListAdmin(ctx, f)
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
	return OrderListOutput{Items: outs, Page: f.Page, Limit: f.Limit, Total: total}, nil
}

// Advance は通常フローを1段だけ進める（PENDING→CONFIRMED→SHIPPED→DELIVERED）。
func (u *AdminOrderUsecase) Advance(ctx context.Context, actor Identity, orderID int64, in AdvanceOrderInput) (OrderOutput, error) {
	tracking := strings.TrimSpace(in.TrackingNumber)

	return u.decide(ctx, actor, orderID, func(r repo.TxRepos, o model.Order, now time.Time) (model.OrderStatus, map[string]any, error) {
		next, ok := o.Status.Next()
		if !ok {
			return "", nil, newError(ErrInvalidTransition, "order cannot be advanced from "+string(o.Status))
		}

		fields := map[string]any{}
		if note := strings.TrimSpace(in.Note); note != "" {
			fields["admin_note"] = note
		}
		switch next {
		case model.OrderStatusConfirmed:
			fields["confirmed_at"] = now
		case model.OrderStatusShipped:
			if tracking == "" {
				return "", nil, validation("tracking_number required")
			}
			fields["shipped_at"] = now
			fields["tracking_number"] = tracking
			fields["can_cancel"] = false
		case model.OrderStatusDelivered:
			fields["delivered_at"] = now
		}
		return next, fields, nil
	})
}

// Cancel は申請なしで直接キャンセルする。在庫は戻す。
func (u *AdminOrderUsecase) Cancel(ctx context.Context, actor Identity, orderID int64, in AdminDecisionInput) (OrderOutput, error) {
	return u.decide(ctx, actor, orderID, func(r repo.TxRepos, o model.Order, now time.Time) (model.OrderStatus, map[string]any, error) {
		if o.Status != model.OrderStatusPending && o.Status != model.OrderStatusConfirmed {
			return "", nil, invalidTransition(o.Status, model.OrderStatusCancelled)
		}
		if err := u.restockOrder(ctx, r, o, model.MovementSourceCancellation, actor); err != nil {
			return "", nil, err
		}
		fields := closeFields(now, in.Note)
		if reason := strings.TrimSpace(in.Note); reason != "" {
			fields["cancel_reason"] = reason
		}
		return model.OrderStatusCancelled, fields, nil
	})
}

func (u *AdminOrderUsecase) ApproveCancellation(ctx context.Context, actor Identity, orderID int64, in AdminDecisionInput) (OrderOutput, error) {
	return u.decide(ctx, actor, orderID, func(r repo.TxRepos, o model.Order, now time.Time) (model.OrderStatus, map[string]any, error) {
		if o.Status != model.OrderStatusCancellationRequested {
			return "", nil, invalidTransition(o.Status, model.OrderStatusCancelled)
		}
		if err := u.restockOrder(ctx, r, o, model.MovementSourceCancellation, actor); err != nil {
			return "", nil, err
		}
		return model.OrderStatusCancelled, closeFields(now, in.Note), nil
	})
}

// 却下すると申請前のステータスに戻る。同じ申請は再度できない。
func (u *AdminOrderUsecase) RejectCancellation(ctx context.Context, actor Identity, orderID int64, in AdminDecisionInput) (OrderOutput, error) {
	return u.reject(ctx, actor, orderID, model.OrderStatusCancellationRequested, "can_cancel", in)
}

func (u *AdminOrderUsecase) ApproveReturn(ctx context.Context, actor Identity, orderID int64, in AdminDecisionInput) (OrderOutput, error) {
	return u.decide(ctx, actor, orderID, func(r repo.TxRepos, o model.Order, now time.Time) (model.OrderStatus, map[string]any, error) {
		if o.Status != model.OrderStatusReturnRequested {
			return "", nil, invalidTransition(o.Status, model.OrderStatusReturned)
		}
		if err := u.restockOrder(ctx, r, o, model.MovementSourceReturn, actor); err != nil {
			return "", nil, err
		}
		return model.OrderStatusReturned, closeFields(now, in.Note), nil
	})
}

func (u *AdminOrderUsecase) RejectReturn(ctx context.Context, actor Identity, orderID int64, in AdminDecisionInput) (OrderOutput, error) {
	return u.reject(ctx, actor, orderID, model.OrderStatusReturnRequested, "can_return", in)
}

// 交換の承認: 返ってきた明細はIN、交換先の商品はOUT（在庫が無ければ失敗）
func (u *AdminOrderUsecase) ApproveExchange(ctx context.Context, actor Identity, orderID int64, in AdminDecisionInput) (OrderOutput, error) {
	return u.decide(ctx, actor, orderID, func(r repo.TxRepos, o model.Order, now time.Time) (model.OrderStatus, map[string]any, error) {
		if o.Status != model.OrderStatusExchangeRequested {
			return "", nil, invalidTransition(o.Status, model.OrderStatusExchanged)
		}
		ex := o.Exchange
		if ex.OrderItemID == nil || ex.RequestedProductID == nil {
			return "", nil, newError(ErrConflict, "exchange request incomplete")
		}

		item, err := r.OrderItems().FindByID(ctx, *ex.OrderItemID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && item.OrderID != o.ID) {
			return "", nil, newError(ErrConflict, "exchange item not found")
		}
		if err != nil {
			return "", nil, internal(err)
		}

		meta := MovementMeta{
			OrderID:     &o.ID,
			Source:      model.MovementSourceExchange,
			ActorUserID: actor.userIDPtr(),
			Description: "exchange",
		}
		if err := u.ledger.Restore(ctx, r, []StockLine{{ProductID: item.ProductID, Quantity: item.Quantity}}, meta); err != nil {
			return "", nil, err
		}
		if err := u.ledger.ReserveAndCommit(ctx, r, []StockLine{{ProductID: *ex.RequestedProductID, Quantity: item.Quantity}}, meta); err != nil {
			return "", nil, err
		}

		return model.OrderStatusExchanged, closeFields(now, in.Note), nil
	})
}

func (u *AdminOrderUsecase) RejectExchange(ctx context.Context, actor Identity, orderID int64, in AdminDecisionInput) (OrderOutput, error) {
	return u.reject(ctx, actor, orderID, model.OrderStatusExchangeRequested, "can_exchange", in)
}

func (u *AdminOrderUsecase) reject(ctx context.Context, actor Identity, orderID int64, requested model.OrderStatus, flag string, in AdminDecisionInput) (OrderOutput, error) {
	return u.decide(ctx, actor, orderID, func(r repo.TxRepos, o model.Order, now time.Time) (model.OrderStatus, map[string]any, error) {
		if o.Status != requested {
			return "", nil, newError(ErrInvalidTransition, "no pending request")
		}
		back := restoreStatus(o)
		fields := map[string]any{
			"status_before_request": nil,
			flag:                    false,
		}
		if note := strings.TrimSpace(in.Note); note != "" {
			fields["admin_note"] = note
		}
		return back, fields, nil
	})
}

// decide は管理者操作の共通部分（注文取得→遷移→監査ログ）
func (u *AdminOrderUsecase) decide(
	ctx context.Context,
	actor Identity,
	orderID int64,
	plan func(r repo.TxRepos, o model.Order, now time.Time) (model.OrderStatus, map[string]any, error),
) (OrderOutput, error) {
	if actor.IsGuest() {
		return OrderOutput{}, newError(ErrUnauthorized, "unauthorized")
	}
	if !actor.IsAdmin() {
		return OrderOutput{}, newError(ErrForbidden, "forbidden")
	}
	if orderID <= 0 {
		return OrderOutput{}, validation("invalid id")
	}

	var from, to model.OrderStatus
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, "not found")
		}
		if err != nil {
			return internal(err)
		}

		next, fields, err := plan(r, o, time.Now())
		if err != nil {
			return err
		}
		if err := applyTransition(ctx, r, o, next, fields); err != nil {
			return err
		}

		from, to = o.Status, next
		return writeOrderAudit(ctx, r, actor.UserID, o.ID, from, to, fields)
	})
	if err != nil {
		return OrderOutput{}, err
	}

	recordTransition(ctx, orderID, from, to)
	return loadOrder(ctx, u.orders, u.orderItems, orderID)
}

// 注文の全明細を在庫に戻す
func (u *AdminOrderUsecase) restockOrder(ctx context.Context, r repo.TxRepos, o model.Order, source model.MovementSource, actor Identity) error {
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return internal(err)
	}
	lines := make([]StockLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, StockLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return u.ledger.Restore(ctx, r, lines, MovementMeta{
		OrderID:     &o.ID,
		Source:      source,
		ActorUserID: actor.userIDPtr(),
		Description: strings.ToLower(string(source)),
	})
}

// 終了状態にするときの共通項目
func closeFields(now time.Time, note string) map[string]any {
	fields := map[string]any{
		"closed_at":             now,
		"can_cancel":            false,
		"can_return":            false,
		"can_exchange":          false,
		"status_before_request": nil,
	}
	if note = strings.TrimSpace(note); note != "" {
		fields["admin_note"] = note
	}
	return fields
}

// 申請前のステータス。記録が無い古い行は申請元として唯一ありうる状態に戻す。
func restoreStatus(o model.Order) model.OrderStatus {
	if o.StatusBeforeRequest != nil && o.Status.CanTransitionTo(*o.StatusBeforeRequest) {
		return *o.StatusBeforeRequest
	}
	if o.Status == model.OrderStatusCancellationRequested {
		return model.OrderStatusPending
	}
	return model.OrderStatusDelivered
}

func writeOrderAudit(ctx context.Context, r repo.TxRepos, actorID, orderID int64, from, to model.OrderStatus, fields map[string]any) error {
	before, _ := json.Marshal(map[string]any{"status": from})
	after := map[string]any{"status": to}
	for _, k := range []string{"tracking_number", "admin_note", "cancel_reason"} {
		if v, ok := fields[k]; ok {
			after[k] = v
		}
	}
	afterJSON, _ := json.Marshal(after)

	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionUpdateOrderStatus,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   orderID,
		BeforeJSON:   string(before),
		AfterJSON:    string(afterJSON),
	}); err != nil {
		return internal(err)
	}
	return nil
}
