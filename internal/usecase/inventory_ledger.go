package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/metrics"
	repo "fashionshop/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ledgerTracer = otel.Tracer("fashionshop/inventory-ledger")

// 商品ごとの在庫変動量
type StockLine struct {
	ProductID int64
	Quantity  int64
}

// 台帳に書く付帯情報
type MovementMeta struct {
	OrderID     *int64
	Source      model.MovementSource
	ActorUserID *int64
	Description string
}

// InventoryLedger は在庫の増減を台帳付きで行う。
// products.stockの変更は必ずここを通るので、stock = ΣIN - ΣOUT が保たれる。
type InventoryLedger struct{}

func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{}
}

// 同じ商品をまとめて商品ID昇順にする（ロック順を固定してデッドロックを避ける）
func MergeLines(lines []StockLine) []StockLine {
	sum := make(map[int64]int64, len(lines))
	for _, l := range lines {
		sum[l.ProductID] += l.Quantity
	}
	out := make([]StockLine, 0, len(sum))
	for id, qty := range sum {
		out = append(out, StockLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// CheckAvailability はトランザクション前の事前チェック。
// 結果は保証ではない（確定はReserveAndCommitの条件付き更新）。
func (l *InventoryLedger) CheckAvailability(ctx context.Context, products repo.ProductRepository, lines []StockLine) (map[int64]model.Product, error) {
	merged := MergeLines(lines)
	ids := make([]int64, 0, len(merged))
	for _, ln := range merged {
		ids = append(ids, ln.ProductID)
	}

	found, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, internal(err)
	}
	byID := make(map[int64]model.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	for _, ln := range merged {
		p, ok := byID[ln.ProductID]
		if !ok || !p.IsActive {
			return nil, newError(ErrProductNotFound, "product not found")
		}
		if p.Stock < ln.Quantity {
			metrics.StockRejections.WithLabelValues("precheck").Inc()
			return nil, &InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: ln.Quantity}
		}
	}
	return byID, nil
}

// ReserveAndCommit は呼び出し元のトランザクション内で在庫を減らし、OUTを記録する。
// 1件でも足りなければInsufficientStockErrorを返す（呼び出し元がロールバックする）。
func (l *InventoryLedger) ReserveAndCommit(ctx context.Context, r repo.TxRepos, lines []StockLine, meta MovementMeta) error {
	ctx, span := ledgerTracer.Start(ctx, "InventoryLedger.ReserveAndCommit")
	defer span.End()

	for _, ln := range MergeLines(lines) {
		span.AddEvent("decrement", trace.WithAttributes(
			attribute.Int64("product.id", ln.ProductID),
			attribute.Int64("quantity", ln.Quantity),
		))

		after, ok, err := r.Inventory().DecreaseStockIfEnough(ctx, ln.ProductID, ln.Quantity)
		if err != nil {
			return internal(err)
		}
		if !ok {
			metrics.StockRejections.WithLabelValues("commit").Inc()
			available := int64(0)
			p, err := r.Products().FindByID(ctx, ln.ProductID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return internal(err)
			}
			if err == nil {
				available = p.Stock
			}
			return &InsufficientStockError{ProductID: ln.ProductID, Available: available, Requested: ln.Quantity}
		}

		if err := l.append(ctx, r, model.MovementOut, ln, after, meta); err != nil {
			return err
		}
	}
	return nil
}

// Restore は在庫を戻してINを記録する。在庫切れから戻った商品は再入荷イベントを出す。
func (l *InventoryLedger) Restore(ctx context.Context, r repo.TxRepos, lines []StockLine, meta MovementMeta) error {
	ctx, span := ledgerTracer.Start(ctx, "InventoryLedger.Restore")
	defer span.End()

	for _, ln := range MergeLines(lines) {
		after, err := r.Inventory().IncreaseStock(ctx, ln.ProductID, ln.Quantity)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrProductNotFound, "product not found")
		}
		if err != nil {
			return internal(err)
		}

		if err := l.append(ctx, r, model.MovementIn, ln, after, meta); err != nil {
			return err
		}

		if after-ln.Quantity <= 0 {
			if err := appendOutbox(ctx, r, model.EventProductRestocked, ln.ProductID, model.ProductRestockedPayload{
				ProductID:  ln.ProductID,
				Quantity:   ln.Quantity,
				StockAfter: after,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *InventoryLedger) append(ctx context.Context, r repo.TxRepos, typ model.MovementType, ln StockLine, after int64, meta MovementMeta) error {
	m := model.StockMovement{
		ProductID:   ln.ProductID,
		OrderID:     meta.OrderID,
		Type:        typ,
		Source:      meta.Source,
		Quantity:    ln.Quantity,
		StockAfter:  after,
		Description: meta.Description,
		ActorUserID: meta.ActorUserID,
	}
	if err := r.Inventory().AppendMovement(ctx, &m); err != nil {
		return internal(err)
	}
	metrics.StockMovements.WithLabelValues(string(typ), string(meta.Source)).Inc()
	return nil
}

// outboxへ1件書く（同じトランザクション）
func appendOutbox(ctx context.Context, r repo.TxRepos, typ model.EventType, aggregateID int64, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return internal(err)
	}
	e := model.OutboxEvent{
		EventID:     uuid.NewString(),
		Type:        typ,
		AggregateID: aggregateID,
		Payload:     string(b),
	}
	if err := r.Outbox().Append(ctx, &e); err != nil {
		return internal(err)
	}
	return nil
}
