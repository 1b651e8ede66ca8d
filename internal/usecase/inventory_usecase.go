package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"
)

// 管理者の在庫操作（入荷・棚卸し調整・台帳参照）
type InventoryUsecase struct {
	tx       repo.TransactionManager
	products repo.ProductRepository
	stock    repo.InventoryRepository
	ledger   *InventoryLedger
}

func NewInventoryUsecase(
	tx repo.TransactionManager,
	products repo.ProductRepository,
	stock repo.InventoryRepository,
	ledger *InventoryLedger,
) *InventoryUsecase {
	return &InventoryUsecase{tx: tx, products: products, stock: stock, ledger: ledger}
}

type RestockInput struct {
	Quantity int64
	Reason   string
}

type AdjustStockInput struct {
	NewStock int64
	Reason   string
}

type StockLevelOutput struct {
	ProductID int64 `json:"product_id"`
	Stock     int64 `json:"stock"`
}

type ReconcileOutput struct {
	ProductID  int64 `json:"product_id"`
	Stock      int64 `json:"stock"`
	TotalIn    int64 `json:"total_in"`
	TotalOut   int64 `json:"total_out"`
	Consistent bool  `json:"consistent"`
}

type MovementListOutput struct {
	Items []model.StockMovement `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// 入荷。INを記録してproduct.restockedを出す。
func (u *InventoryUsecase) Restock(ctx context.Context, actor Identity, productID int64, in RestockInput) (StockLevelOutput, error) {
	if !actor.IsAdmin() {
		return StockLevelOutput{}, newError(ErrForbidden, "admin only")
	}
	if productID <= 0 {
		return StockLevelOutput{}, validation("invalid product_id")
	}
	if in.Quantity < 1 {
		return StockLevelOutput{}, validation("quantity must be >= 1")
	}
	reason := strings.TrimSpace(in.Reason)
	if len(reason) > 255 {
		return StockLevelOutput{}, validation("reason too long")
	}

	var out StockLevelOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrProductNotFound, "product not found")
		}
		if err != nil {
			return internal(err)
		}

		after, err := r.Inventory().IncreaseStock(ctx, productID, in.Quantity)
		if err != nil {
			return internal(err)
		}
		if err := u.ledger.append(ctx, r, model.MovementIn, StockLine{ProductID: productID, Quantity: in.Quantity}, after, MovementMeta{
			Source:      model.MovementSourceRestock,
			ActorUserID: actor.userIDPtr(),
			Description: reason,
		}); err != nil {
			return err
		}

		if err := appendOutbox(ctx, r, model.EventProductRestocked, productID, model.ProductRestockedPayload{
			ProductID:  productID,
			Quantity:   in.Quantity,
			StockAfter: after,
		}); err != nil {
			return err
		}

		if err := writeStockAudit(ctx, r, actor.UserID, productID, before.Stock, after, reason); err != nil {
			return err
		}

		out = StockLevelOutput{ProductID: productID, Stock: after}
		return nil
	})
	if err != nil {
		return StockLevelOutput{}, err
	}
	return out, nil
}

// 棚卸し調整。上書きではなく差分をIN/OUTで記録する。
func (u *InventoryUsecase) Adjust(ctx context.Context, actor Identity, productID int64, in AdjustStockInput) (StockLevelOutput, error) {
	if !actor.IsAdmin() {
		return StockLevelOutput{}, newError(ErrForbidden, "admin only")
	}
	if productID <= 0 {
		return StockLevelOutput{}, validation("invalid product_id")
	}
	if in.NewStock < 0 {
		return StockLevelOutput{}, validation("stock must be >= 0")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" || len(reason) > 255 {
		return StockLevelOutput{}, validation("reason is required")
	}

	var out StockLevelOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrProductNotFound, "product not found")
		}
		if err != nil {
			return internal(err)
		}

		delta := in.NewStock - p.Stock
		meta := MovementMeta{
			Source:      model.MovementSourceAdjustment,
			ActorUserID: actor.userIDPtr(),
			Description: reason,
		}
		switch {
		case delta > 0:
			if err := u.ledger.Restore(ctx, r, []StockLine{{ProductID: productID, Quantity: delta}}, meta); err != nil {
				return err
			}
		case delta < 0:
			// 読んだ後に減っていたら条件付き更新で弾かれる
			err := u.ledger.ReserveAndCommit(ctx, r, []StockLine{{ProductID: productID, Quantity: -delta}}, meta)
			if _, ok := AsInsufficientStock(err); ok {
				return newError(ErrConflict, "stock changed concurrently")
			}
			if err != nil {
				return err
			}
		}

		if delta != 0 {
			if err := writeStockAudit(ctx, r, actor.UserID, productID, p.Stock, in.NewStock, reason); err != nil {
				return err
			}
		}

		out = StockLevelOutput{ProductID: productID, Stock: in.NewStock}
		return nil
	})
	if err != nil {
		return StockLevelOutput{}, err
	}
	return out, nil
}

func (u *InventoryUsecase) ListMovements(ctx context.Context, f repo.MovementFilter) (MovementListOutput, error) {
	if f.Page < 1 {
		return MovementListOutput{}, validation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 200 {
		return MovementListOutput{}, validation("invalid limit")
	}

	items, total, err := u.stock.ListMovements(ctx, f)
	if err != nil {
		return MovementListOutput{}, internal(err)
	}
	return MovementListOutput{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// 台帳の合計と現在庫を突き合わせる
func (u *InventoryUsecase) Reconcile(ctx context.Context, productID int64) (ReconcileOutput, error) {
	if productID <= 0 {
		return ReconcileOutput{}, validation("invalid product_id")
	}

	var out ReconcileOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrProductNotFound, "product not found")
		}
		if err != nil {
			return internal(err)
		}

		totalIn, totalOut, err := r.Inventory().MovementTotals(ctx, productID)
		if err != nil {
			return internal(err)
		}

		out = ReconcileOutput{
			ProductID:  productID,
			Stock:      p.Stock,
			TotalIn:    totalIn,
			TotalOut:   totalOut,
			Consistent: p.Stock == totalIn-totalOut,
		}
		return nil
	})
	if err != nil {
		return ReconcileOutput{}, err
	}
	return out, nil
}

func writeStockAudit(ctx context.Context, r repo.TxRepos, actorID, productID, before, after int64, reason string) error {
	beforeJSON, _ := json.Marshal(map[string]any{"stock": before})
	afterJSON, _ := json.Marshal(map[string]any{"stock": after, "reason": reason})

	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionUpdateStock,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   productID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
	}); err != nil {
		return internal(err)
	}
	return nil
}
