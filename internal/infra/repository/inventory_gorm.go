package repository

import (
	"context"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 在庫が足りるときだけ減らす（1文で判定と更新を行うので同時実行でも負にならない）
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (int64, bool, error) {
	var p model.Product
	res := r.db.WithContext(ctx).
		Model(&p).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "stock"}}}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))

	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	return p.Stock, true, nil
}

// 在庫戻し・入荷
func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, productID int64, qty int64) (int64, error) {
	var p model.Product
	res := r.db.WithContext(ctx).
		Model(&p).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "stock"}}}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty))

	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, repo.ErrNotFound
	}
	return p.Stock, nil
}

func (r *InventoryGormRepository) AppendMovement(ctx context.Context, m *model.StockMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *InventoryGormRepository) ListMovements(ctx context.Context, f repo.MovementFilter) ([]model.StockMovement, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.StockMovement{})
	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.OrderID != nil {
		q = q.Where("order_id = ?", *f.OrderID)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.StockMovement{}, 0, err
	}

	var items []model.StockMovement
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.StockMovement{}, 0, err
	}
	return items, total, nil
}

func (r *InventoryGormRepository) MovementTotals(ctx context.Context, productID int64) (int64, int64, error) {
	var row struct {
		TotalIn  int64
		TotalOut int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.StockMovement{}).
		Select(
			"COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) AS total_in, "+
				"COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) AS total_out",
			model.MovementIn, model.MovementOut,
		).
		Where("product_id = ?", productID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.TotalIn, row.TotalOut, nil
}
