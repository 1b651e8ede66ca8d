package repository

import (
	"context"
	"time"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーの未アーカイブカートを取得し、無ければ作成
func (r *CartGormRepository) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	db := r.db.WithContext(ctx)

	var cart model.Cart
	err := db.
		Where("user_id = ? AND is_archived = ?", userID, false).
		First(&cart).Error
	if err == nil {
		return cart, nil
	}
	if !isNotFound(err) {
		return model.Cart{}, err
	}

	// 無ければ作る。同時に作られていたら何もしない（トランザクションを壊さない）
	newCart := model.Cart{UserID: userID}
	res := insertActiveCart(db, &newCart)
	if res.Error != nil {
		return model.Cart{}, res.Error
	}
	if res.RowsAffected > 0 {
		return newCart, nil
	}

	// 負けた側は作られた方を読む
	if err := db.
		Where("user_id = ? AND is_archived = ?", userID, false).
		First(&cart).Error; err != nil {
		return model.Cart{}, mapError(err)
	}
	return cart, nil
}

// 部分ユニークインデックス idx_carts_active_user に当たったら DO NOTHING
func insertActiveCart(db *gorm.DB, cart *model.Cart) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "user_id"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "is_archived = false"}}},
		DoNothing:   true,
	}).Create(cart)
}

// ユーザーの未アーカイブカートを取得
func (r *CartGormRepository) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_archived = ?", userID, false).
		First(&cart).Error
	if err != nil {
		return model.Cart{}, mapError(err)
	}
	return cart, nil
}

func (r *CartGormRepository) FindByID(ctx context.Context, cartID int64) (model.Cart, error) {
	var cart model.Cart
	if err := r.db.WithContext(ctx).First(&cart, cartID).Error; err != nil {
		return model.Cart{}, mapError(err)
	}
	return cart, nil
}

func (r *CartGormRepository) Create(ctx context.Context, cart *model.Cart) error {
	return mapError(r.db.WithContext(ctx).Create(cart).Error)
}

// アーカイブ（明細は残す）
func (r *CartGormRepository) Archive(ctx context.Context, cartID int64) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ? AND is_archived = ?", cartID, false).
		Updates(map[string]any{"is_archived": true, "archived_at": now})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

type CartHistoryGormRepository struct {
	db *gorm.DB
}

func NewCartHistoryGormRepository(db *gorm.DB) *CartHistoryGormRepository {
	return &CartHistoryGormRepository{db: db}
}

func (r *CartHistoryGormRepository) Create(ctx context.Context, h *model.CartHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *CartHistoryGormRepository) FindByID(ctx context.Context, historyID int64) (model.CartHistory, error) {
	var h model.CartHistory
	if err := r.db.WithContext(ctx).First(&h, historyID).Error; err != nil {
		return model.CartHistory{}, mapError(err)
	}
	return h, nil
}

func (r *CartHistoryGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.CartHistory, error) {
	var list []model.CartHistory
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Find(&list).Error; err != nil {
		return []model.CartHistory{}, err
	}
	return list, nil
}
