package repository

import (
	"context"
	"time"

	"fashionshop/internal/domain/model"

	"gorm.io/gorm"
)

type StockNotificationGormRepository struct {
	db *gorm.DB
}

func NewStockNotificationGormRepository(db *gorm.DB) *StockNotificationGormRepository {
	return &StockNotificationGormRepository{db: db}
}

func (r *StockNotificationGormRepository) FindActive(ctx context.Context, productID int64, subscriberKey string) (model.UserStockNotification, bool, error) {
	var n model.UserStockNotification
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND subscriber_key = ? AND is_active = ?", productID, subscriberKey, true).
		First(&n).Error
	if isNotFound(err) {
		return model.UserStockNotification{}, false, nil
	}
	if err != nil {
		return model.UserStockNotification{}, false, err
	}
	return n, true, nil
}

func (r *StockNotificationGormRepository) Create(ctx context.Context, n *model.UserStockNotification) error {
	return mapError(r.db.WithContext(ctx).Create(n).Error)
}

func (r *StockNotificationGormRepository) ListActiveByProduct(ctx context.Context, productID int64) ([]model.UserStockNotification, error) {
	var list []model.UserStockNotification
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("id asc").
		Find(&list).Error; err != nil {
		return []model.UserStockNotification{}, err
	}
	return list, nil
}

func (r *StockNotificationGormRepository) ListActiveByUser(ctx context.Context, userID int64) ([]model.UserStockNotification, error) {
	var list []model.UserStockNotification
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id desc").
		Find(&list).Error; err != nil {
		return []model.UserStockNotification{}, err
	}
	return list, nil
}

func (r *StockNotificationGormRepository) Deactivate(ctx context.Context, id int64, notifiedAt *time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.UserStockNotification{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "notified_at": notifiedAt})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
