package repository

import (
	"context"
	"time"

	"fashionshop/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxGormRepository struct {
	db *gorm.DB
}

func NewOutboxGormRepository(db *gorm.DB) *OutboxGormRepository {
	return &OutboxGormRepository{db: db}
}

func (r *OutboxGormRepository) Append(ctx context.Context, e *model.OutboxEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// 複数リレーが動いても同じ行を取らないようにSKIP LOCKEDで選び、locked_untilを書く。
// 呼び出し側のトランザクションがコミットされたら行ロックは外れ、以降はlocked_untilで守る
func (r *OutboxGormRepository) ClaimPending(ctx context.Context, limit, maxAttempts int, now, leaseUntil time.Time) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	if err := pendingOutbox(r.db.WithContext(ctx), limit, maxAttempts, now).Find(&events).Error; err != nil {
		return []model.OutboxEvent{}, err
	}
	if len(events) == 0 {
		return events, nil
	}

	ids := make([]int64, len(events))
	for i := range events {
		ids[i] = events[i].ID
		events[i].LockedUntil = &leaseUntil
	}
	err := r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id IN ?", ids).
		Update("locked_until", leaseUntil).Error
	if err != nil {
		return []model.OutboxEvent{}, err
	}
	return events, nil
}

func pendingOutbox(db *gorm.DB, limit, maxAttempts int, now time.Time) *gorm.DB {
	return db.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published_at IS NULL AND attempts < ?", maxAttempts).
		Where("locked_until IS NULL OR locked_until < ?", now).
		Order("id asc").
		Limit(limit)
}

func (r *OutboxGormRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{"published_at": at, "last_error": "", "locked_until": nil}).Error
}

func (r *OutboxGormRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   reason,
			"locked_until": nil,
		}).Error
}
