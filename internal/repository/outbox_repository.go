package repository

import (
	"context"
	"time"

	"fashionshop/internal/domain/model"
)

type OutboxRepository interface {
	Append(ctx context.Context, e *model.OutboxEvent) error
	// 未配信を古い順にleaseUntilまで確保する。
	// maxAttemptsに達したもの、他のリレーが確保中（locked_until > now）のものは除く
	ClaimPending(ctx context.Context, limit, maxAttempts int, now, leaseUntil time.Time) ([]model.OutboxEvent, error)
	// MarkPublished / MarkFailed は確保を解く
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}
