package repository

import (
	"context"
	"time"

	"fashionshop/internal/domain/model"
)

// 管理画面の監査ログ一覧の条件。新しい順で返す。
type AuditLogFilter struct {
	Page         int
	Limit        int
	ActorUserID  *int64
	Action       model.AuditAction
	ResourceType model.AuditResourceType
	ResourceID   *int64
	From         *time.Time
	To           *time.Time
}

type AuditLogRepository interface {
	// 管理操作と同じトランザクションで書く
	Create(ctx context.Context, log model.AuditLog) error
	List(ctx context.Context, f AuditLogFilter) ([]model.AuditLog, int64, error)
}
