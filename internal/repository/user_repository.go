package repository

import (
	"context"

	"fashionshop/internal/domain/model"
)

// 参照のみ。ユーザーの登録・更新は認証サービス側。
type UserRepository interface {
	// IDからユーザーを1件取得する。無ければ ErrNotFound
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}
