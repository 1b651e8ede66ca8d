package repository

import (
	"context"

	"fashionshop/internal/domain/model"
)

// 住所(Address)を保存・取得する窓口
type AddressRepository interface {
	//作成後はIDが埋まる
	Create(ctx context.Context, address *model.Address) error

	//ユーザーが持つ住所一覧（古い順）
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)

	FindByID(ctx context.Context, addressID int64) (model.Address, error)

	//is_defaultも含めて全項目を更新
	Update(ctx context.Context, address model.Address) error

	Delete(ctx context.Context, addressID int64) error

	//このユーザーのデフォルトを全部外す
	ClearDefault(ctx context.Context, userID int64) error
}
