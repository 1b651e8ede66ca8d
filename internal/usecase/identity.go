package usecase

import "fashionshop/internal/domain/model"

// 呼び出し元。UserIDが0ならゲスト。
type Identity struct {
	UserID int64
	Role   model.Role
}

func Guest() Identity {
	return Identity{}
}

func Customer(userID int64) Identity {
	return Identity{UserID: userID, Role: model.RoleUser}
}

func Admin(userID int64) Identity {
	return Identity{UserID: userID, Role: model.RoleAdmin}
}

func (i Identity) IsGuest() bool {
	return i.UserID <= 0
}

func (i Identity) IsAdmin() bool {
	return !i.IsGuest() && i.Role == model.RoleAdmin
}

func (i Identity) userIDPtr() *int64 {
	if i.IsGuest() {
		return nil
	}
	id := i.UserID
	return &id
}
