package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"
)

type AddressDTO struct {
	ID         int64             `json:"id"`
	Type       model.AddressType `json:"type"`
	Title      string            `json:"title"`
	FirstName  string            `json:"first_name"`
	LastName   string            `json:"last_name"`
	Phone      string            `json:"phone"`
	Email      string            `json:"email,omitempty"`
	Country    string            `json:"country"`
	City       string            `json:"city"`
	District   string            `json:"district"`
	PostalCode string            `json:"postal_code"`
	Line1      string            `json:"line1"`
	Line2      string            `json:"line2"`
	IsDefault  bool              `json:"is_default"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  *string           `json:"updated_at,omitempty"`
}

// 住所の入力。住所録とゲスト注文で共通。
type AddressInput struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Country    string `json:"country"`
	City       string `json:"city"`
	District   string `json:"district"`
	PostalCode string `json:"postal_code"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
}

type AddressUpsertRequest struct {
	AddressInput
	IsDefault bool `json:"is_default"`
}

func (in AddressInput) validate() error {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return validation("name required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return validation("phone required")
	}
	if strings.TrimSpace(in.Country) == "" || strings.TrimSpace(in.City) == "" ||
		strings.TrimSpace(in.PostalCode) == "" || strings.TrimSpace(in.Line1) == "" {
		return validation("address incomplete")
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return validation("invalid email")
		}
	}
	switch model.AddressType(in.Type) {
	case "", model.AddressTypeDelivery, model.AddressTypeInvoice:
	default:
		return validation("invalid address type")
	}
	return nil
}

func (in AddressInput) toModel(userID *int64) model.Address {
	typ := model.AddressType(in.Type)
	if typ == "" {
		typ = model.AddressTypeDelivery
	}
	return model.Address{
		UserID:     userID,
		Type:       typ,
		Title:      strings.TrimSpace(in.Title),
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Phone:      strings.TrimSpace(in.Phone),
		Email:      strings.TrimSpace(in.Email),
		Country:    strings.TrimSpace(in.Country),
		City:       strings.TrimSpace(in.City),
		District:   strings.TrimSpace(in.District),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
	}
}

// 住所録。デフォルトは1ユーザーにつき1件（住所があれば必ず1件）。
type AddressUsecase struct {
	tx        repo.TransactionManager
	addresses repo.AddressRepository
}

func NewAddressUsecase(tx repo.TransactionManager, addresses repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{tx: tx, addresses: addresses}
}

func (u *AddressUsecase) List(ctx context.Context, id Identity) ([]AddressDTO, error) {
	if id.IsGuest() {
		return nil, newError(ErrUnauthorized, "unauthorized")
	}

	list, err := u.addresses.ListByUserID(ctx, id.UserID)
	if err != nil {
		return nil, internal(err)
	}

	out := make([]AddressDTO, 0, len(list))
	for i := range list {
		out = append(out, toAddressDTO(&list[i]))
	}
	return out, nil
}

func (u *AddressUsecase) Create(ctx context.Context, id Identity, req AddressUpsertRequest) (AddressDTO, error) {
	return u.Upsert(ctx, id, 0, req)
}

func (u *AddressUsecase) Update(ctx context.Context, id Identity, addressID int64, req AddressUpsertRequest) (AddressDTO, error) {
	if addressID <= 0 {
		return AddressDTO{}, validation("invalid address id")
	}
	return u.Upsert(ctx, id, addressID, req)
}

// Upsert はaddressIDが0なら作成、それ以外は更新。
// isDefaultなら同じトランザクションで他のデフォルトを外してから書く。
func (u *AddressUsecase) Upsert(ctx context.Context, id Identity, addressID int64, req AddressUpsertRequest) (AddressDTO, error) {
	if id.IsGuest() {
		return AddressDTO{}, newError(ErrUnauthorized, "unauthorized")
	}
	if err := req.validate(); err != nil {
		return AddressDTO{}, err
	}

	var out AddressDTO
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		existing, err := r.Addresses().ListByUserID(ctx, id.UserID)
		if err != nil {
			return internal(err)
		}

		a := req.toModel(id.userIDPtr())
		makeDefault := req.IsDefault

		if addressID == 0 {
			// 最初の住所はデフォルトにする
			if len(existing) == 0 {
				makeDefault = true
			}
		} else {
			cur, ok := findAddress(existing, addressID)
			if !ok {
				// 他人の住所も存在しない扱い
				return newError(ErrNotFound, "address not found")
			}
			a.ID = cur.ID
			a.CreatedAt = cur.CreatedAt
			// デフォルトを外す操作はSetDefaultで別の住所を指定する
			if cur.IsDefault {
				makeDefault = true
			}
		}

		if makeDefault {
			if err := r.Addresses().ClearDefault(ctx, id.UserID); err != nil {
				return internal(err)
			}
		}
		a.IsDefault = makeDefault

		if a.ID == 0 {
			if err := r.Addresses().Create(ctx, &a); err != nil {
				return internal(err)
			}
		} else {
			if err := r.Addresses().Update(ctx, a); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return newError(ErrNotFound, "address not found")
				}
				return internal(err)
			}
		}

		out = toAddressDTO(&a)
		return nil
	})
	if err != nil {
		return AddressDTO{}, err
	}
	return out, nil
}

// 削除。デフォルトを消したら一番古い住所をデフォルトにする。
func (u *AddressUsecase) Delete(ctx context.Context, id Identity, addressID int64) error {
	if id.IsGuest() {
		return newError(ErrUnauthorized, "unauthorized")
	}
	if addressID <= 0 {
		return validation("invalid address id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		existing, err := r.Addresses().ListByUserID(ctx, id.UserID)
		if err != nil {
			return internal(err)
		}
		target, ok := findAddress(existing, addressID)
		if !ok {
			return newError(ErrNotFound, "address not found")
		}

		if err := r.Addresses().Delete(ctx, addressID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newError(ErrNotFound, "address not found")
			}
			return internal(err)
		}

		if !target.IsDefault {
			return nil
		}

		var oldest *model.Address
		for i := range existing {
			a := &existing[i]
			if a.ID == addressID {
				continue
			}
			if oldest == nil || a.ID < oldest.ID {
				oldest = a
			}
		}
		if oldest == nil {
			return nil
		}
		oldest.IsDefault = true
		if err := r.Addresses().Update(ctx, *oldest); err != nil {
			return internal(err)
		}
		return nil
	})
}

func (u *AddressUsecase) SetDefault(ctx context.Context, id Identity, addressID int64) error {
	if id.IsGuest() {
		return newError(ErrUnauthorized, "unauthorized")
	}
	if addressID <= 0 {
		return validation("invalid address id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		a, err := r.Addresses().FindByID(ctx, addressID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, "address not found")
		}
		if err != nil {
			return internal(err)
		}
		if !a.OwnedBy(id.UserID) {
			return newError(ErrNotFound, "address not found")
		}
		if a.IsDefault {
			return nil
		}

		if err := r.Addresses().ClearDefault(ctx, id.UserID); err != nil {
			return internal(err)
		}
		a.IsDefault = true
		if err := r.Addresses().Update(ctx, a); err != nil {
			return internal(err)
		}
		return nil
	})
}

func findAddress(list []model.Address, addressID int64) (model.Address, bool) {
	for _, a := range list {
		if a.ID == addressID {
			return a, true
		}
	}
	return model.Address{}, false
}

func toAddressDTO(a *model.Address) AddressDTO {
	dto := AddressDTO{
		ID:         a.ID,
		Type:       a.Type,
		Title:      a.Title,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Phone:      a.Phone,
		Email:      a.Email,
		Country:    a.Country,
		City:       a.City,
		District:   a.District,
		PostalCode: a.PostalCode,
		Line1:      a.Line1,
		Line2:      a.Line2,
		IsDefault:  a.IsDefault,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
	if !a.UpdatedAt.IsZero() {
		s := a.UpdatedAt.Format(time.RFC3339)
		dto.UpdatedAt = &s
	}
	return dto
}
