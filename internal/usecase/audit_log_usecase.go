package usecase

import (
	"context"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"
)

type AuditLogListOutput struct {
	Items []model.AuditLog `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// 在庫・注文・商品の管理操作ログを読む（書くのは各usecase）
type AuditLogUsecase struct {
	audits repo.AuditLogRepository
}

func NewAuditLogUsecase(audits repo.AuditLogRepository) *AuditLogUsecase {
	return &AuditLogUsecase{audits: audits}
}

func (u *AuditLogUsecase) List(ctx context.Context, actor Identity, f repo.AuditLogFilter) (AuditLogListOutput, error) {
	if !actor.IsAdmin() {
		return AuditLogListOutput{}, newError(ErrForbidden, "admin only")
	}
	if f.Page < 1 {
		return AuditLogListOutput{}, validation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 200 {
		return AuditLogListOutput{}, validation("invalid limit")
	}
	if f.Action != "" && !f.Action.Valid() {
		return AuditLogListOutput{}, validation("invalid action")
	}
	if f.ResourceType != "" && !f.ResourceType.Valid() {
		return AuditLogListOutput{}, validation("invalid resource_type")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return AuditLogListOutput{}, validation("invalid period")
	}

	items, total, err := u.audits.List(ctx, f)
	if err != nil {
		return AuditLogListOutput{}, internal(err)
	}
	return AuditLogListOutput{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}
