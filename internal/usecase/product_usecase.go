package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	tx          repo.TransactionManager
	productRepo repo.ProductRepository
	ledger      *InventoryLedger
}

// DI
func NewProductUsecase(
	tx repo.TransactionManager,
	productRepo repo.ProductRepository,
	ledger *InventoryLedger,
) *ProductUsecase {
	return &ProductUsecase{
		tx:          tx,
		productRepo: productRepo,
		ledger:      ledger,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  bool
	Sort     string
}

type ProductOutput struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	Stock          int64           `json:"stock"`
	InStock        bool            `json:"in_stock"`
	LowStock       bool            `json:"low_stock"`
	IsReturnable   bool            `json:"is_returnable"`
	IsExchangeable bool            `json:"is_exchangeable"`
}

type ProductListOutput struct {
	Items []ProductOutput `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, validation("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, validation("invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, validation("q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, validation("min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, validation("max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, validation("min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, validation("invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		InStock:  in.InStock,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, internal(err)
	}

	outs := make([]ProductOutput, 0, len(items))
	for _, p := range items {
		outs = append(outs, toProductOutput(p))
	}
	return ProductListOutput{
		Items: outs,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (ProductOutput, error) {
	if productID <= 0 {
		return ProductOutput{}, validation("invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductOutput{}, newError(ErrProductNotFound, "product not found")
	}
	if err != nil {
		return ProductOutput{}, internal(err)
	}

	if !p.IsActive {
		return ProductOutput{}, newError(ErrProductNotFound, "product not found")
	}
	return toProductOutput(p), nil
}

type AdminProductInput struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	InitialStock   int64
	MinStockLevel  int64
	IsActive       bool
	IsReturnable   bool
	IsExchangeable bool
}

func (in AdminProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validation("name required")
	}
	if in.Price.IsNegative() {
		return validation("price must be >= 0")
	}
	if in.InitialStock < 0 {
		return validation("stock must be >= 0")
	}
	if in.MinStockLevel < 0 {
		return validation("min_stock_level must be >= 0")
	}
	return nil
}

// 商品作成。初期在庫は台帳のIN（INITIAL）として積む。
func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, actor Identity, in AdminProductInput) (ProductOutput, error) {
	if !actor.IsAdmin() {
		return ProductOutput{}, newError(ErrForbidden, "admin only")
	}
	if err := in.validate(); err != nil {
		return ProductOutput{}, err
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().Create(ctx, model.Product{
			Name:           strings.TrimSpace(in.Name),
			Description:    in.Description,
			Price:          in.Price,
			MinStockLevel:  in.MinStockLevel,
			IsActive:       in.IsActive,
			IsReturnable:   in.IsReturnable,
			IsExchangeable: in.IsExchangeable,
		})
		if err != nil {
			return internal(err)
		}

		if in.InitialStock > 0 {
			after, err := r.Inventory().IncreaseStock(ctx, p.ID, in.InitialStock)
			if err != nil {
				return internal(err)
			}
			if err := u.ledger.append(ctx, r, model.MovementIn, StockLine{ProductID: p.ID, Quantity: in.InitialStock}, after, MovementMeta{
				Source:      model.MovementSourceInitial,
				ActorUserID: actor.userIDPtr(),
				Description: "initial stock",
			}); err != nil {
				return err
			}
			p.Stock = after
		}

		if err := writeProductAudit(ctx, r, actor.UserID, p.ID, model.AuditActionCreateProduct, nil, p); err != nil {
			return err
		}

		out = toProductOutput(p)
		return nil
	})
	if err != nil {
		return ProductOutput{}, err
	}
	return out, nil
}

// 商品更新。在庫はここでは変えない（InventoryUsecaseを使う）。
func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, actor Identity, productID int64, in AdminProductInput) error {
	if !actor.IsAdmin() {
		return newError(ErrForbidden, "admin only")
	}
	if productID <= 0 {
		return validation("invalid product id")
	}
	if err := in.validate(); err != nil {
		return err
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrProductNotFound, "product not found")
		}
		if err != nil {
			return internal(err)
		}

		after := before
		after.Name = strings.TrimSpace(in.Name)
		after.Description = in.Description
		after.Price = in.Price
		after.MinStockLevel = in.MinStockLevel
		after.IsActive = in.IsActive
		after.IsReturnable = in.IsReturnable
		after.IsExchangeable = in.IsExchangeable

		if err := r.Products().Update(ctx, after); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newError(ErrProductNotFound, "product not found")
			}
			return internal(err)
		}
		return writeProductAudit(ctx, r, actor.UserID, productID, model.AuditActionUpdateProduct, &before, after)
	})
}

func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, actor Identity, productID int64) error {
	if !actor.IsAdmin() {
		return newError(ErrForbidden, "admin only")
	}
	if productID <= 0 {
		return validation("invalid product id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrProductNotFound, "product not found")
		}
		if err != nil {
			return internal(err)
		}

		if err := r.Products().SoftDelete(ctx, productID); err != nil {
			return internal(err)
		}
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionDeleteProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   productJSON(before),
			AfterJSON:    "{}",
		}); err != nil {
			return internal(err)
		}
		return nil
	})
}

func writeProductAudit(ctx context.Context, r repo.TxRepos, actorID, productID int64, action model.AuditAction, before *model.Product, after model.Product) error {
	beforeJSON := "{}"
	if before != nil {
		beforeJSON = productJSON(*before)
	}
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   productID,
		BeforeJSON:   beforeJSON,
		AfterJSON:    productJSON(after),
	}); err != nil {
		return internal(err)
	}
	return nil
}

func productJSON(p model.Product) string {
	b, _ := json.Marshal(map[string]any{
		"name":            p.Name,
		"price":           p.Price.StringFixed(2),
		"stock":           p.Stock,
		"is_active":       p.IsActive,
		"is_returnable":   p.IsReturnable,
		"is_exchangeable": p.IsExchangeable,
	})
	return string(b)
}

func toProductOutput(p model.Product) ProductOutput {
	return ProductOutput{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		Stock:          p.Stock,
		InStock:        p.InStock(),
		LowStock:       p.LowStock(),
		IsReturnable:   p.IsReturnable,
		IsExchangeable: p.IsExchangeable,
	}
}
