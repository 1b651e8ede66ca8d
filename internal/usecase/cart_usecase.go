package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fashionshop/internal/domain/model"
	repo "fashionshop/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジックです。
// 追加・変更は単発のrepo呼び出し、アーカイブと復元はトランザクションで行います。
type CartUsecase struct {
	tx           repo.TransactionManager
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	historyRepo  repo.CartHistoryRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	tx repo.TransactionManager,
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	historyRepo repo.CartHistoryRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		tx:           tx,
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		historyRepo:  historyRepo,
		productRepo:  productRepo,
	}
}

// price は unit_price_snapshot（追加時点の価格）を返します。
type CartItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	InStock   bool            `json:"in_stock"`
}

type CartResponse struct {
	CartID int64              `json:"cart_id"`
	Items  []CartItemResponse `json:"items"`
	Total  decimal.Decimal    `json:"total"`
}

type CartHistoryResponse struct {
	ID        int64     `json:"id"`
	CartID    int64     `json:"cart_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type AddCartInput struct {
	ProductID int64
	Size      string
	Color     string
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// GetCart はカート取得（無ければ作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, id Identity) (CartResponse, error) {
	if id.IsGuest() {
		return CartResponse{}, newError(ErrUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, id.UserID)
	if err != nil {
		return CartResponse{}, internal(err)
	}

	return buildCartResponse(ctx, u.cartItemRepo, u.productRepo, cart.ID)
}

// AddToCart はカートに追加（同じ商品・サイズ・色は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, id Identity, in AddCartInput) (CartResponse, error) {
	if id.IsGuest() {
		return CartResponse{}, newError(ErrUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, validation("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, validation("invalid quantity")
	}
	size, color := strings.TrimSpace(in.Size), strings.TrimSpace(in.Color)
	if size == "" || color == "" {
		return CartResponse{}, validation("size and color required")
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, newError(ErrProductNotFound, "product not found")
	}
	if err != nil {
		return CartResponse{}, internal(err)
	}
	if !p.IsActive {
		return CartResponse{}, newError(ErrProductNotFound, "product not found")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, id.UserID)
	if err != nil {
		return CartResponse{}, internal(err)
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, internal(err)
	}

	// 在庫は商品単位なので、同じ商品の他のサイズ・色も合算して見る
	var inCart int64
	for _, it := range items {
		if it.ProductID == in.ProductID {
			inCart += it.Quantity
		}
	}
	if inCart+in.Quantity > p.Stock {
		return CartResponse{}, &InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: inCart + in.Quantity}
	}

	if err := u.cartItemRepo.UpsertVariant(ctx, model.CartItem{
		CartID:            cart.ID,
		ProductID:         in.ProductID,
		Size:              size,
		Color:             color,
		Quantity:          in.Quantity,
		UnitPriceSnapshot: p.Price,
	}); err != nil {
		return CartResponse{}, internal(err)
	}

	return buildCartResponse(ctx, u.cartItemRepo, u.productRepo, cart.ID)
}

// 数量変更（所有チェック＋在庫チェック）。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, id Identity, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if id.IsGuest() {
		return CartResponse{}, newError(ErrUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, validation("invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, validation("invalid quantity")
	}

	item, err := u.ownedItem(ctx, id, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	p, err := u.productRepo.FindByID(ctx, item.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, newError(ErrProductNotFound, "product not found")
	}
	if err != nil {
		return CartResponse{}, internal(err)
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, &InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: in.Quantity}
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, newError(ErrNotFound, "not found")
		}
		return CartResponse{}, internal(err)
	}

	return buildCartResponse(ctx, u.cartItemRepo, u.productRepo, item.CartID)
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, id Identity, cartItemID int64) (CartResponse, error) {
	if id.IsGuest() {
		return CartResponse{}, newError(ErrUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, validation("invalid id")
	}

	item, err := u.ownedItem(ctx, id, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, newError(ErrNotFound, "not found")
		}
		return CartResponse{}, internal(err)
	}

	return buildCartResponse(ctx, u.cartItemRepo, u.productRepo, item.CartID)
}

// Archive は今のカートを名前付きで保存してアーカイブする。
func (u *CartUsecase) Archive(ctx context.Context, id Identity, name string) (CartHistoryResponse, error) {
	if id.IsGuest() {
		return CartHistoryResponse{}, newError(ErrUnauthorized, "unauthorized")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 255 {
		return CartHistoryResponse{}, validation("invalid name")
	}

	var out CartHistoryResponse
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindActiveByUserID(ctx, id.UserID)
		if errors.Is(err, repo.ErrNotFound) {
			return validation("cart empty")
		}
		if err != nil {
			return internal(err)
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return internal(err)
		}
		if len(items) == 0 {
			return validation("cart empty")
		}

		h, err := archiveCart(ctx, r, id.UserID, cart.ID, name)
		if err != nil {
			return err
		}
		out = toCartHistoryResponse(h)
		return nil
	})
	if err != nil {
		return CartHistoryResponse{}, err
	}
	return out, nil
}

func (u *CartUsecase) ListHistory(ctx context.Context, id Identity) ([]CartHistoryResponse, error) {
	if id.IsGuest() {
		return nil, newError(ErrUnauthorized, "unauthorized")
	}

	list, err := u.historyRepo.ListByUserID(ctx, id.UserID)
	if err != nil {
		return nil, internal(err)
	}
	out := make([]CartHistoryResponse, 0, len(list))
	for _, h := range list {
		out = append(out, toCartHistoryResponse(h))
	}
	return out, nil
}

// Restore は保存済みカートの明細を新しいカートへコピーして有効にする。
// 元の保存済みカートは変更しない。今のカートはアーカイブする。
func (u *CartUsecase) Restore(ctx context.Context, id Identity, historyID int64) (CartResponse, error) {
	if id.IsGuest() {
		return CartResponse{}, newError(ErrUnauthorized, "unauthorized")
	}
	if historyID <= 0 {
		return CartResponse{}, validation("invalid id")
	}

	var out CartResponse
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		h, err := r.CartHistories().FindByID(ctx, historyID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, "not found")
		}
		if err != nil {
			return internal(err)
		}
		if h.UserID != id.UserID {
			return newError(ErrNotFound, "not found")
		}

		current, err := r.Carts().FindActiveByUserID(ctx, id.UserID)
		switch {
		case err == nil:
			if err := r.Carts().Archive(ctx, current.ID); err != nil {
				return internal(err)
			}
		case !errors.Is(err, repo.ErrNotFound):
			return internal(err)
		}

		restored := model.Cart{UserID: id.UserID}
		if err := r.Carts().Create(ctx, &restored); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return newError(ErrConflict, "cart changed concurrently")
			}
			return internal(err)
		}

		saved, err := r.CartItems().ListByCartID(ctx, h.CartID)
		if err != nil {
			return internal(err)
		}
		copies := make([]model.CartItem, 0, len(saved))
		for _, it := range saved {
			copies = append(copies, model.CartItem{
				CartID:            restored.ID,
				ProductID:         it.ProductID,
				Size:              it.Size,
				Color:             it.Color,
				Quantity:          it.Quantity,
				UnitPriceSnapshot: it.UnitPriceSnapshot,
			})
		}
		if err := r.CartItems().CreateBulk(ctx, copies); err != nil {
			return internal(err)
		}

		out, err = buildCartResponse(ctx, r.CartItems(), r.Products(), restored.ID)
		return err
	})
	if err != nil {
		return CartResponse{}, err
	}
	return out, nil
}

func (u *CartUsecase) ownedItem(ctx context.Context, id Identity, cartItemID int64) (model.CartItem, error) {
	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, id.UserID)
	if err != nil {
		return model.CartItem{}, internal(err)
	}
	if !owned {
		return model.CartItem{}, newError(ErrNotFound, "not found")
	}

	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, newError(ErrNotFound, "not found")
	}
	if err != nil {
		return model.CartItem{}, internal(err)
	}
	return item, nil
}

// アーカイブして履歴を作る（注文確定時にも使う）
func archiveCart(ctx context.Context, r repo.TxRepos, userID, cartID int64, name string) (model.CartHistory, error) {
	if err := r.Carts().Archive(ctx, cartID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.CartHistory{}, newError(ErrConflict, "cart already archived")
		}
		return model.CartHistory{}, internal(err)
	}
	h := model.CartHistory{UserID: userID, CartID: cartID, Name: name}
	if err := r.CartHistories().Create(ctx, &h); err != nil {
		return model.CartHistory{}, internal(err)
	}
	return h, nil
}

func orderCartName(orderID int64) string {
	return fmt.Sprintf("Order #%d", orderID)
}

// cartIDの明細をまとめてCartResponseを作る。
func buildCartResponse(ctx context.Context, items repo.CartItemRepository, products repo.ProductRepository, cartID int64) (CartResponse, error) {
	list, err := items.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, internal(err)
	}

	ids := make([]int64, 0, len(list))
	for _, it := range list {
		ids = append(ids, it.ProductID)
	}
	found, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return CartResponse{}, internal(err)
	}
	byID := make(map[int64]model.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	respItems := make([]CartItemResponse, 0, len(list))
	total := decimal.Zero

	for _, it := range list {
		p, ok := byID[it.ProductID]
		if !ok || !p.IsActive {
			continue
		}

		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			Size:      it.Size,
			Color:     it.Color,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			InStock:   p.Stock >= it.Quantity,
		})

		total = total.Add(it.UnitPriceSnapshot.Mul(decimal.NewFromInt(it.Quantity)))
	}

	return CartResponse{CartID: cartID, Items: respItems, Total: total}, nil
}

func toCartHistoryResponse(h model.CartHistory) CartHistoryResponse {
	return CartHistoryResponse{
		ID:        h.ID,
		CartID:    h.CartID,
		Name:      h.Name,
		CreatedAt: h.CreatedAt,
	}
}
