package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/logger"
	"fashionshop/internal/metrics"
	repo "fashionshop/internal/repository"
)

// 再入荷メールの送信先
type StockAlertSender interface {
	SendBackInStock(ctx context.Context, to string, p model.Product) error
}

type StockNotificationUsecase struct {
	notifications repo.StockNotificationRepository
	products      repo.ProductRepository
	users         repo.UserRepository
	sender        StockAlertSender
}

func NewStockNotificationUsecase(
	notifications repo.StockNotificationRepository,
	products repo.ProductRepository,
	users repo.UserRepository,
	sender StockAlertSender,
) *StockNotificationUsecase {
	return &StockNotificationUsecase{
		notifications: notifications,
		products:      products,
		users:         users,
		sender:        sender,
	}
}

type SubscribeInput struct {
	ProductID int64
	// ゲストのみ
	Email string
}

type StockNotificationOutput struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscribe は在庫切れ商品の再入荷通知を登録する。
func (u *StockNotificationUsecase) Subscribe(ctx context.Context, id Identity, in SubscribeInput) (StockNotificationOutput, error) {
	if in.ProductID <= 0 {
		return StockNotificationOutput{}, validation("invalid product_id")
	}

	n := model.UserStockNotification{ProductID: in.ProductID, IsActive: true}
	if id.IsGuest() {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if email == "" {
			return StockNotificationOutput{}, validation("email required")
		}
		if _, err := mail.ParseAddress(email); err != nil {
			return StockNotificationOutput{}, validation("invalid email")
		}
		n.GuestEmail = email
		n.SubscriberKey = model.GuestSubscriberKey(email)
	} else {
		n.UserID = id.userIDPtr()
		n.SubscriberKey = model.UserSubscriberKey(id.UserID)
	}

	p, err := u.products.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
		return StockNotificationOutput{}, newError(ErrProductNotFound, "product not found")
	}
	if err != nil {
		return StockNotificationOutput{}, internal(err)
	}
	if p.Stock > 0 {
		return StockNotificationOutput{}, newError(ErrProductInStock, "product is in stock")
	}

	if _, found, err := u.notifications.FindActive(ctx, in.ProductID, n.SubscriberKey); err != nil {
		return StockNotificationOutput{}, internal(err)
	} else if found {
		return StockNotificationOutput{}, newError(ErrDuplicateSubscription, "already subscribed")
	}

	if err := u.notifications.Create(ctx, &n); err != nil {
		// 同時登録は部分ユニークインデックスで弾かれる
		if errors.Is(err, repo.ErrDuplicate) {
			return StockNotificationOutput{}, newError(ErrDuplicateSubscription, "already subscribed")
		}
		return StockNotificationOutput{}, internal(err)
	}
	return toStockNotificationOutput(n), nil
}

// Unsubscribe はログインユーザーのみ
func (u *StockNotificationUsecase) Unsubscribe(ctx context.Context, id Identity, productID int64) error {
	if id.IsGuest() {
		return newError(ErrUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return validation("invalid product_id")
	}

	n, found, err := u.notifications.FindActive(ctx, productID, model.UserSubscriberKey(id.UserID))
	if err != nil {
		return internal(err)
	}
	if !found {
		return newError(ErrNotFound, "not found")
	}

	ok, err := u.notifications.Deactivate(ctx, n.ID, nil)
	if err != nil {
		return internal(err)
	}
	if !ok {
		return newError(ErrNotFound, "not found")
	}
	return nil
}

func (u *StockNotificationUsecase) ListMine(ctx context.Context, id Identity) ([]StockNotificationOutput, error) {
	if id.IsGuest() {
		return nil, newError(ErrUnauthorized, "unauthorized")
	}
	list, err := u.notifications.ListActiveByUser(ctx, id.UserID)
	if err != nil {
		return nil, internal(err)
	}
	out := make([]StockNotificationOutput, 0, len(list))
	for _, n := range list {
		out = append(out, toStockNotificationOutput(n))
	}
	return out, nil
}

// NotifyRestocked は再入荷した商品の購読者にメールし、送れたものだけ無効化する。
// 送信に失敗した購読は次の再入荷で再送される。戻り値は通知できた件数。
func (u *StockNotificationUsecase) NotifyRestocked(ctx context.Context, productID int64) (int, error) {
	if u.sender == nil {
		// メール未設定。購読は有効のまま残す
		return 0, nil
	}
	p, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, internal(err)
	}
	if !p.InStock() || !p.IsActive {
		return 0, nil
	}

	subs, err := u.notifications.ListActiveByProduct(ctx, productID)
	if err != nil {
		return 0, internal(err)
	}

	sent := 0
	for _, n := range subs {
		to, err := u.recipient(ctx, n)
		if err != nil {
			logger.Warn(ctx).Err(err).Int64("subscription_id", n.ID).Msg("stock alert recipient not resolved")
			continue
		}

		if err := u.sender.SendBackInStock(ctx, to, p); err != nil {
			metrics.PostCommitFailures.WithLabelValues("stock_alert").Inc()
			logger.Error(ctx).Err(err).
				Int64("subscription_id", n.ID).
				Int64("product_id", productID).
				Msg("stock alert email failed")
			continue
		}

		now := time.Now()
		if _, err := u.notifications.Deactivate(ctx, n.ID, &now); err != nil {
			logger.Error(ctx).Err(err).Int64("subscription_id", n.ID).Msg("deactivate subscription failed")
			continue
		}
		sent++
	}

	logger.Info(ctx).Int64("product_id", productID).Int("subscribers", len(subs)).Int("notified", sent).Msg("stock alerts sent")
	return sent, nil
}

func (u *StockNotificationUsecase) recipient(ctx context.Context, n model.UserStockNotification) (string, error) {
	if n.UserID == nil {
		return n.GuestEmail, nil
	}
	user, err := u.users.FindByID(ctx, *n.UserID)
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", errors.New("user inactive")
	}
	return user.Email, nil
}

func toStockNotificationOutput(n model.UserStockNotification) StockNotificationOutput {
	return StockNotificationOutput{
		ID:        n.ID,
		ProductID: n.ProductID,
		IsActive:  n.IsActive,
		CreatedAt: n.CreatedAt,
	}
}
