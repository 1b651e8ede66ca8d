package app

import (
	"context"
	"time"

	"fashionshop/internal/config"
	"fashionshop/internal/infra/cache"
	"fashionshop/internal/infra/invoice"
	"fashionshop/internal/infra/mail"
	infrarepo "fashionshop/internal/infra/repository"
	"fashionshop/internal/infra/storage"
	"fashionshop/internal/middleware"
	"fashionshop/internal/notification"
	"fashionshop/internal/outbox"
	repo "fashionshop/internal/repository"
	"fashionshop/internal/server"
	"fashionshop/internal/usecase"

	"github.com/google/wire"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "fashionshop-api"

// API はHTTPサーバーとコミット後処理の組み合わせ
type API struct {
	Echo     *echo.Echo
	Notifier *notification.Handler
	Tx       repo.TransactionManager
}

// Notifier はリレーとKafka消費側で使う
type Notifier struct {
	Handler *notification.Handler
	Tx      repo.TransactionManager
}

func ProvideTxManager(db *gorm.DB) repo.TransactionManager {
	return infrarepo.NewTxManagerGorm(db)
}

func ProvideOrderRepository(db *gorm.DB) repo.OrderRepository {
	return infrarepo.NewOrderGormRepository(db)
}

func ProvideOrderItemRepository(db *gorm.DB) repo.OrderItemRepository {
	return infrarepo.NewOrderItemGormRepository(db)
}

func ProvideCartRepository(db *gorm.DB) repo.CartRepository {
	return infrarepo.NewCartGormRepository(db)
}

func ProvideCartItemRepository(db *gorm.DB) repo.CartItemRepository {
	return infrarepo.NewCartItemGormRepository(db)
}

func ProvideCartHistoryRepository(db *gorm.DB) repo.CartHistoryRepository {
	return infrarepo.NewCartHistoryGormRepository(db)
}

func ProvideProductRepository(db *gorm.DB) repo.ProductRepository {
	return infrarepo.NewProductGormRepository(db)
}

func ProvideInventoryRepository(db *gorm.DB) repo.InventoryRepository {
	return infrarepo.NewInventoryGormRepository(db)
}

func ProvideStockNotificationRepository(db *gorm.DB) repo.StockNotificationRepository {
	return infrarepo.NewStockNotificationGormRepository(db)
}

var RepositorySet = wire.NewSet(
	ProvideTxManager,
	ProvideOrderRepository,
	ProvideOrderItemRepository,
	ProvideCartRepository,
	ProvideCartItemRepository,
	ProvideCartHistoryRepository,
	ProvideProductRepository,
	ProvideInventoryRepository,
	ProvideStockNotificationRepository,
	infrarepo.NewAddressGormRepository,
	infrarepo.NewAuditLogGormRepository,
	infrarepo.NewUserGormRepository,
)

func ProvideShippingPolicy(cfg config.Config) usecase.ShippingPolicy {
	return usecase.ShippingPolicy{
		StandardCost: cfg.ShippingStandardCost,
		ExpressCost:  cfg.ShippingExpressCost,
		FreeOver:     cfg.FreeShippingThreshold,
	}
}

var UsecaseSet = wire.NewSet(
	ProvideShippingPolicy,
	usecase.NewInventoryLedger,
	usecase.NewProductUsecase,
	usecase.NewInventoryUsecase,
	usecase.NewCartUsecase,
	usecase.NewAddressUsecase,
	usecase.NewOrderUsecase,
	usecase.NewOrderLifecycleUsecase,
	usecase.NewAdminOrderUsecase,
	usecase.NewStockNotificationUsecase,
	usecase.NewAuditLogUsecase,
)

// 未設定の外部サービスはnilのinterfaceで渡す（*T(nil)を入れない）

func ProvideMailer(cfg config.Config) (*mail.Mailer, error) {
	return mail.NewMailer(cfg)
}

func ProvideOrderMailer(m *mail.Mailer) notification.OrderMailer {
	if m == nil {
		return nil
	}
	return m
}

func ProvideStockAlertSender(m *mail.Mailer) usecase.StockAlertSender {
	if m == nil {
		return nil
	}
	return m
}

func ProvideInvoiceRenderer(cfg config.Config) notification.InvoiceRenderer {
	return invoice.NewRenderer(invoice.Seller{
		CompanyName: cfg.InvoiceCompanyName,
		TaxID:       cfg.InvoiceTaxID,
		TaxOffice:   cfg.InvoiceTaxOffice,
		Address:     cfg.InvoiceAddress,
	})
}

func ProvideObjectStore(ctx context.Context, cfg config.Config) (notification.ObjectStore, error) {
	s, err := storage.NewInvoiceStore(ctx, cfg)
	if err != nil || s == nil {
		return nil, err
	}
	return s, nil
}

func ProvideStockNotifier(uc *usecase.StockNotificationUsecase) notification.StockNotifier {
	return uc
}

var NotificationSet = wire.NewSet(
	ProvideMailer,
	ProvideOrderMailer,
	ProvideStockAlertSender,
	ProvideInvoiceRenderer,
	ProvideObjectStore,
	ProvideStockNotifier,
	notification.NewHandler,
)

func ProvideLimiter(rdb *redis.Client, cfg config.Config) middleware.Limiter {
	if rdb == nil {
		return nil
	}
	return cache.NewRateLimiter(rdb, "ratelimit:checkout", cfg.CheckoutRateLimit, time.Minute)
}

func ProvideEcho(h server.Handlers, guards middleware.Guards) *echo.Echo {
	return server.New(serviceName, h, guards)
}

func ProvideRelay(tx repo.TransactionManager, pub outbox.Publisher, cfg config.Config) *outbox.Relay {
	return outbox.NewRelay(tx, pub, outbox.Options{PollInterval: cfg.OutboxPollInterval, Lease: cfg.OutboxLease})
}
