package repository

import (
	"context"

	repo "fashionshop/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders        repo.OrderRepository
	orderItems    repo.OrderItemRepository
	carts         repo.CartRepository
	cartItems     repo.CartItemRepository
	cartHistories repo.CartHistoryRepository
	addresses     repo.AddressRepository
	inventory     repo.InventoryRepository
	products      repo.ProductRepository
	notifications repo.StockNotificationRepository
	outbox        repo.OutboxRepository
	auditLogs     repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                         { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository                 { return r.orderItems }
func (r *txReposGorm) Carts() repo.CartRepository                           { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository                   { return r.cartItems }
func (r *txReposGorm) CartHistories() repo.CartHistoryRepository            { return r.cartHistories }
func (r *txReposGorm) Addresses() repo.AddressRepository                    { return r.addresses }
func (r *txReposGorm) Inventory() repo.InventoryRepository                  { return r.inventory }
func (r *txReposGorm) Products() repo.ProductRepository                     { return r.products }
func (r *txReposGorm) StockNotifications() repo.StockNotificationRepository { return r.notifications }
func (r *txReposGorm) Outbox() repo.OutboxRepository                        { return r.outbox }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository                   { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(newTxRepos(tx))
	})
}

func newTxRepos(db *gorm.DB) *txReposGorm {
	return &txReposGorm{
		orders:        NewOrderGormRepository(db),
		orderItems:    NewOrderItemGormRepository(db),
		carts:         NewCartGormRepository(db),
		cartItems:     NewCartItemGormRepository(db),
		cartHistories: NewCartHistoryGormRepository(db),
		addresses:     NewAddressGormRepository(db),
		inventory:     NewInventoryGormRepository(db),
		products:      NewProductGormRepository(db),
		notifications: NewStockNotificationGormRepository(db),
		outbox:        NewOutboxGormRepository(db),
		auditLogs:     NewAuditLogGormRepository(db),
	}
}
