package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/repository/memory"
	"fashionshop/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// fixture
// =====================

type fixture struct {
	store *memory.Store

	ledger    *usecase.InventoryLedger
	orders    *usecase.OrderUsecase
	lifecycle *usecase.OrderLifecycleUsecase
	admin     *usecase.AdminOrderUsecase
	carts     *usecase.CartUsecase
	addresses *usecase.AddressUsecase
	inventory *usecase.InventoryUsecase
	products  *usecase.ProductUsecase
	stock     *usecase.StockNotificationUsecase
	audits    *usecase.AuditLogUsecase
	sender    *SenderMock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := memory.NewStore()
	r := s.Repos()
	ledger := usecase.NewInventoryLedger()
	shipping := usecase.ShippingPolicy{
		StandardCost: decimal.RequireFromString("4.99"),
		ExpressCost:  decimal.RequireFromString("9.99"),
		FreeOver:     decimal.RequireFromString("100"),
	}
	sender := &SenderMock{}

	return &fixture{
		store:     s,
		ledger:    ledger,
		orders:    usecase.NewOrderUsecase(s, r.Orders(), r.OrderItems(), r.Carts(), r.CartItems(), r.Products(), r.Addresses(), ledger, shipping),
		lifecycle: usecase.NewOrderLifecycleUsecase(s, r.Orders(), r.OrderItems()),
		admin:     usecase.NewAdminOrderUsecase(s, r.Orders(), r.OrderItems(), ledger),
		carts:     usecase.NewCartUsecase(s, r.Carts(), r.CartItems(), r.CartHistories(), r.Products()),
		addresses: usecase.NewAddressUsecase(s, r.Addresses()),
		inventory: usecase.NewInventoryUsecase(s, r.Products(), r.Inventory(), ledger),
		products:  usecase.NewProductUsecase(s, r.Products(), ledger),
		stock:     usecase.NewStockNotificationUsecase(r.StockNotifications(), r.Products(), s.Users(), sender),
		audits:    usecase.NewAuditLogUsecase(r.AuditLogs()),
		sender:    sender,
	}
}

func (f *fixture) product(name string, price string, stock int64) model.Product {
	return f.store.AddProduct(model.Product{
		Name:           name,
		Price:          decimal.RequireFromString(price),
		Stock:          stock,
		IsActive:       true,
		IsReturnable:   true,
		IsExchangeable: true,
	})
}

func (f *fixture) user(email string) usecase.Identity {
	u := f.store.AddUser(model.User{Email: email, FirstName: "Ayşe", Role: model.RoleUser, IsActive: true})
	return usecase.Customer(u.ID)
}

func (f *fixture) savedAddress(t *testing.T, id usecase.Identity) int64 {
	t.Helper()
	a, err := f.addresses.Create(context.Background(), id, usecase.AddressUpsertRequest{AddressInput: addressInput()})
	require.NoError(t, err)
	return a.ID
}

var keySeq atomic.Int64

func newKey() string {
	return fmt.Sprintf("key-%d", keySeq.Add(1))
}

func addressInput() usecase.AddressInput {
	return usecase.AddressInput{
		FirstName:  "Ayşe",
		LastName:   "Yılmaz",
		Phone:      "+905551112233",
		Country:    "TR",
		City:       "Istanbul",
		District:   "Kadıköy",
		PostalCode: "34710",
		Line1:      "Moda Cd. 12",
	}
}

func guestInput() *usecase.GuestInput {
	return &usecase.GuestInput{Email: "guest@example.com", FirstName: "Mehmet", LastName: "Demir", Phone: "+905559998877"}
}

func line(productID int64, qty int64) usecase.OrderLineInput {
	return usecase.OrderLineInput{ProductID: productID, Size: "M", Color: "black", Quantity: qty}
}

// 会員の直接注文
func (f *fixture) placeFor(t *testing.T, id usecase.Identity, addressID int64, lines ...usecase.OrderLineInput) usecase.OrderOutput {
	t.Helper()
	out, err := f.orders.PlaceOrder(context.Background(), id, usecase.PlaceOrderInput{
		Items:          lines,
		AddressID:      addressID,
		PaymentMethod:  string(model.PaymentCreditCard),
		IdempotencyKey: newKey(),
	})
	require.NoError(t, err)
	return out
}

// 指定の状態まで管理者操作で進める
func (f *fixture) advanceTo(t *testing.T, orderID int64, target model.OrderStatus) {
	t.Helper()
	ctx := context.Background()
	for {
		o := f.store.Order(orderID)
		if o.Status == target {
			return
		}
		in := usecase.AdvanceOrderInput{}
		if o.Status == model.OrderStatusConfirmed {
			in.TrackingNumber = "TRK-1"
		}
		_, err := f.admin.Advance(ctx, usecase.Admin(999), orderID, in)
		require.NoError(t, err)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =====================
// assertions
// =====================

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
}

func assertErrContains(t *testing.T, err error, sub string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), sub), "error=%q should contain %q", err.Error(), sub)
	}
}

// stock = ΣIN - ΣOUT が全商品で成り立つ
func assertLedgerBalanced(t *testing.T, s *memory.Store, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		assert.Equal(t, s.Product(id).Stock, s.LedgerBalance(id), "ledger of product %d", id)
		assert.GreaterOrEqual(t, s.Product(id).Stock, int64(0))
	}
}

func eventsOf(s *memory.Store, typ model.EventType) []model.OutboxEvent {
	var out []model.OutboxEvent
	for _, e := range s.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// =====================
// mocks
// =====================

type SenderMock struct{ mock.Mock }

func (m *SenderMock) SendBackInStock(ctx context.Context, to string, p model.Product) error {
	if len(m.ExpectedCalls) == 0 {
		return nil
	}
	args := m.Called(ctx, to, p.ID)
	return args.Error(0)
}
