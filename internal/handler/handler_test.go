package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fashionshop/internal/config"
	"fashionshop/internal/domain/model"
	"fashionshop/internal/handler"
	"fashionshop/internal/middleware"
	"fashionshop/internal/repository/memory"
	"fashionshop/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

// =====================
// レスポンス確認用
// =====================

type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

type orderBody struct {
	ID     int64           `json:"id"`
	Status string          `json:"status"`
	Total  decimal.Decimal `json:"total"`
}

type cartBody struct {
	CartID int64 `json:"cart_id"`
	Items  []struct {
		ID       int64 `json:"id"`
		Quantity int64 `json:"quantity"`
	} `json:"items"`
}

// =====================
// helper
// =====================

type server struct {
	e     *echo.Echo
	store *memory.Store
}

func newServer(t *testing.T) *server {
	t.Helper()

	s := memory.NewStore()
	r := s.Repos()
	ledger := usecase.NewInventoryLedger()
	shipping := usecase.ShippingPolicy{
		StandardCost: decimal.RequireFromString("4.99"),
		ExpressCost:  decimal.RequireFromString("9.99"),
		FreeOver:     decimal.RequireFromString("100"),
	}

	products := usecase.NewProductUsecase(s, r.Products(), ledger)
	inventory := usecase.NewInventoryUsecase(s, r.Products(), r.Inventory(), ledger)
	orders := usecase.NewOrderUsecase(s, r.Orders(), r.OrderItems(), r.Carts(), r.CartItems(), r.Products(), r.Addresses(), ledger, shipping)
	lifecycle := usecase.NewOrderLifecycleUsecase(s, r.Orders(), r.OrderItems())
	admin := usecase.NewAdminOrderUsecase(s, r.Orders(), r.OrderItems(), ledger)
	carts := usecase.NewCartUsecase(s, r.Carts(), r.CartItems(), r.CartHistories(), r.Products())
	stock := usecase.NewStockNotificationUsecase(r.StockNotifications(), r.Products(), s.Users(), nil)

	guards := middleware.NewGuards(config.Config{JWTSecret: testSecret}, s.Users(), nil)

	e := echo.New()
	handler.NewProductHandler(products).RegisterRoutes(e)
	handler.NewAdminProductHandler(products, inventory).RegisterRoutes(e, guards)
	handler.NewOrderHandler(orders, lifecycle).RegisterRoutes(e, guards)
	handler.NewAdminOrderHandler(admin).RegisterRoutes(e, guards)
	handler.NewCartHandler(carts).RegisterRoutes(e, guards)
	handler.NewAddressHandler(usecase.NewAddressUsecase(s, r.Addresses())).RegisterRoutes(e, guards)
	handler.NewStockNotificationHandler(stock).RegisterRoutes(e, guards)
	handler.NewAdminAuditHandler(usecase.NewAuditLogUsecase(r.AuditLogs())).RegisterRoutes(e, guards)

	return &server{e: e, store: s}
}

func (s *server) token(t *testing.T, role model.Role) string {
	t.Helper()
	u := s.store.AddUser(model.User{Email: fmt.Sprintf("%s@example.com", role), Role: role, IsActive: true})
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  u.ID,
		"role": string(role),
		"tv":   0,
		"exp":  9999999999,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func (s *server) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func guestOrderBody(productID int64, qty int64) map[string]any {
	return map[string]any{
		"items": []map[string]any{{"product_id": productID, "size": "M", "color": "navy", "quantity": qty}},
		"address": map[string]any{
			"first_name": "Zeynep", "last_name": "Kaya", "phone": "+905551234567",
			"country": "TR", "city": "Izmir", "postal_code": "35000", "line1": "Kordon 5",
		},
		"guest":          map[string]any{"email": "zeynep@example.com", "first_name": "Zeynep", "last_name": "Kaya", "phone": "+905551234567"},
		"payment_method": "CREDIT_CARD",
	}
}

// =====================
// POST /orders
// =====================

func TestOrders_GuestCheckoutAndReplay(t *testing.T) {
	s := newServer(t)
	p := s.store.AddProduct(model.Product{Name: "Chino", Price: decimal.RequireFromString("30.00"), Stock: 5, IsActive: true})

	rec := s.do(t, http.MethodPost, "/orders", "", guestOrderBody(p.ID, 2), "X-Idempotency-Key", "guest-key-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[orderBody](t, rec)
	assert.Equal(t, "PENDING", first.Status)
	assert.True(t, decimal.RequireFromString("64.99").Equal(first.Total))

	// 同じキーの再送は同じ注文
	rec = s.do(t, http.MethodPost, "/orders", "", guestOrderBody(p.ID, 2), "X-Idempotency-Key", "guest-key-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, first.ID, decode[orderBody](t, rec).ID)
	assert.Equal(t, int64(3), s.store.Product(p.ID).Stock)
}

func TestOrders_InsufficientStockReturnsDetails(t *testing.T) {
	s := newServer(t)
	p := s.store.AddProduct(model.Product{Name: "Chino", Price: decimal.RequireFromString("30.00"), Stock: 1, IsActive: true})

	rec := s.do(t, http.MethodPost, "/orders", "", guestOrderBody(p.ID, 3), "X-Idempotency-Key", "k")
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decode[errorBody](t, rec)
	assert.Equal(t, "insufficient stock", body.Error)
	var details usecase.InsufficientStockError
	require.NoError(t, json.Unmarshal(body.Details, &details))
	assert.Equal(t, p.ID, details.ProductID)
	assert.Equal(t, int64(1), details.Available)
	assert.Equal(t, int64(3), details.Requested)
}

func TestOrders_MissingIdempotencyKey(t *testing.T) {
	s := newServer(t)
	p := s.store.AddProduct(model.Product{Name: "Chino", Price: decimal.RequireFromString("30.00"), Stock: 1, IsActive: true})

	rec := s.do(t, http.MethodPost, "/orders", "", guestOrderBody(p.ID, 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid idempotency_key", decode[errorBody](t, rec).Error)
}

func TestOrders_ListRequiresLogin(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders?page=x", s.token(t, model.RoleUser), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/abc", s.token(t, model.RoleUser), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =====================
// /cart
// =====================

func TestCart_AddAndPatch(t *testing.T) {
	s := newServer(t)
	token := s.token(t, model.RoleUser)
	p := s.store.AddProduct(model.Product{Name: "Tee", Price: decimal.RequireFromString("12.00"), Stock: 3, IsActive: true})

	rec := s.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": p.ID, "size": "S", "color": "white", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decode[cartBody](t, rec)
	require.Len(t, cart.Items, 1)

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/cart/items/%d", cart.Items[0].ID), token, map[string]any{"quantity": 9})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/cart/items/%d", cart.Items[0].ID), s.token(t, model.RoleUser), map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/cart/archive", token, map[string]any{"name": "weekend"})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =====================
// /addresses
// =====================

func TestAddresses_ForeignAddressIsNotFound(t *testing.T) {
	s := newServer(t)
	alice := s.token(t, model.RoleUser)
	bob := s.token(t, model.RoleUser)

	body := map[string]any{
		"first_name": "Alice", "last_name": "Yilmaz", "phone": "+905550000001",
		"country": "TR", "city": "Istanbul", "postal_code": "34000", "line1": "Moda Cd. 3",
	}
	rec := s.do(t, http.MethodPost, "/addresses", alice, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		ID        int64 `json:"id"`
		IsDefault bool  `json:"is_default"`
	}](t, rec)
	assert.True(t, created.IsDefault)

	path := fmt.Sprintf("/addresses/%d", created.ID)

	rec = s.do(t, http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, "address not found", decode[errorBody](t, rec).Error)

	rec = s.do(t, http.MethodPatch, path, bob, body)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, path+"/default", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	// 本人の住所は残っている
	rec = s.do(t, http.MethodGet, "/addresses", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = s.do(t, http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func TestAddresses_ValidationAndGuest(t *testing.T) {
	s := newServer(t)
	token := s.token(t, model.RoleUser)

	rec := s.do(t, http.MethodPost, "/addresses", token, map[string]any{"first_name": "A", "last_name": "B", "country": "TR"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/addresses/0", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/addresses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// /admin
// =====================

func TestAdminOrders_RoleAndFlow(t *testing.T) {
	s := newServer(t)
	p := s.store.AddProduct(model.Product{Name: "Chino", Price: decimal.RequireFromString("30.00"), Stock: 5, IsActive: true})

	rec := s.do(t, http.MethodPost, "/orders", "", guestOrderBody(p.ID, 1), "X-Idempotency-Key", "admin-flow")
	require.Equal(t, http.StatusCreated, rec.Code)
	o := decode[orderBody](t, rec)

	path := fmt.Sprintf("/admin/orders/%d/advance", o.ID)
	rec = s.do(t, http.MethodPost, path, s.token(t, model.RoleUser), map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := s.token(t, model.RoleAdmin)
	rec = s.do(t, http.MethodPost, path, admin, map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CONFIRMED", decode[orderBody](t, rec).Status)

	// 発送には追跡番号が要る
	rec = s.do(t, http.MethodPost, path, admin, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, path, admin, map[string]any{"tracking_number": "TRK-9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SHIPPED", decode[orderBody](t, rec).Status)

	// 発送後の直接キャンセルは遷移エラー
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/admin/orders/%d/cancel", o.ID), admin, map[string]any{"note": "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/orders?status=SHIPPED", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/orders?from=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminAuditLogs_ListOrderTransitions(t *testing.T) {
	s := newServer(t)
	p := s.store.AddProduct(model.Product{Name: "Blazer", Price: decimal.RequireFromString("80.00"), Stock: 4, IsActive: true})

	rec := s.do(t, http.MethodPost, "/orders", "", guestOrderBody(p.ID, 1), "X-Idempotency-Key", "audit-flow")
	require.Equal(t, http.StatusCreated, rec.Code)
	o := decode[orderBody](t, rec)

	admin := s.token(t, model.RoleAdmin)
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/admin/orders/%d/advance", o.ID), admin, map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/admin/audit-logs?resource_type=order&resource_id=%d", o.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		Items []struct {
			Action     string `json:"action"`
			ResourceID int64  `json:"resource_id"`
		} `json:"items"`
		Total int64 `json:"total"`
	}](t, rec)
	require.EqualValues(t, 1, out.Total)
	assert.Equal(t, "UPDATE_ORDER_STATUS", out.Items[0].Action)
	assert.Equal(t, o.ID, out.Items[0].ResourceID)

	rec = s.do(t, http.MethodGet, "/admin/audit-logs", s.token(t, model.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, q := range []string{"resource_id=abc", "from=yesterday", "action=DROP", "limit=0"} {
		rec = s.do(t, http.MethodGet, "/admin/audit-logs?"+q, admin, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

// =====================
// /products, /stock-notifications
// =====================

func TestProducts_PublicRead(t *testing.T) {
	s := newServer(t)
	hidden := s.store.AddProduct(model.Product{Name: "Draft", Price: decimal.RequireFromString("1.00"), IsActive: false})

	rec := s.do(t, http.MethodGet, "/products?page=1&limit=20&min_price=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/products?sort=cheapest", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/products/%d", hidden.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product not found", decode[errorBody](t, rec).Error)
}

func TestStockNotifications_Conflicts(t *testing.T) {
	s := newServer(t)
	soldOut := s.store.AddProduct(model.Product{Name: "Parka", Price: decimal.RequireFromString("200.00"), IsActive: true})
	inStock := s.store.AddProduct(model.Product{Name: "Tee", Price: decimal.RequireFromString("10.00"), Stock: 1, IsActive: true})

	body := map[string]any{"product_id": soldOut.ID, "email": "watcher@example.com"}
	rec := s.do(t, http.MethodPost, "/stock-notifications", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/stock-notifications", "", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already subscribed", decode[errorBody](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/stock-notifications", "", map[string]any{"product_id": inStock.ID, "email": "watcher@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
