package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fashionshop/internal/config"
	"fashionshop/internal/domain/model"
	"fashionshop/internal/middleware"
	"fashionshop/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	Guest        bool   `json:"guest"`
}

// =====================
// Mocks
// =====================

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, identifier string) (bool, int, time.Time, error) {
	args := m.Called(ctx, identifier)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Time), args.Error(3)
}

func (m *MockLimiter) Limit() int { return 5 }

// =====================
// helper
// =====================

func mustMakeJWT(t *testing.T, secret string, sub int64, role string, tv int, signingMethod jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"tv":   tv,
		"iat":  1,
		"exp":  9999999999,
	}

	s, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func runRequest(t *testing.T, e *echo.Echo, path string, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func decodeMWOK(t *testing.T, rec *httptest.ResponseRecorder) mwOKResponse {
	t.Helper()
	var r mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func echoIdentity(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserIDKey).(int64)
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	tv, _ := c.Get(middleware.CtxTokenVersionKey).(int)
	guest, _ := c.Get(middleware.CtxGuestKey).(bool)
	return c.JSON(http.StatusOK, mwOKResponse{UserID: userID, Role: role, TokenVersion: tv, Guest: guest})
}

// =====================
// AuthJWT
// =====================

func TestMiddleware_AuthJWT_Unauthorized(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}

	cases := map[string]string{
		"no header":     "",
		"bad scheme":    "Token abc.def.ghi",
		"empty token":   "Bearer  ",
		"bad signature": "Bearer " + mustMakeJWT(t, "wrong-secret", 1, "USER", 0, jwt.SigningMethodHS256),
		"wrong alg":     "Bearer " + mustMakeJWT(t, cfg.JWTSecret, 1, "USER", 0, jwt.SigningMethodHS512),
		"missing role":  "Bearer " + mustMakeJWT(t, cfg.JWTSecret, 1, "", 0, jwt.SigningMethodHS256),
		"bad sub":       "Bearer " + mustMakeJWT(t, cfg.JWTSecret, 0, "USER", 0, jwt.SigningMethodHS256),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			e.GET("/protected", echoIdentity, middleware.AuthJWT(cfg))

			rec := runRequest(t, e, "/protected", header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
		})
	}
}

// 正常：ctxに値が入る
func TestMiddleware_AuthJWT_Success_SetsContext(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: "test-secret"}
	raw := mustMakeJWT(t, cfg.JWTSecret, 123, "USER", 7, jwt.SigningMethodHS256)

	e.GET("/protected", echoIdentity, middleware.AuthJWT(cfg))

	rec := runRequest(t, e, "/protected", "Bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeMWOK(t, rec)
	assert.Equal(t, int64(123), body.UserID)
	assert.Equal(t, "USER", body.Role)
	assert.Equal(t, 7, body.TokenVersion)
	assert.False(t, body.Guest)
}

// =====================
// OptionalAuthJWT
// =====================

func TestMiddleware_OptionalAuthJWT(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}
	e := echo.New()
	e.GET("/orders", echoIdentity, middleware.OptionalAuthJWT(cfg))

	// ヘッダ無しはゲスト
	rec := runRequest(t, e, "/orders", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeMWOK(t, rec).Guest)

	// 不正なトークンはゲストに落とさない
	rec = runRequest(t, e, "/orders", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = runRequest(t, e, "/orders", "Bearer "+mustMakeJWT(t, cfg.JWTSecret, 9, "USER", 0, jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeMWOK(t, rec)
	assert.False(t, body.Guest)
	assert.Equal(t, int64(9), body.UserID)
}

// =====================
// TokenVersionGuard
// =====================

func TestMiddleware_TokenVersionGuard_Unauthorized_MissingContext(t *testing.T) {
	e := echo.New()
	userRepo := new(MockUserRepo)

	e.GET("/protected", echoIdentity, middleware.TokenVersionGuard(userRepo))

	rec := runRequest(t, e, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestMiddleware_TokenVersionGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}

	cases := []struct {
		name string
		user *model.User
		err  error
		code int
	}{
		{"match", &model.User{ID: 1, Role: model.RoleUser, TokenVersion: 5, IsActive: true}, nil, http.StatusOK},
		{"mismatch", &model.User{ID: 1, Role: model.RoleUser, TokenVersion: 6, IsActive: true}, nil, http.StatusUnauthorized},
		{"inactive", &model.User{ID: 1, Role: model.RoleUser, TokenVersion: 5, IsActive: false}, nil, http.StatusUnauthorized},
		{"not found", nil, repository.ErrNotFound, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			userRepo := new(MockUserRepo)
			userRepo.On("FindByID", mock.Anything, int64(1)).Return(tc.user, tc.err)

			e.GET("/protected", echoIdentity, middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo))

			rec := runRequest(t, e, "/protected", "Bearer "+mustMakeJWT(t, cfg.JWTSecret, 1, "USER", 5, jwt.SigningMethodHS256))
			assert.Equal(t, tc.code, rec.Code)
			userRepo.AssertExpectations(t)
		})
	}
}

// ゲストはDBを見ずに通す
func TestMiddleware_TokenVersionGuard_GuestPasses(t *testing.T) {
	e := echo.New()
	userRepo := new(MockUserRepo)

	e.GET("/orders", echoIdentity, middleware.OptionalAuthJWT(config.Config{JWTSecret: "s"}), middleware.TokenVersionGuard(userRepo))

	rec := runRequest(t, e, "/orders", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

// =====================
// AdminRoleGuard
// =====================

func TestMiddleware_AdminRoleGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}
	e := echo.New()
	e.GET("/admin/orders", echoIdentity, middleware.AuthJWT(cfg), middleware.AdminRoleGuard())

	rec := runRequest(t, e, "/admin/orders", "Bearer "+mustMakeJWT(t, cfg.JWTSecret, 1, "USER", 0, jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin only", decodeMWError(t, rec).Error)

	rec = runRequest(t, e, "/admin/orders", "Bearer "+mustMakeJWT(t, cfg.JWTSecret, 2, "ADMIN", 0, jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusOK, rec.Code)

	// AuthJWT無し
	e2 := echo.New()
	e2.GET("/admin/orders", echoIdentity, middleware.AdminRoleGuard())
	rec = runRequest(t, e2, "/admin/orders", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// RateLimit
// =====================

func TestMiddleware_RateLimit(t *testing.T) {
	reset := time.Unix(1700000000, 0)
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, "user:7").Return(true, 4, reset, nil).Once()
	limiter.On("Allow", mock.Anything, "user:7").Return(false, 0, reset, nil).Once()

	e := echo.New()
	setUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.CtxUserIDKey, int64(7))
			return next(c)
		}
	}
	e.GET("/orders", echoIdentity, setUser, middleware.RateLimit(limiter))

	rec := runRequest(t, e, "/orders", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1700000000", rec.Header().Get("X-RateLimit-Reset"))

	rec = runRequest(t, e, "/orders", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too many requests", decodeMWError(t, rec).Error)

	limiter.AssertExpectations(t)
}

// Redisエラーは通す
func TestMiddleware_RateLimit_FailOpen(t *testing.T) {
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, mock.MatchedBy(func(id string) bool { return len(id) > 3 && id[:3] == "ip:" })).
		Return(false, 0, time.Time{}, errors.New("redis down"))

	e := echo.New()
	e.GET("/orders", echoIdentity, middleware.RateLimit(limiter))

	rec := runRequest(t, e, "/orders", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	limiter.AssertExpectations(t)
}

func TestMiddleware_RateLimit_NilLimiter(t *testing.T) {
	e := echo.New()
	e.GET("/orders", echoIdentity, middleware.RateLimit(nil))

	rec := runRequest(t, e, "/orders", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}
