package middleware

import (
	"fashionshop/internal/config"
	"fashionshop/internal/repository"

	"github.com/labstack/echo/v4"
)

// ルートごとに使うミドルウェアの組み合わせ
type Guards struct {
	Required []echo.MiddlewareFunc
	Optional []echo.MiddlewareFunc
	Admin    []echo.MiddlewareFunc
	Limited  echo.MiddlewareFunc
}

func NewGuards(cfg config.Config, userRepo repository.UserRepository, limiter Limiter) Guards {
	tv := TokenVersionGuard(userRepo)
	return Guards{
		Required: []echo.MiddlewareFunc{AuthJWT(cfg), tv},
		Optional: []echo.MiddlewareFunc{OptionalAuthJWT(cfg), tv},
		Admin:    []echo.MiddlewareFunc{AuthJWT(cfg), tv, AdminRoleGuard()},
		Limited:  RateLimit(limiter),
	}
}
