package server

import (
	"net/http"

	"fashionshop/internal/handler"
	"fashionshop/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 公開・会員・管理者のルートをまとめて登録する
type Handlers struct {
	Products           *handler.ProductHandler
	AdminProducts      *handler.AdminProductHandler
	Cart               *handler.CartHandler
	Addresses          *handler.AddressHandler
	Orders             *handler.OrderHandler
	AdminOrders        *handler.AdminOrderHandler
	AdminAudit         *handler.AdminAuditHandler
	StockNotifications *handler.StockNotificationHandler
}

func RegisterRoutes(e *echo.Echo, h Handlers, guards middleware.Guards) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h.Products.RegisterRoutes(e)
	h.Cart.RegisterRoutes(e, guards)
	h.Addresses.RegisterRoutes(e, guards)
	h.Orders.RegisterRoutes(e, guards)
	h.StockNotifications.RegisterRoutes(e, guards)

	h.AdminProducts.RegisterRoutes(e, guards)
	h.AdminOrders.RegisterRoutes(e, guards)
	h.AdminAudit.RegisterRoutes(e, guards)
}
