package routes

import (
	"materials-erp/controllers"
	"materials-erp/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Services bundles what the HTTP layer is built from.
type Services struct {
	Requests      *services.RequestService
	Purchases     *services.PurchaseService
	Stock         *services.StockService
	Notifications *services.NotificationService
}

func Setup(app *fiber.App, db *gorm.DB, svc Services) {
	SetupAuthRoutes(app, controllers.NewAuthController(db))
	SetupUserRoutes(app, controllers.NewUserController(db))
	SetupDashboardRoutes(app, controllers.NewDashboardController(db))
	SetupRequestRoutes(app, controllers.NewRequestController(svc.Requests))
	SetupPurchaseRoutes(app, controllers.NewPurchaseController(svc.Purchases))
	SetupStockRoutes(app, controllers.NewStockController(svc.Stock))
	SetupNotificationRoutes(app, controllers.NewNotificationController(svc.Notifications))
}
