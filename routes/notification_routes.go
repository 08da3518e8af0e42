package routes

import (
	"materials-erp/config"
	"materials-erp/controllers"
	"materials-erp/middleware"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(app *fiber.App, notificationController *controllers.NotificationController) {
	api := app.Group(config.MAIN_ROUTES+"/notifications", middleware.AuthMiddleware)
	api.Get("/", notificationController.List)
	api.Get("/unread-count", notificationController.UnreadCount)
	api.Post("/:id/read", notificationController.Acknowledge)
}
