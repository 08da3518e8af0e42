package routes

import (
	"materials-erp/config"
	"materials-erp/controllers"
	"materials-erp/middleware"

	"github.com/gofiber/fiber/v2"
)

func SetupDashboardRoutes(app *fiber.App, dashboardController *controllers.DashboardController) {
	api := app.Group(config.MAIN_ROUTES+"/dashboard", middleware.AuthMiddleware)
	api.Get("/", dashboardController.GetDashboard)
}
