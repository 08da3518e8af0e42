package routes

import (
	"materials-erp/config"
	"materials-erp/controllers"
	"materials-erp/middleware"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(app *fiber.App, authController *controllers.AuthController) {
	api := app.Group(config.MAIN_ROUTES + "/auth")
	api.Post("/login", authController.Login)
	api.Get("/me", middleware.AuthMiddleware, authController.Me)
}
