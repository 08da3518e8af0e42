package routes

import (
	"materials-erp/config"
	"materials-erp/controllers"
	"materials-erp/middleware"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app *fiber.App, userController *controllers.UserController) {
	api := app.Group(config.MAIN_ROUTES+"/users", middleware.AuthMiddleware)
	api.Get("/", userController.GetAllUsers)
	api.Get("/:id", userController.GetUserByID)
	api.Post("/", userController.CreateUser)
	api.Put("/:id", userController.UpdateUser)
}
