package routes

import (
	"materials-erp/config"
	"materials-erp/controllers"
	"materials-erp/middleware"

	"github.com/gofiber/fiber/v2"
)

func SetupStockRoutes(app *fiber.App, stockController *controllers.StockController) {
	api := app.Group(config.MAIN_ROUTES+"/components", middleware.AuthMiddleware)
	api.Get("/", stockController.ListComponents)
	api.Post("/", stockController.CreateComponent)
	api.Post("/opening", stockController.OpeningReceipt)
	api.Get("/:id", stockController.GetComponent)
	api.Get("/:id/card", stockController.Card)
	api.Get("/:id/card/export", stockController.ExportCard)
}
