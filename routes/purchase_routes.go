package routes

import (
	"materials-erp/config"
	"materials-erp/controllers"
	"materials-erp/middleware"

	"github.com/gofiber/fiber/v2"
)

func SetupPurchaseRoutes(app *fiber.App, purchaseController *controllers.PurchaseController) {
	api := app.Group(config.MAIN_ROUTES+"/purchase-orders", middleware.AuthMiddleware)
	api.Get("/", purchaseController.ListOrders)
	api.Post("/", purchaseController.CreatePurchaseOrder)
	api.Get("/:no", purchaseController.GetOrder)
	api.Get("/:no/receiving", purchaseController.Receiving)
	api.Get("/:no/export", purchaseController.ExportOrder)
	api.Post("/:no/documents", purchaseController.AttachDocument)

	receiving := app.Group(config.MAIN_ROUTES+"/receiving", middleware.AuthMiddleware)
	receiving.Post("/delivery", purchaseController.RecordDelivery)
	receiving.Post("/inspection", purchaseController.InspectQuality)
	receiving.Post("/warehouse-in", purchaseController.WarehouseIn)
	receiving.Post("/returns/:seq/dispatch", purchaseController.DispatchReturn)
	receiving.Post("/returns/:seq/replacement", purchaseController.ReceiveReplacement)
	receiving.Post("/returns/:seq/scrap", purchaseController.ScrapReturn)
}
