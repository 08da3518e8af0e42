package routes

import (
	"materials-erp/config"
	"materials-erp/controllers"
	"materials-erp/middleware"

	"github.com/gofiber/fiber/v2"
)

func SetupRequestRoutes(app *fiber.App, requestController *controllers.RequestController) {
	drafts := app.Group(config.MAIN_ROUTES+"/drafts", middleware.AuthMiddleware)
	drafts.Post("/", requestController.CreateDraft)
	drafts.Post("/:no/lines", requestController.AddDraftLines)
	drafts.Delete("/:no/lines/:line_id", requestController.RemoveDraftLine)
	drafts.Post("/:no/submit", requestController.SubmitDraft)

	api := app.Group(config.MAIN_ROUTES+"/requests", middleware.AuthMiddleware)
	api.Get("/", requestController.ListRequests)
	api.Get("/inbox", requestController.Inbox)
	api.Post("/procurement", requestController.SubmitProcurement)
	api.Get("/:no", requestController.GetRequest)
	api.Get("/:no/history", requestController.History)
	api.Get("/:no/issues", requestController.Issues)
	api.Post("/:no/approve", requestController.Approve)
	api.Post("/:no/reject", requestController.Reject)
	api.Post("/:no/cancel", requestController.Cancel)
	api.Post("/:no/issue", requestController.Issue)
	api.Post("/:no/confirm", requestController.Confirm)
	api.Post("/:no/top-up", requestController.RaiseTopUp)

	issues := app.Group(config.MAIN_ROUTES+"/material-issues", middleware.AuthMiddleware)
	issues.Get("/:no", requestController.GetIssue)

	returns := app.Group(config.MAIN_ROUTES+"/material-returns", middleware.AuthMiddleware)
	returns.Get("/", requestController.OpenReturns)
	returns.Post("/", requestController.RequestReturn)
	returns.Get("/:no", requestController.GetReturn)
	returns.Post("/:no/approve", requestController.ApproveReturn)
	returns.Post("/:no/reject", requestController.RejectReturn)
}
