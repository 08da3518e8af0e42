package controllers

import (
	"context"
	"fmt"
	"materials-erp/models"
	"materials-erp/services"

	"github.com/gofiber/fiber/v2"
)

type PurchaseController struct {
	Service *services.PurchaseService
}

func NewPurchaseController(service *services.PurchaseService) *PurchaseController {
	return &PurchaseController{Service: service}
}

func (c *PurchaseController) CreatePurchaseOrder(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.PurchaseOrderInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	po, err := c.Service.CreatePurchaseOrder(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusCreated, "Purchase order created successfully", po)
}

func (c *PurchaseController) GetOrder(ctx *fiber.Ctx) error {
	po, err := c.Service.GetOrder(ctx.Params("no"))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Purchase order found", po)
}

func (c *PurchaseController) ListOrders(ctx *fiber.Ctx) error {
	orders, err := c.Service.ListOrders()
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Purchase orders found", orders)
}

func (c *PurchaseController) Receiving(ctx *fiber.Ctx) error {
	views, err := c.Service.Receiving(ctx.Params("no"))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Receiving status found", views)
}

func (c *PurchaseController) AttachDocument(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		return badRequest(ctx, "File is required")
	}
	src, err := file.Open()
	if err != nil {
		return badRequest(ctx, "Failed to open file")
	}
	defer src.Close()

	doc, err := c.Service.AttachDocument(ctx.UserContext(), actor, ctx.Params("no"), file.Filename, file.Header.Get("Content-Type"), src)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusCreated, "Document uploaded successfully", doc)
}

func (c *PurchaseController) ExportOrder(ctx *fiber.Ctx) error {
	no := ctx.Params("no")
	buf, err := c.Service.ExportOrder(no)
	if err != nil {
		return fail(ctx, err)
	}
	ctx.Set("Content-Type", xlsxContentType)
	ctx.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, no))
	return ctx.Send(buf.Bytes())
}

func (c *PurchaseController) RecordDelivery(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.DeliveryInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	receipt, err := c.Service.RecordDelivery(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Delivery recorded", receipt)
}

func (c *PurchaseController) InspectQuality(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.InspectionInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	receipt, err := c.Service.InspectQuality(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Quality check recorded", receipt)
}

func (c *PurchaseController) WarehouseIn(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.WarehouseInInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	receipt, err := c.Service.WarehouseIn(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Material received into warehouse", receipt)
}

func (c *PurchaseController) DispatchReturn(ctx *fiber.Ctx) error {
	return c.moveReturnLine(ctx, c.Service.DispatchReturn, "Return dispatched to vendor")
}

func (c *PurchaseController) ReceiveReplacement(ctx *fiber.Ctx) error {
	return c.moveReturnLine(ctx, c.Service.ReceiveReplacement, "Replacement received")
}

func (c *PurchaseController) ScrapReturn(ctx *fiber.Ctx) error {
	return c.moveReturnLine(ctx, c.Service.ScrapReturn, "Return line scrapped")
}

type returnLineOp func(context.Context, services.Actor, services.ReturnLineInput) (*models.ReturnLine, error)

func (c *PurchaseController) moveReturnLine(ctx *fiber.Ctx, op returnLineOp, message string) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.ReturnLineInput
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&input); err != nil {
			return badRequest(ctx, "Invalid request body")
		}
	}
	input.SeqID = ctx.Params("seq")
	line, err := op(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, message, line)
}
