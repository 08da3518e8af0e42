package controllers

import (
	"fmt"
	"materials-erp/services"

	"github.com/gofiber/fiber/v2"
)

type StockController struct {
	Service *services.StockService
}

func NewStockController(service *services.StockService) *StockController {
	return &StockController{Service: service}
}

func (c *StockController) CreateComponent(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.ComponentInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	comp, err := c.Service.CreateComponent(actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusCreated, "Component created successfully", comp)
}

func (c *StockController) ListComponents(ctx *fiber.Ctx) error {
	comps, err := c.Service.ListComponents(ctx.Query("search"))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Components found", comps)
}

func (c *StockController) GetComponent(ctx *fiber.Ctx) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(ctx, "Invalid component ID")
	}
	comp, err := c.Service.GetComponent(uint(id))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Component found", comp)
}

func (c *StockController) OpeningReceipt(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.OpeningInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	balance, err := c.Service.OpeningReceipt(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Stock received", fiber.Map{"on_hand": balance})
}

func (c *StockController) Card(ctx *fiber.Ctx) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(ctx, "Invalid component ID")
	}
	from, to, err := dateRange(ctx)
	if err != nil {
		return badRequest(ctx, "Invalid date range, expected YYYY-MM-DD")
	}
	entries, err := c.Service.Card(uint(id), from, to)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Stock card found", entries)
}

func (c *StockController) ExportCard(ctx *fiber.Ctx) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(ctx, "Invalid component ID")
	}
	from, to, err := dateRange(ctx)
	if err != nil {
		return badRequest(ctx, "Invalid date range, expected YYYY-MM-DD")
	}
	buf, err := c.Service.ExportCard(uint(id), from, to)
	if err != nil {
		return fail(ctx, err)
	}
	ctx.Set("Content-Type", xlsxContentType)
	ctx.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="stock-card-%d.xlsx"`, id))
	return ctx.Send(buf.Bytes())
}
