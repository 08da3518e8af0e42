package controllers

import (
	"materials-erp/services"
	"materials-erp/types"

	"github.com/gofiber/fiber/v2"
)

type NotificationController struct {
	Service *services.NotificationService
}

func NewNotificationController(service *services.NotificationService) *NotificationController {
	return &NotificationController{Service: service}
}

func (c *NotificationController) List(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	notes, err := c.Service.List(actor.UserID, ctx.QueryBool("unread"))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Notifications found", notes)
}

func (c *NotificationController) UnreadCount(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	n, err := c.Service.UnreadCount(actor.UserID)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Unread notifications counted", fiber.Map{"unread": n})
}

func (c *NotificationController) Acknowledge(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	id, err := types.ParseSnowflakeID(ctx.Params("id"))
	if err != nil || id <= 0 {
		return badRequest(ctx, "Invalid notification ID")
	}
	note, err := c.Service.Acknowledge(actor.UserID, id)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Notification marked as read", note)
}
