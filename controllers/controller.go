package controllers

import (
	"errors"
	"log"
	"materials-erp/apperr"
	"materials-erp/middleware"
	"materials-erp/services"
	"time"

	"github.com/gofiber/fiber/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func respond(ctx *fiber.Ctx, status int, message string, data interface{}) error {
	return ctx.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// fail answers with the error envelope. Unclassified errors are logged and
// reported as internal failures.
func fail(ctx *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return ctx.Status(apperr.Status(err)).JSON(fiber.Map{
			"success": false,
			"message": appErr.Reason,
			"error": fiber.Map{
				"kind":   appErr.Kind,
				"entity": appErr.Entity,
			},
		})
	}
	log.Printf("%s %s: %v", ctx.Method(), ctx.Path(), err)
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": "Internal server error",
	})
}

func badRequest(ctx *fiber.Ctx, message string) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func actorOf(ctx *fiber.Ctx) (services.Actor, error) {
	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		return actor, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized: Invalid user ID")
	}
	return actor, nil
}

// dateRange reads optional from/to query dates (YYYY-MM-DD). The upper bound
// is exclusive of the following day.
func dateRange(ctx *fiber.Ctx) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if s := ctx.Query("from"); s != "" {
		if from, err = time.Parse(time.DateOnly, s); err != nil {
			return from, to, err
		}
	}
	if s := ctx.Query("to"); s != "" {
		if to, err = time.Parse(time.DateOnly, s); err != nil {
			return from, to, err
		}
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}
