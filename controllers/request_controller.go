package controllers

import (
	"materials-erp/repositories"
	"materials-erp/services"
	"materials-erp/workflow"

	"github.com/gofiber/fiber/v2"
)

type RequestController struct {
	Service *services.RequestService
}

func NewRequestController(service *services.RequestService) *RequestController {
	return &RequestController{Service: service}
}

func (c *RequestController) CreateDraft(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.DraftInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	draft, err := c.Service.CreateDraft(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusCreated, "Draft created successfully", draft)
}

func (c *RequestController) AddDraftLines(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input struct {
		Lines []services.LineInput `json:"lines"`
	}
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	draft, err := c.Service.AddDraftLines(ctx.UserContext(), actor, ctx.Params("no"), input.Lines)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Draft lines added successfully", draft)
}

func (c *RequestController) RemoveDraftLine(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	lineID, err := ctx.ParamsInt("line_id")
	if err != nil || lineID <= 0 {
		return badRequest(ctx, "Invalid line ID")
	}
	if err := c.Service.RemoveDraftLine(ctx.UserContext(), actor, ctx.Params("no"), uint(lineID)); err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Draft line removed successfully", nil)
}

func (c *RequestController) SubmitDraft(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	req, err := c.Service.SubmitDraft(ctx.UserContext(), actor, ctx.Params("no"))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Request submitted successfully", req)
}

func (c *RequestController) SubmitProcurement(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.DraftInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	req, err := c.Service.SubmitProcurement(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusCreated, "Procurement request submitted successfully", req)
}

func (c *RequestController) RaiseTopUp(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.TopUpInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	input.RequestNo = ctx.Params("no")
	req, err := c.Service.RaiseTopUp(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusCreated, "Top-up request raised successfully", req)
}

func (c *RequestController) Approve(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.ApproveInput
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&input); err != nil {
			return badRequest(ctx, "Invalid request body")
		}
	}
	input.RequestNo = ctx.Params("no")
	res, err := c.Service.Approve(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Request approved", res)
}

func (c *RequestController) Reject(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.RejectInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	input.RequestNo = ctx.Params("no")
	res, err := c.Service.Reject(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Request lines rejected", res)
}

func (c *RequestController) Cancel(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.CancelInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	input.RequestNo = ctx.Params("no")
	res, err := c.Service.Cancel(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Request lines cancelled", res)
}

func (c *RequestController) Issue(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.IssueInput
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&input); err != nil {
			return badRequest(ctx, "Invalid request body")
		}
	}
	input.RequestNo = ctx.Params("no")
	res, err := c.Service.Issue(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Material issued", res)
}

func (c *RequestController) Confirm(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.ConfirmInput
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&input); err != nil {
			return badRequest(ctx, "Invalid request body")
		}
	}
	input.RequestNo = ctx.Params("no")
	res, err := c.Service.Confirm(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Receipt confirmed", res)
}

func (c *RequestController) GetRequest(ctx *fiber.Ctx) error {
	req, err := c.Service.GetRequest(ctx.Params("no"))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Request found", req)
}

func (c *RequestController) ListRequests(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	filter := repositories.RequestFilter{
		Department: ctx.Query("department"),
		Status:     ctx.Query("status"),
		Drafts:     ctx.QueryBool("drafts"),
	}
	if t := ctx.Query("track"); t != "" {
		if filter.Track, err = workflow.ParseTrack(t); err != nil {
			return badRequest(ctx, "Invalid track")
		}
	}
	if ctx.QueryBool("mine") || filter.Drafts {
		filter.RequesterID = actor.UserID
	}
	reqs, err := c.Service.ListRequests(filter)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Requests found", reqs)
}

func (c *RequestController) Inbox(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	lines, err := c.Service.Inbox(actor)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Pending lines found", lines)
}

func (c *RequestController) History(ctx *fiber.Ctx) error {
	rows, err := c.Service.History(ctx.Params("no"))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "History found", rows)
}

func (c *RequestController) Issues(ctx *fiber.Ctx) error {
	issues, err := c.Service.Issues(ctx.Params("no"))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Material issues found", issues)
}

func (c *RequestController) GetIssue(ctx *fiber.Ctx) error {
	issue, err := c.Service.GetIssue(ctx.Params("no"))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Material issue found", issue)
}

func (c *RequestController) RequestReturn(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.ReturnInput
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	ret, err := c.Service.RequestReturn(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusCreated, "Material return requested", ret)
}

func (c *RequestController) ApproveReturn(ctx *fiber.Ctx) error {
	return c.decideReturn(ctx, true)
}

func (c *RequestController) RejectReturn(ctx *fiber.Ctx) error {
	return c.decideReturn(ctx, false)
}

func (c *RequestController) decideReturn(ctx *fiber.Ctx, approve bool) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	var input services.ReturnDecisionInput
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&input); err != nil {
			return badRequest(ctx, "Invalid request body")
		}
	}
	input.ReturnNo = ctx.Params("no")
	if approve {
		ret, err := c.Service.ApproveReturn(ctx.UserContext(), actor, input)
		if err != nil {
			return fail(ctx, err)
		}
		return respond(ctx, fiber.StatusOK, "Material return approved", ret)
	}
	ret, err := c.Service.RejectReturn(ctx.UserContext(), actor, input)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Material return rejected", ret)
}

func (c *RequestController) GetReturn(ctx *fiber.Ctx) error {
	ret, err := c.Service.GetReturn(ctx.Params("no"))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Material return found", ret)
}

func (c *RequestController) OpenReturns(ctx *fiber.Ctx) error {
	rets, err := c.Service.OpenReturns()
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Open material returns found", rets)
}
