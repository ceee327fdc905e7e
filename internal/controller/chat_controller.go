package controller

import (
	"workflow-agent-be/internal/dto"
	"workflow-agent-be/internal/pkg/serverutils"
	"workflow-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Continue(ctx *fiber.Ctx) error
	Invoke(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("start", c.Start)
	h.Post("continue", c.Continue)
	h.Post("invoke", c.Invoke)
	h.Get(":session_id/history", c.History)
	h.Delete(":session_id", c.Delete)
}

func (c *chatController) Start(ctx *fiber.Ctx) error {
	var req dto.ChatStartRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Start(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success start chat session", res))
}

func (c *chatController) Continue(ctx *fiber.Ctx) error {
	var req dto.ChatContinueRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Continue(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success continue chat session", res))
}

func (c *chatController) Invoke(ctx *fiber.Ctx) error {
	var req dto.InvokeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Invoke(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success invoke workflow pipeline", res))
}

func (c *chatController) History(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("session_id")

	res, err := c.chatService.History(ctx.Context(), sessionID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show chat history", res))
}

func (c *chatController) Delete(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("session_id")

	if err := c.chatService.Delete(ctx.Context(), sessionID); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete chat session", nil))
}
