package controller

import (
	"workflow-agent-be/internal/dto"
	"workflow-agent-be/internal/pkg/serverutils"
	"workflow-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IArchiveController interface {
	RegisterRoutes(r fiber.Router)
	Search(ctx *fiber.Ctx) error
}

type archiveController struct {
	archiveService service.IArchiveService
}

func NewArchiveController(archiveService service.IArchiveService) IArchiveController {
	return &archiveController{
		archiveService: archiveService,
	}
}

func (c *archiveController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/archive/v1")
	h.Post("search", c.Search)
}

func (c *archiveController) Search(ctx *fiber.Ctx) error {
	var req dto.ArchiveSearchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.archiveService.Search(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success search workflow archive", res))
}
