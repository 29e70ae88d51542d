package controller

import (
	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/pkg/serverutils"
	"rag-chatbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IIdentityController interface {
	RegisterRoutes(r fiber.Router)
	Link(ctx *fiber.Ctx) error
}

type identityController struct {
	sessionService service.ISessionService
	jwtSecret      string
}

func NewIdentityController(sessionService service.ISessionService, jwtSecret string) IIdentityController {
	return &identityController{
		sessionService: sessionService,
		jwtSecret:      jwtSecret,
	}
}

func (c *identityController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/identity/v1")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Post("link", c.Link)
}

// Link moves every session of an anonymous identity to a registered one.
// A partial move answers 207 with the migrated and failed session ids.
func (c *identityController) Link(ctx *fiber.Ctx) error {
	var req dto.LinkIdentityRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.LinkIdentity(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success link identity", res))
}
