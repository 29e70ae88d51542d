package controller

import (
	"context"
	"encoding/json"

	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/pkg/serverutils"
	"rag-chatbot-be/internal/service"
	internalWS "rag-chatbot-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendPrompt(ctx *fiber.Ctx) error
	ListTurns(ctx *fiber.Ctx) error
	Stream(conn *websocket.Conn)
}

type chatController struct {
	chatService service.IChatService
	logger      logger.ILogger
}

func NewChatController(chatService service.IChatService, logger logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		logger:      logger,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("prompt", c.SendPrompt)
	h.Get("sessions/:id/turns", c.ListTurns)
	h.Get("stream", requireUpgrade, websocket.New(c.Stream))
}

func requireUpgrade(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (c *chatController) SendPrompt(ctx *fiber.Ctx) error {
	var req dto.SendPromptRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.SendPrompt(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send prompt", res))
}

func (c *chatController) ListTurns(ctx *fiber.Ctx) error {
	res, err := c.chatService.ListTurns(ctx.UserContext(), ctx.Params("id"), ctx.QueryInt("limit", 0))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get turns", res))
}

// Stream serves prompts over a websocket: fragment frames while the model
// generates, then one done or error frame per prompt.
func (c *chatController) Stream(conn *websocket.Conn) {
	internalWS.ServeWs(conn, c.serveStreamRequest, c.logger)
}

func (c *chatController) serveStreamRequest(ctx context.Context, payload []byte, send internalWS.SendFunc) {
	var req dto.SendPromptRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		_ = send(dto.StreamFrame{Type: dto.StreamFrameError, Code: fiber.StatusBadRequest, Content: "Invalid request body"})
		return
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		_ = send(errorFrame(err))
		return
	}

	res, err := c.chatService.StreamPrompt(ctx, &req, func(fragment string) error {
		return send(dto.StreamFrame{Type: dto.StreamFrameFragment, Content: fragment})
	})
	if err != nil {
		c.logger.Warn("CHAT_STREAM", "Streamed turn failed", map[string]interface{}{
			"session_id": req.SessionId,
			"error":      err.Error(),
		})
		_ = send(errorFrame(err))
		return
	}

	_ = send(dto.StreamFrame{Type: dto.StreamFrameDone, Content: res.Reply, Result: res})
}

func errorFrame(err error) dto.StreamFrame {
	status := serverutils.StatusFor(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		message = "internal server error"
	}
	return dto.StreamFrame{Type: dto.StreamFrameError, Code: status, Content: message}
}
