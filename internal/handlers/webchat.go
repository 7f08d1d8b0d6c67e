package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/hakimhealth/hakim/internal/channel/adapters/web"
	"github.com/hakimhealth/hakim/internal/chat"
)

// WebChatHandler serves the browser chat widget. The reply is inline: the
// response body is the reply envelope.
type WebChatHandler struct {
	logger    *slog.Logger
	processor Processor
	validate  *validator.Validate
}

func NewWebChatHandler(log *slog.Logger, processor Processor) *WebChatHandler {
	return &WebChatHandler{
		logger:    log.With(slog.String("handler", "webchat")),
		processor: processor,
		validate:  validator.New(),
	}
}

func (h *WebChatHandler) Register(e *echo.Echo) {
	e.POST("/api/chat", h.Handle)
}

func (h *WebChatHandler) Handle(c echo.Context) error {
	var req web.ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := web.Normalize(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "message is empty")
	}

	outcome, err := h.processor.Process(c.Request().Context(), msg)
	if err != nil {
		h.logger.Error("process delivery failed",
			slog.String("user_id", msg.UserID),
			slog.Any("error", err))
		return c.JSON(http.StatusOK, web.ChatResponse{
			Reply: chat.Apology(chat.DetectLanguage(msg.Text)),
		})
	}

	return c.JSON(http.StatusOK, web.ChatResponse{Reply: outcome.ReplyText})
}
