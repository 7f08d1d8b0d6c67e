package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hakimhealth/hakim/internal/auth"
	"github.com/hakimhealth/hakim/internal/conversation"
)

// ConversationReader is the read-only store boundary for the operator API.
type ConversationReader interface {
	Get(ctx context.Context, userID string) (conversation.Document, error)
}

// ConversationsHandler exposes stored transcripts to operators. Routes are
// behind the JWT middleware registered at the server level.
type ConversationsHandler struct {
	logger *slog.Logger
	store  ConversationReader
}

func NewConversationsHandler(log *slog.Logger, store ConversationReader) *ConversationsHandler {
	return &ConversationsHandler{
		logger: log.With(slog.String("handler", "conversations")),
		store:  store,
	}
}

func (h *ConversationsHandler) Register(e *echo.Echo) {
	e.GET("/api/conversations/:user_id", h.Get)
}

func (h *ConversationsHandler) Get(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user id is required")
	}

	operator, err := auth.SubjectFromContext(c)
	if err != nil {
		return err
	}

	doc, err := h.store.Get(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("load conversation failed", slog.String("user_id", userID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "load conversation failed")
	}
	h.logger.Info("transcript read",
		slog.String("operator", operator),
		slog.String("user_id", userID))
	return c.JSON(http.StatusOK, doc)
}
