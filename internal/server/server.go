package server

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hakimhealth/hakim/internal/auth"
	"github.com/hakimhealth/hakim/internal/handlers"
)

type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer wires the echo instance: recovery, request logging, and JWT auth
// for the operator API. Webhooks, the widget endpoint, and login stay public.
func NewServer(addr string, jwtSecret string,
	pingHandler *handlers.PingHandler,
	authHandler *handlers.AuthHandler,
	twilioHandler *handlers.TwilioWebhookHandler,
	ultraMsgHandler *handlers.UltraMsgWebhookHandler,
	webChatHandler *handlers.WebChatHandler,
	conversationsHandler *handlers.ConversationsHandler,
) *Server {
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		path := c.Request().URL.Path
		if path == "/ping" || path == "/health" || path == "/auth/login" || path == "/api/chat" {
			return true
		}
		return strings.HasPrefix(path, "/webhooks/")
	}))

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if authHandler != nil {
		authHandler.Register(e)
	}
	if twilioHandler != nil {
		twilioHandler.Register(e)
	}
	if ultraMsgHandler != nil {
		ultraMsgHandler.Register(e)
	}
	if webChatHandler != nil {
		webChatHandler.Register(e)
	}
	if conversationsHandler != nil {
		conversationsHandler.Register(e)
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
