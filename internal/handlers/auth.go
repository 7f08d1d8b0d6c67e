package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/hakimhealth/hakim/internal/auth"
	"github.com/hakimhealth/hakim/internal/config"
)

// AuthHandler exchanges the configured admin credentials for an operator
// token. The password is hashed once at construction; the plaintext is not
// kept around.
type AuthHandler struct {
	logger       *slog.Logger
	username     string
	passwordHash []byte
	jwtSecret    string
	expiresIn    time.Duration
}

func NewAuthHandler(log *slog.Logger, cfg config.Config) (*AuthHandler, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil || expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	return &AuthHandler{
		logger:       log.With(slog.String("handler", "auth")),
		username:     cfg.Admin.Username,
		passwordHash: hash,
		jwtSecret:    cfg.Auth.JWTSecret,
		expiresIn:    expiresIn,
	}, nil
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Username != h.username ||
		bcrypt.CompareHashAndPassword(h.passwordHash, []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, expiresAt, err := auth.GenerateToken(req.Username, h.jwtSecret, h.expiresIn)
	if err != nil {
		h.logger.Error("issue token failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "issue token failed")
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}
