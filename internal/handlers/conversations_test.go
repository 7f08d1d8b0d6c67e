package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakimhealth/hakim/internal/conversation"
)

type fakeReader struct {
	doc conversation.Document
}

func (f *fakeReader) Get(_ context.Context, _ string) (conversation.Document, error) {
	return f.doc, nil
}

func operatorToken(subject string) *jwt.Token {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject})
	token.Valid = true
	return token
}

func TestConversationsReturnsDocument(t *testing.T) {
	t.Parallel()

	doc := conversation.Document{}
	doc.Profile.UserID = "96170123456"
	doc.Profile.OnboardingStep = conversation.StepDone
	h := NewConversationsHandler(slog.Default(), &fakeReader{doc: doc})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/96170123456", nil)
	rec := httptest.NewRecorder()
	e := echo.New()
	c := e.NewContext(req, rec)
	c.SetParamNames("user_id")
	c.SetParamValues("96170123456")
	c.Set("user", operatorToken("admin"))

	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"96170123456"`)
}

func TestConversationsRequiresOperatorIdentity(t *testing.T) {
	t.Parallel()

	h := NewConversationsHandler(slog.Default(), &fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/961", nil)
	rec := httptest.NewRecorder()
	e := echo.New()
	c := e.NewContext(req, rec)
	c.SetParamNames("user_id")
	c.SetParamValues("961")

	err := h.Get(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}
