package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/handler"
	"github.com/noah-isme/gradebook-api/internal/service"
)

type mockAuthService struct{}

func (mockAuthService) Login(_ context.Context, req dto.LoginRequest) (dto.LoginResponse, error) {
	if req.Username != "admin" || req.Password != "secret" {
		return dto.LoginResponse{}, service.ErrInvalidCredentials
	}
	return dto.LoginResponse{Token: "signed", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	app := fiber.New()
	handler.NewAuthHandler(mockAuthService{}, nopLogger).Register(app.Group("/api/v1/auth"))

	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "secret"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.LoginResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "signed", body.Data.Token)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "nope"})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "not-json")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
