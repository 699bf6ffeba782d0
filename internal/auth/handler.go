package auth

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"recordgrid/internal/engine"
	"recordgrid/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	users  *store.UserRepo
	tokens *Tokens
	logger *zap.SugaredLogger
}

func NewAuthHandler(users *store.UserRepo, tokens *Tokens, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, logger: logger}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.InvalidPayloadError("Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	user, err := h.users.FindByEmail(c.UserContext(), body.Email)
	if errors.Is(err, store.ErrNotFound) {
		return engine.UnauthorizedError("Invalid email or password")
	}
	if err != nil {
		return err
	}
	if !user.Active {
		return engine.UnauthorizedError("Account is disabled")
	}
	if !CheckPassword(body.Password, user.PasswordHash) {
		h.logger.Infow("login rejected", "email", body.Email)
		return engine.UnauthorizedError("Invalid email or password")
	}

	pair, err := h.issue(c, user.ID, user.Roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Refresh handles POST /api/auth/refresh. Refresh tokens are single use.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token, err := refreshTokenFrom(c)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	rt, err := h.users.FindRefreshToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return engine.UnauthorizedError("Invalid refresh token")
	}
	if err != nil {
		return err
	}
	if err := h.users.DeleteRefreshToken(ctx, token); err != nil {
		return err
	}
	if time.Now().After(rt.ExpiresAt) {
		return engine.UnauthorizedError("Refresh token expired")
	}
	if !rt.Active {
		return engine.UnauthorizedError("Account is disabled")
	}

	pair, err := h.issue(c, rt.UserID, rt.Roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, err := refreshTokenFrom(c)
	if err != nil {
		return err
	}
	if err := h.users.DeleteRefreshToken(c.UserContext(), token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// RegisterAuthRoutes registers auth routes on the given Fiber app.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler) {
	auth := app.Group("/api/auth")
	auth.Post("/login", h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", h.Logout)
}

// --- helpers ---

func refreshTokenFrom(c *fiber.Ctx) (string, error) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return "", engine.InvalidPayloadError("Invalid request body")
	}
	if body.RefreshToken == "" {
		return "", engine.UnauthorizedError("Refresh token is required")
	}
	return body.RefreshToken, nil
}

func (h *AuthHandler) issue(c *fiber.Ctx, userID string, roles []string) (*TokenPair, error) {
	access, err := h.tokens.Issue(userID, roles)
	if err != nil {
		return nil, engine.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}

	refresh := NewRefreshToken()
	if err := h.users.CreateRefreshToken(c.UserContext(), userID, refresh, time.Now().Add(RefreshTokenTTL)); err != nil {
		h.logger.Errorw("store refresh token", "user", userID, "error", err)
		return nil, engine.NewAppError("INTERNAL_ERROR", 500, "Failed to store refresh token")
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
	}, nil
}
