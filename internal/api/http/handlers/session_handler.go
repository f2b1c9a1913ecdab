package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/btangonan/calm-productivity-app-sub002/internal/api/dto"
	"github.com/btangonan/calm-productivity-app-sub002/internal/service"
	apperrors "github.com/btangonan/calm-productivity-app-sub002/pkg/util"
)

// Action is the closed set of operations the session gateway dispatches.
// Adding an action means extending ParseAction and the Dispatch switch, both
// checked at compile time through the exhaustive default.
type Action int

const (
	ActionInvalid Action = iota
	ActionValidate
	ActionExchangeCode
	ActionStoreToken
	ActionRefresh
)

// ParseAction maps the query-string action to its typed variant.
func ParseAction(raw string) Action {
	switch raw {
	case "validate":
		return ActionValidate
	case "exchange-code":
		return ActionExchangeCode
	case "store-token":
		return ActionStoreToken
	case "refresh":
		return ActionRefresh
	default:
		return ActionInvalid
	}
}

// SessionHandler exposes the consolidated session gateway.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Dispatch handles /auth?action={validate|exchange-code|store-token|refresh}.
func (h *SessionHandler) Dispatch(c *fiber.Ctx) error {
	switch ParseAction(c.Query("action")) {
	case ActionValidate:
		if err := requirePost(c); err != nil {
			return err
		}
		return h.validate(c)
	case ActionExchangeCode:
		if err := requirePost(c); err != nil {
			return err
		}
		return h.exchangeCode(c)
	case ActionStoreToken:
		if err := requirePost(c); err != nil {
			return err
		}
		return h.storeToken(c)
	case ActionRefresh:
		if err := requirePost(c); err != nil {
			return err
		}
		return h.refresh(c)
	case ActionInvalid:
		return apperrors.NewBadRequest("INVALID_ACTION", "unknown action")
	default:
		return apperrors.NewBadRequest("INVALID_ACTION", "unknown action")
	}
}

func (h *SessionHandler) validate(c *fiber.Ctx) error {
	identity, err := h.sessions.Validate(c.UserContext(), c.Get("Authorization"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user": dto.ValidatedUser{
			UserID:    identity.InternalID,
			Email:     identity.Email,
			ExpiresAt: identity.ExpiresAt.UnixMilli(),
		},
	})
}

func (h *SessionHandler) exchangeCode(c *fiber.Ctx) error {
	var req dto.ExchangeCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("INVALID_PAYLOAD", "invalid payload")
	}
	if req.Code == "" {
		return apperrors.NewBadRequest("MISSING_CODE", "authorization code is required")
	}

	result, err := h.sessions.ExchangeCode(c.UserContext(), req.Code)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"tokens": dto.ExchangeTokens{
			AccessToken:  result.Grant.AccessToken,
			RefreshToken: result.Grant.RefreshToken,
			IDToken:      result.IDToken,
			ExpiresIn:    result.Grant.ExpiresIn,
			TokenType:    result.Grant.TokenType,
		},
		"user": result.Profile,
	})
}

func (h *SessionHandler) storeToken(c *fiber.Ctx) error {
	identity, err := h.sessions.Validate(c.UserContext(), c.Get("Authorization"))
	if err != nil {
		return err
	}

	var req dto.StoreTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("INVALID_PAYLOAD", "invalid payload")
	}

	if err := h.sessions.StoreToken(c.UserContext(), identity, req.RefreshToken); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "refresh token stored",
	})
}

func (h *SessionHandler) refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("INVALID_PAYLOAD", "invalid payload")
	}

	grant, err := h.sessions.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"tokens": dto.RefreshTokens{
			AccessToken:  grant.AccessToken,
			ExpiresIn:    grant.ExpiresIn,
			TokenType:    grant.TokenType,
			RefreshToken: grant.RefreshToken,
		},
	})
}

func requirePost(c *fiber.Ctx) error {
	if c.Method() != http.MethodPost {
		return apperrors.NewMethodNotAllowed("method not allowed")
	}
	return nil
}
