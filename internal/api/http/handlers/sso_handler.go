package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ssoworks/sso-service/internal/api/dto"
	"github.com/ssoworks/sso-service/internal/auth"
	"github.com/ssoworks/sso-service/internal/domain"
	"github.com/ssoworks/sso-service/internal/service"
	apperrors "github.com/ssoworks/sso-service/pkg/util"
)

// SSOHandler exposes identity and token endpoints.
type SSOHandler struct {
	tokens *service.TokenService
	logout *auth.LogoutHandler
	now    func() time.Time
}

// NewSSOHandler constructs handler.
func NewSSOHandler(tokens *service.TokenService, logout *auth.LogoutHandler) *SSOHandler {
	return &SSOHandler{tokens: tokens, logout: logout, now: time.Now}
}

// Me handles GET /sso/me and /sso/user.
func (h *SSOHandler) Me(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return err
	}

	view := h.tokens.CurrentIdentity(caller.Principal)
	return c.JSON(dto.IdentityResponse{
		User:        view.User,
		Authorities: view.Authorities,
		Projects:    view.Projects,
	})
}

// RevokeCurrentToken handles DELETE /sso/me.
func (h *SSOHandler) RevokeCurrentToken(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return err
	}

	confirmation, err := h.tokens.RevokeToken(c.UserContext(), caller.Token.Value, h.logout.Session(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.OperationCompletionResponse{Message: confirmation.Message})
}

// GetAPIToken handles GET /sso/me/apitoken.
func (h *SSOHandler) GetAPIToken(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return err
	}

	token, err := h.tokens.GetAPIToken(c.UserContext(), caller.Principal.Name())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTokenResponse(token, h.now()))
}

// CreateAPIToken handles POST /sso/me/apitoken.
func (h *SSOHandler) CreateAPIToken(c *fiber.Ctx) error {
	caller, err := requireCaller(c)
	if err != nil {
		return err
	}

	token, err := h.tokens.CreateAPIToken(c.UserContext(), caller.Principal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewTokenResponse(token, h.now()))
}

// RevokeUserTokens handles DELETE /sso/internal/user/:user.
func (h *SSOHandler) RevokeUserTokens(c *fiber.Ctx) error {
	user := strings.TrimSpace(c.Params("user"))
	if user == "" {
		return apperrors.NewValidationError("user required", nil)
	}

	confirmation, err := h.tokens.RevokeAllUserTokens(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(dto.OperationCompletionResponse{Message: confirmation.Message})
}

// IssueSessionToken handles POST /sso/internal/session.
func (h *SSOHandler) IssueSessionToken(c *fiber.Ctx) error {
	var req dto.SessionTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.User) == "" {
		return apperrors.NewValidationError("user required", nil)
	}

	principal, err := principalFromRequest(req)
	if err != nil {
		return err
	}

	token, err := h.tokens.IssueSessionToken(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewTokenResponse(token, h.now()))
}

func principalFromRequest(req dto.SessionTokenRequest) (domain.Principal, error) {
	user := domain.User{Username: req.User, Granted: req.Authorities}
	if req.Projects == nil {
		return user, nil
	}

	projects := make(map[string]domain.ProjectRole, len(req.Projects))
	for project, raw := range req.Projects {
		role := domain.ProjectRole(strings.ToUpper(raw))
		if !role.Valid() {
			return nil, apperrors.NewValidationError("unknown project role", map[string]any{
				"project": project,
				"role":    raw,
			})
		}
		projects[project] = role
	}
	return domain.ProjectUser{User: user, Projects: projects}, nil
}

func requireCaller(c *fiber.Ctx) (*auth.Caller, error) {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return caller, nil
}
