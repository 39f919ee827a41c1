package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// LogoutConfig is fixed at startup; the handler keeps its own copy.
type LogoutConfig struct {
	ClearAuthentication bool
	InvalidateSession   bool
	CookieName          string
	CookiePath          string
	CookieDomain        string
	Secure              bool
}

// LogoutHandler ends the browser session bound to a request.
type LogoutHandler struct {
	cfg LogoutConfig
}

// NewLogoutHandler builds an immutable handler from cfg.
func NewLogoutHandler(cfg LogoutConfig) *LogoutHandler {
	return &LogoutHandler{cfg: cfg}
}

// Config returns a copy of the handler configuration.
func (h *LogoutHandler) Config() LogoutConfig {
	return h.cfg
}

// Session binds the handler to one request so it can be passed to the token service.
func (h *LogoutHandler) Session(c *fiber.Ctx) *RequestSession {
	return &RequestSession{handler: h, ctx: c}
}

// Logout clears the resolved principal and expires the session cookie.
func (h *LogoutHandler) Logout(c *fiber.Ctx) {
	if h.cfg.ClearAuthentication {
		c.Locals(callerKey, nil)
	}
	if h.cfg.InvalidateSession && h.cfg.CookieName != "" {
		c.Cookie(&fiber.Cookie{
			Name:     h.cfg.CookieName,
			Value:    "",
			Path:     h.cfg.CookiePath,
			Domain:   h.cfg.CookieDomain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   h.cfg.Secure,
			HTTPOnly: true,
		})
	}
}

// RequestSession is the session handle of a single request.
type RequestSession struct {
	handler *LogoutHandler
	ctx     *fiber.Ctx
}

// Terminate logs the request out of its browser session.
func (s *RequestSession) Terminate() {
	s.handler.Logout(s.ctx)
}
