package middlewares

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"access-portal/internal/api/dispatch"
	"access-portal/internal/api/interfaces"
	"access-portal/internal/api/models"
	"access-portal/internal/database/repositories"
	"access-portal/pkg/token"
)

// Context keys set by the auth middleware steps.
const (
	ContextSession      = "session"
	ContextPersonID     = "person_id"
	ContextCapabilities = "capabilities"
	ContextGuest        = "guest"
	ContextClaims       = "claims"
)

// OptionalSession resolves the caller's capabilities from the session cookie, falling
// back to the Guests group when there is no live session.
func OptionalSession(services interfaces.Services) dispatch.Middleware {
	return func(c *gin.Context) error {
		ok, err := loadSession(c, services)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		capabilities, err := services.CapabilityRepository().ForGuest(c.Request.Context())
		if err != nil {
			return err
		}
		c.Set(ContextGuest, true)
		c.Set(ContextCapabilities, capabilities)
		return nil
	}
}

// RequireSession fails with SessionNotFound unless the session cookie names a live
// session.
func RequireSession(services interfaces.Services) dispatch.Middleware {
	return func(c *gin.Context) error {
		ok, err := loadSession(c, services)
		if err != nil {
			return err
		}
		if !ok {
			return models.SessionNotFound()
		}
		return nil
	}
}

// RequireToken verifies the bearer token. Verification errors are returned unchanged so
// the classifier can tell an expired token from an invalid one.
func RequireToken(services interfaces.Services) dispatch.Middleware {
	return func(c *gin.Context) error {
		header := c.GetHeader("Authorization")
		if header == "" {
			return models.MissingHeader("Authorization")
		}

		raw, ok := extractToken(header)
		if !ok {
			return models.InvalidToken(errors.New("authorization header is not a bearer token"))
		}

		claims, err := services.TokenService().Verify(raw)
		if err != nil {
			return err
		}
		c.Set(ContextClaims, claims)
		return nil
	}
}

// RequireCapability fails with InsufficientPermissions unless a preceding session step
// granted capability.
func RequireCapability(capability string) dispatch.Middleware {
	return func(c *gin.Context) error {
		for _, held := range CapabilitiesFromContext(c) {
			if held == capability {
				return nil
			}
		}
		return models.InsufficientPermissions(capability)
	}
}

// RequireApp fails with AppNotEnabled when app is listed in api.disabled_apps.
func RequireApp(services interfaces.Services, app string) dispatch.Middleware {
	return func(c *gin.Context) error {
		if !services.GetConfig().AppEnabled(app) {
			return models.AppNotEnabled(app)
		}
		return nil
	}
}

// loadSession stores the session and its capabilities in the context. It reports false
// when the cookie is absent or names a missing or expired session.
func loadSession(c *gin.Context, services interfaces.Services) (bool, error) {
	cookie, err := c.Cookie(services.GetConfig().Security.SessionCookie)
	if err != nil || cookie == "" {
		return false, nil
	}

	ctx := c.Request.Context()
	session, err := services.SessionRepository().Get(ctx, cookie)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !session.Active(time.Now()) {
		return false, nil
	}

	capabilities, err := services.CapabilityRepository().ForSession(ctx, session.Session)
	if err != nil {
		return false, err
	}

	c.Set(ContextSession, session.Session)
	c.Set(ContextPersonID, session.PeopleID)
	c.Set(ContextGuest, false)
	c.Set(ContextCapabilities, capabilities)
	return true, nil
}

// SessionFromContext returns the session token stored by a session step.
func SessionFromContext(c *gin.Context) (string, bool) {
	session := c.GetString(ContextSession)
	return session, session != ""
}

// CapabilitiesFromContext returns the capabilities stored by a session step.
func CapabilitiesFromContext(c *gin.Context) []string {
	return c.GetStringSlice(ContextCapabilities)
}

// IsGuest reports whether OptionalSession fell back to guest capabilities.
func IsGuest(c *gin.Context) bool {
	return c.GetBool(ContextGuest)
}

// ClaimsFromContext returns the claims stored by RequireToken.
func ClaimsFromContext(c *gin.Context) (*token.Claims, bool) {
	value, exists := c.Get(ContextClaims)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*token.Claims)
	return claims, ok
}

// extractToken extracts the token from an Authorization header value
func extractToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
