package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"access-portal/internal/api/dispatch"
	"access-portal/internal/api/interfaces"
	"access-portal/internal/api/models"
	"access-portal/pkg/token"
)

// Login checks credentials, starts a session, sets the session cookie and returns a
// signed token carrying the person's names.
func Login(services interfaces.Services) dispatch.HandlerFunc {
	return func(c *gin.Context) error {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return models.WrapError(models.KindUnauthorized, "invalid login request", err)
		}

		ctx := c.Request.Context()
		person, err := services.AuthService().Authenticate(ctx, req.Email, req.Password)
		if err != nil {
			services.GetLogger().SecurityLogger("login_failed", req.Email, c.ClientIP())
			return err
		}

		session, err := services.AuthService().StartSession(ctx, person)
		if err != nil {
			return err
		}

		signed, err := services.TokenService().Issue(token.Claims{
			FirstName: person.FirstName,
			LastName:  person.LastName,
		})
		if err != nil {
			return err
		}

		cfg := services.GetConfig().Security
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.SessionCookie, session.Session, int(cfg.SessionLifetime.Seconds()),
			"/", "", cfg.SecureCookies, true)

		c.JSON(http.StatusCreated, models.SessionResponse{
			Token:     signed,
			Session:   session.Session,
			ExpiresAt: session.ExpiresAt.Unix(),
			FirstName: person.FirstName,
			LastName:  person.LastName,
		})
		return nil
	}
}

// Logout ends the caller's session. Without a live session it fails with
// SessionNotFound.
func Logout(services interfaces.Services) dispatch.HandlerFunc {
	return func(c *gin.Context) error {
		name := services.GetConfig().Security.SessionCookie
		if session, err := c.Cookie(name); err != nil || session == "" {
			return models.SessionNotFound()
		}

		if err := services.AuthService().Logout(c); err != nil {
			return err
		}

		c.JSON(http.StatusOK, models.MessageResponse{Message: "Logged out."})
		return nil
	}
}
