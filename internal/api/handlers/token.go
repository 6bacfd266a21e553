package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"access-portal/internal/api/dispatch"
	"access-portal/internal/api/interfaces"
	"access-portal/internal/api/middlewares"
	"access-portal/internal/api/models"
)

// GetToken echoes the verified claims of the bearer token.
func GetToken(services interfaces.Services) dispatch.HandlerFunc {
	return func(c *gin.Context) error {
		claims, ok := middlewares.ClaimsFromContext(c)
		if !ok {
			return models.MissingHeader("Authorization")
		}

		resp := models.TokenResponse{
			FirstName: claims.FirstName,
			LastName:  claims.LastName,
		}
		if claims.IssuedAt != nil {
			resp.IssuedAt = claims.IssuedAt.Unix()
		}
		if claims.ExpiresAt != nil {
			resp.ExpiresAt = claims.ExpiresAt.Unix()
		}

		c.JSON(http.StatusOK, resp)
		return nil
	}
}
