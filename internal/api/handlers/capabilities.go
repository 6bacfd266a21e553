package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"access-portal/internal/api/dispatch"
	"access-portal/internal/api/interfaces"
	"access-portal/internal/api/middlewares"
	"access-portal/internal/api/models"
)

// GetCapabilities returns the capabilities resolved by the session step.
func GetCapabilities(services interfaces.Services) dispatch.HandlerFunc {
	return func(c *gin.Context) error {
		capabilities := middlewares.CapabilitiesFromContext(c)
		if capabilities == nil {
			capabilities = []string{}
		}

		c.JSON(http.StatusOK, models.CapabilitiesResponse{
			Guest:        middlewares.IsGuest(c),
			Capabilities: capabilities,
		})
		return nil
	}
}
