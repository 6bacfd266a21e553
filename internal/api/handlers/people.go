package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"access-portal/internal/api/dispatch"
	"access-portal/internal/api/interfaces"
	"access-portal/internal/api/middlewares"
	"access-portal/internal/api/models"
	"access-portal/internal/database/repositories"
)

// GetCurrentPerson returns the profile of the person owning the session.
func GetCurrentPerson(services interfaces.Services) dispatch.HandlerFunc {
	return func(c *gin.Context) error {
		session, ok := middlewares.SessionFromContext(c)
		if !ok {
			return models.SessionNotFound()
		}

		person, err := services.PersonRepository().GetBySession(c.Request.Context(), session)
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionNotFound()
		}
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, models.PersonResponse{
			ID:           person.ID,
			Email:        person.Email,
			FirstName:    person.FirstName,
			LastName:     person.LastName,
			Capabilities: middlewares.CapabilitiesFromContext(c),
		})
		return nil
	}
}
