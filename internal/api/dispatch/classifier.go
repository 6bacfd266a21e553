package dispatch

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"access-portal/internal/api/models"
	"access-portal/internal/metrics"
	"access-portal/pkg/config"
	"access-portal/pkg/logger"
)

// SessionTerminator ends the caller's server-side session.
type SessionTerminator interface {
	Logout(c *gin.Context) error
}

// Classifier maps failures to exactly one JSON {"message": ...} response.
type Classifier struct {
	log        *logger.Logger
	status     config.StatusConfig
	terminator SessionTerminator
	metrics    *metrics.Registry
}

// NewClassifier creates a classifier. terminator and reg may be nil.
func NewClassifier(log *logger.Logger, status config.StatusConfig, terminator SessionTerminator, reg *metrics.Registry) *Classifier {
	if status.InvalidToken == 0 {
		status.InvalidToken = config.DefaultInvalidTokenStatus
	}
	if status.LinkFailure == 0 {
		status.LinkFailure = config.DefaultLinkFailureStatus
	}
	return &Classifier{
		log:        log.WithComponent("classifier"),
		status:     status,
		terminator: terminator,
		metrics:    reg,
	}
}

// Resolve returns the status code and message for kind.
func (cl *Classifier) Resolve(kind models.Kind) (int, string) {
	switch kind {
	case models.KindUnauthorized, models.KindSessionNotFound:
		return http.StatusUnauthorized, models.MsgAuthenticationRequired
	case models.KindAppNotEnabled, models.KindInsufficientPermissions:
		return http.StatusForbidden, models.MsgForbidden
	case models.KindMissingHeader:
		return http.StatusBadRequest, models.MsgBearerMissing
	case models.KindInvalidToken:
		return cl.status.InvalidToken, models.MsgInvalidToken
	case models.KindTokenExpired:
		return cl.status.InvalidToken, models.MsgTokenExpired
	case models.KindUnsupportedMethod:
		return http.StatusMethodNotAllowed, models.MsgMethodNotAllowed
	case models.KindCommunicationsLinkFailure:
		return cl.status.LinkFailure, models.MsgDatabaseWarmingUp
	default:
		return http.StatusInternalServerError, models.MsgInternalError
	}
}

// Handle logs err with its stack and answers the request. An expired token logs the
// caller out before the response is written. If the response was already written,
// Handle only logs.
func (cl *Classifier) Handle(c *gin.Context, err error) {
	kind := models.KindOf(err)
	status, message := cl.Resolve(kind)

	log := logger.GetLoggerFromContext(c, cl.log).WithFields(map[string]interface{}{
		"kind":   kind.String(),
		"status": status,
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"stack":  models.StackText(err),
	})
	log.Error("Request failed: %v", err)

	if kind == models.KindTokenExpired && cl.terminator != nil {
		if lerr := cl.terminator.Logout(c); lerr != nil {
			log.Error("Server-side logout failed: %v", lerr)
			cl.metrics.ObserveLogoutFailure()
		}
	}

	if c.Writer.Written() {
		log.Warning("Response already written, not answering again")
		c.Abort()
		return
	}

	cl.metrics.ObserveClassified(kind.String(), status)
	c.AbortWithStatusJSON(status, models.MessageResponse{Message: message})
}
