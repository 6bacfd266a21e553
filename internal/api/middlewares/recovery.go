package middlewares

import (
	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"

	"access-portal/internal/api/dispatch"
)

// Recovery middleware turns panics into classified failures so that a crashing handler
// still answers with a generic JSON message.
func Recovery(classifier *dispatch.Classifier) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		var err error
		if e, ok := recovered.(error); ok {
			err = pkgerrors.Wrap(e, "panic")
		} else {
			err = pkgerrors.Errorf("panic: %v", recovered)
		}
		classifier.Handle(c, err)
	})
}
