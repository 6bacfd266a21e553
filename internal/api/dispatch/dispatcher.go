// Package dispatch routes a request to the handler registered for its HTTP method and
// funnels every failure through a single error classifier.
package dispatch

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"access-portal/internal/api/models"
)

// HandlerFunc serves one HTTP method of an endpoint. A returned error is answered by the
// Classifier; the handler must not write a response when it fails.
type HandlerFunc func(c *gin.Context) error

// Middleware is a pipeline step run before the handler. Returning an error stops the
// pipeline.
type Middleware func(c *gin.Context) error

// Methods maps the supported HTTP methods of an endpoint to their handlers. A nil field
// means the method is not supported.
type Methods struct {
	Get    HandlerFunc
	Post   HandlerFunc
	Put    HandlerFunc
	Delete HandlerFunc
}

func (m Methods) handlerFor(method string) HandlerFunc {
	switch method {
	case http.MethodGet:
		return m.Get
	case http.MethodPost:
		return m.Post
	case http.MethodPut:
		return m.Put
	case http.MethodDelete:
		return m.Delete
	default:
		return nil
	}
}

// Allowed lists the methods that have a handler.
func (m Methods) Allowed() []string {
	var allowed []string
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		if m.handlerFor(method) != nil {
			allowed = append(allowed, method)
		}
	}
	return allowed
}

// Dispatch invokes the handler registered for the request method. Any other method
// fails with an UnsupportedMethod error without running a handler, and the Allow header
// is prepared for the response.
func Dispatch(methods Methods, c *gin.Context) error {
	method := c.Request.Method
	handler := methods.handlerFor(method)
	if handler == nil {
		c.Header("Allow", strings.Join(methods.Allowed(), ", "))
		return models.UnsupportedMethod(method)
	}
	return handler(c)
}

// Chain composes middleware steps in order, stopping at the first error.
func Chain(mws ...Middleware) Middleware {
	return func(c *gin.Context) error {
		for _, mw := range mws {
			if mw == nil {
				continue
			}
			if err := mw(c); err != nil {
				return err
			}
		}
		return nil
	}
}

// Dispatcher builds gin handlers whose failures are answered by a Classifier.
type Dispatcher struct {
	classifier *Classifier
}

func NewDispatcher(classifier *Classifier) *Dispatcher {
	return &Dispatcher{classifier: classifier}
}

// Classifier returns the classifier answering failed requests.
func (d *Dispatcher) Classifier() *Classifier {
	return d.classifier
}

// NewHandler builds a handler without a middleware step.
func (d *Dispatcher) NewHandler(methods Methods) gin.HandlerFunc {
	return d.HandleRequests(nil, methods)
}

// HandleRequests builds the full pipeline: the middleware step, then method dispatch,
// then classification of whichever step failed. A nil mw is skipped.
func (d *Dispatcher) HandleRequests(mw Middleware, methods Methods) gin.HandlerFunc {
	return func(c *gin.Context) {
		if mw != nil {
			if err := mw(c); err != nil {
				d.classifier.Handle(c, err)
				return
			}
		}
		if err := Dispatch(methods, c); err != nil {
			d.classifier.Handle(c, err)
		}
	}
}
