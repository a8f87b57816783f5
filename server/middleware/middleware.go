// Package middleware provides the Gin middleware stack: request
// correlation, panic recovery, request logging, and the authentication /
// authorization guard chain.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/identity/errors"
)

// ContextKeySubject is the Gin context key the guard chain stores the
// verified subject under.
const ContextKeySubject = "auth_subject"

// ContextKeyRequestID is the Gin context key for the request correlation id.
const ContextKeyRequestID = "request_id"

// abortWithError writes the structured error response and stops the chain.
func abortWithError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Internal(err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
