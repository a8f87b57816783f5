package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillsenselab/identity/authctx"
)

// RequestID injects a unique X-Request-Id header into every
// request/response and propagates it through the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-Id", id)
		c.Request = c.Request.WithContext(authctx.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
