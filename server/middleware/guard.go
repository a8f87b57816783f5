package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/identity/authctx"
	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/rbac"
	"github.com/skillsenselab/identity/token"
)

// Verifier validates an access token and returns the subject.
type Verifier interface {
	VerifyAccess(tokenString string) (*token.Subject, error)
}

// Authenticate validates the Bearer token and stores the subject in both
// the Gin context and the request context. A missing header, an invalid
// token, and an expired token surface as distinct error codes, all 401.
func Authenticate(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, errors.TokenMissing())
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, errors.TokenMissing())
			return
		}

		subject, err := verifier.VerifyAccess(parts[1])
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ContextKeySubject, subject)
		c.Request = c.Request.WithContext(authctx.WithSubject(c.Request.Context(), subject))
		c.Next()
	}
}

// Subject returns the verified subject stored by Authenticate.
func Subject(c *gin.Context) (*token.Subject, bool) {
	v, ok := c.Get(ContextKeySubject)
	if !ok {
		return nil, false
	}
	subject, ok := v.(*token.Subject)
	return subject, ok && subject != nil
}

// RequireAdmin allows only subjects holding the configured admin role.
// Must run after Authenticate.
func RequireAdmin(authz *rbac.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := Subject(c)
		if !ok {
			abortWithError(c, errors.TokenMissing())
			return
		}
		isAdmin, err := authz.IsAdmin(c.Request.Context(), subject.RoleIDs)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !isAdmin {
			abortWithError(c, errors.Forbidden())
			return
		}
		c.Next()
	}
}

// RequirePermission allows only subjects whose role set carries the named
// permission. Must run after Authenticate. Denial is fail-closed: any
// resolution failure denies.
func RequirePermission(authz *rbac.Authorizer, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := Subject(c)
		if !ok {
			abortWithError(c, errors.TokenMissing())
			return
		}
		allowed, err := authz.HasPermission(c.Request.Context(), subject.RoleIDs, permission)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !allowed {
			abortWithError(c, errors.Forbidden())
			return
		}
		c.Next()
	}
}
