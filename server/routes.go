package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/identity/server/middleware"
	"github.com/skillsenselab/identity/version"
)

func registerRoutes(engine *gin.Engine, deps Deps) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get()})
	})

	authHandlers := &authHandlers{accounts: deps.Accounts}
	adminHandlers := &adminHandlers{accounts: deps.Accounts, manager: deps.Manager}

	v1 := engine.Group("/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandlers.register)
		auth.POST("/login", authHandlers.login)
		auth.POST("/refresh", authHandlers.refresh)
		auth.POST("/logout", authHandlers.logout)
		auth.POST("/verify-email", authHandlers.verifyEmail)
		auth.POST("/verify-email/request", authHandlers.requestVerification)
		auth.POST("/password-reset", authHandlers.resetPassword)
		auth.POST("/password-reset/request", authHandlers.requestPasswordReset)
		auth.GET("/providers", authHandlers.providers)
		auth.GET("/oauth/:provider", authHandlers.oauthRedirect)
		auth.GET("/oauth/:provider/callback", authHandlers.oauthCallback)

		auth.GET("/me", middleware.Authenticate(deps.Tokens), authHandlers.me)
	}

	admin := v1.Group("/admin",
		middleware.Authenticate(deps.Tokens),
		middleware.RequireAdmin(deps.Authz),
	)
	{
		admin.GET("/users", adminHandlers.listUsers)
		admin.GET("/users/:id", adminHandlers.getUser)
		admin.PUT("/users/:id/roles", adminHandlers.setUserRoles)
		admin.POST("/users/:id/ban", adminHandlers.banUser)
		admin.POST("/users/:id/unban", adminHandlers.unbanUser)

		admin.POST("/roles", adminHandlers.createRole)
		admin.GET("/roles", adminHandlers.listRoles)
		admin.GET("/roles/:id", adminHandlers.getRole)
		admin.PUT("/roles/:id", adminHandlers.updateRole)
		admin.PUT("/roles/:id/permissions", adminHandlers.setRolePermissions)
		admin.DELETE("/roles/:id", adminHandlers.deleteRole)

		admin.POST("/permissions", adminHandlers.createPermission)
		admin.GET("/permissions", adminHandlers.listPermissions)
		admin.PUT("/permissions/:id", adminHandlers.updatePermission)
		admin.DELETE("/permissions/:id", adminHandlers.deletePermission)
	}
}
