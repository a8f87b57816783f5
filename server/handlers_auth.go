package server

import (
	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/identity/account"
	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/server/middleware"
)

type authHandlers struct {
	accounts *account.Service
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type actionTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *authHandlers) register(c *gin.Context) {
	var in account.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), in)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, user)
}

func (h *authHandlers) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	user, pair, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, gin.H{"user": user, "tokens": pair})
}

func (h *authHandlers) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.RefreshMissing())
		return
	}
	pair, err := h.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, pair)
}

func (h *authHandlers) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.RefreshMissing())
		return
	}
	if err := h.accounts.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *authHandlers) verifyEmail(c *gin.Context) {
	var req actionTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.TokenMissing())
		return
	}
	if err := h.accounts.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *authHandlers) requestVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	if err := h.accounts.RequestEmailVerification(c.Request.Context(), req.Email); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *authHandlers) requestPasswordReset(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *authHandlers) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	if err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *authHandlers) providers(c *gin.Context) {
	RespondOK(c, gin.H{"providers": h.accounts.Providers()})
}

func (h *authHandlers) oauthRedirect(c *gin.Context) {
	url, err := h.accounts.AuthURL(c.Param("provider"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, gin.H{"url": url})
}

func (h *authHandlers) oauthCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		RespondWithError(c, errors.InvalidState())
		return
	}
	user, pair, err := h.accounts.FederatedLogin(c.Request.Context(), c.Param("provider"), code, state)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, gin.H{"user": user, "tokens": pair})
}

func (h *authHandlers) me(c *gin.Context) {
	subject, ok := middleware.Subject(c)
	if !ok {
		RespondWithError(c, errors.TokenMissing())
		return
	}
	user, err := h.accounts.Profile(c.Request.Context(), subject.UserID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, user)
}
