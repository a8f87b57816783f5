package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillsenselab/identity/account"
	"github.com/skillsenselab/identity/errors"
	"github.com/skillsenselab/identity/rbac"
	"github.com/skillsenselab/identity/store"
)

type adminHandlers struct {
	accounts *account.Service
	manager  *rbac.Manager
}

type roleRequest struct {
	Name          string      `json:"name" binding:"required"`
	Description   string      `json:"description"`
	PermissionIDs []uuid.UUID `json:"permission_ids"`
}

type permissionRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type idListRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// pathID parses the :id path parameter.
func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errors.InvalidInput("id is not a valid UUID")
	}
	return id, nil
}

// --- users ---

func (h *adminHandlers) listUsers(c *gin.Context) {
	var filter store.UserFilter
	filter.Email = c.Query("email")
	filter.Username = c.Query("username")
	if v, ok := boolQuery(c, "verified"); ok {
		filter.Verified = &v
	}
	if v, ok := boolQuery(c, "banned"); ok {
		filter.Banned = &v
	}

	users, err := h.accounts.ListUsers(c.Request.Context(), filter)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOKWithMeta(c, users, &Meta{Count: len(users)})
}

func boolQuery(c *gin.Context, key string) (bool, bool) {
	switch c.Query(key) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func (h *adminHandlers) getUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	user, err := h.accounts.Profile(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, user)
}

func (h *adminHandlers) setUserRoles(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	var req idListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	if err := h.manager.AssignUserRoles(c.Request.Context(), id, req.IDs); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *adminHandlers) banUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if err := h.accounts.Ban(c.Request.Context(), id); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *adminHandlers) unbanUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if err := h.accounts.Unban(c.Request.Context(), id); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

// --- roles ---

func (h *adminHandlers) createRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	role, err := h.manager.CreateRole(c.Request.Context(), req.Name, req.Description, req.PermissionIDs)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, role)
}

func (h *adminHandlers) listRoles(c *gin.Context) {
	roles, err := h.manager.ListRoles(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOKWithMeta(c, roles, &Meta{Count: len(roles)})
}

func (h *adminHandlers) getRole(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	role, err := h.manager.GetRole(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, role)
}

func (h *adminHandlers) updateRole(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	role, err := h.manager.UpdateRole(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, role)
}

func (h *adminHandlers) setRolePermissions(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	var req idListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	role, err := h.manager.SetRolePermissions(c.Request.Context(), id, req.IDs)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, role)
}

func (h *adminHandlers) deleteRole(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if err := h.manager.DeleteRole(c.Request.Context(), id); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

// --- permissions ---

func (h *adminHandlers) createPermission(c *gin.Context) {
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	permission, err := h.manager.CreatePermission(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, permission)
}

func (h *adminHandlers) listPermissions(c *gin.Context) {
	permissions, err := h.manager.ListPermissions(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOKWithMeta(c, permissions, &Meta{Count: len(permissions)})
}

func (h *adminHandlers) updatePermission(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidInput("request body is malformed"))
		return
	}
	permission, err := h.manager.UpdatePermission(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, permission)
}

func (h *adminHandlers) deletePermission(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if err := h.manager.DeletePermission(c.Request.Context(), id); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}
