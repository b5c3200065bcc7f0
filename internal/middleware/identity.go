package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/classforge/backend/pkg/response"
)

// Context keys set by the identity middleware.
const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
	ContextUserRoles = "user_roles"
)

// Identity reads the caller identity the upstream gateway injects after
// authenticating the request. Requests that reach this service directly,
// without the gateway headers, are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		email := c.GetHeader("X-User-Email")
		if userID == "" || email == "" {
			response.Unauthorized(c, "missing identity headers")
			c.Abort()
			return
		}
		var roles []string
		for _, r := range strings.Split(c.GetHeader("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
		c.Set(ContextUserID, userID)
		c.Set(ContextUserEmail, email)
		c.Set(ContextUserRoles, roles)
		c.Next()
	}
}

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		rolesVal, ok := c.Get(ContextUserRoles)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		roles, _ := rolesVal.([]string)
		for _, r := range roles {
			if _, ok := allowed[r]; ok {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient permissions")
		c.Abort()
	}
}
