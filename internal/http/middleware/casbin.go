package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/domain"
	"github.com/you/walletgate/internal/services"
)

// CasbinMiddleware defines the interface for Casbin authorization middleware
type CasbinMiddleware interface {
	Enforce() gin.HandlerFunc
}

// CasbinMW checks the caller's role against the RBAC rules for the request
// path and method
type CasbinMW struct {
	enforcer domain.CasbinEnforcer
}

// NewCasbinMW creates new casbin middleware wrapper
func NewCasbinMW(enforcer domain.CasbinEnforcer) *CasbinMW {
	return &CasbinMW{enforcer: enforcer}
}

// Enforce returns the casbin authorization middleware
func (mw *CasbinMW) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, userExists := c.Get(UserIDKey)
		role, roleExists := c.Get(UserRoleKey)
		if !userExists || !roleExists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User ID or role not found in token"})
			return
		}

		headerUserID := c.GetHeader("x-user-id")
		if headerUserID != "" && headerUserID != userID.(string) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Header x-user-id does not match token user ID"})
			return
		}

		allowed, err := mw.enforcer.Enforce(services.CasbinRole(role.(string)), c.Request.URL.Path, c.Request.Method)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authorization check failed"})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access Denied"})
			return
		}
		c.Next()
	}
}
