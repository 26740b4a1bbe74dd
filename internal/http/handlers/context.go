package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/internal/http/middleware"
)

// currentUserID reads the authenticated user, writing a 401 when absent
func currentUserID(c *gin.Context) (uint, bool) {
	raw := c.GetString(middleware.UserIDKey)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	return uint(id), true
}

// actor names the caller of a privileged action in the audit log
func actor(c *gin.Context) string {
	return fmt.Sprintf("%s:%s", c.GetString(middleware.UserRoleKey), c.GetString(middleware.UserIDKey))
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return uint(id), true
}

// queryInt returns the integer query parameter or def when it is absent
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return v, true
}
