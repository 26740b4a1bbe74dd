package httpx

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/internal/http/handlers"
	"github.com/you/walletgate/internal/http/middleware"
	"go.uber.org/zap"
)

// Handlers groups the route handlers
type Handlers struct {
	OTP      *handlers.OTPHandlers
	PIN      *handlers.PINHandlers
	Transfer *handlers.TransferHandlers
	Admin    *handlers.AdminHandlers
	Policy   *handlers.PolicyHandlers
	Events   *handlers.EventHandlers
}

// DefaultPolicies is the RBAC rule set written to an empty policy store
func DefaultPolicies() [][]string {
	return [][]string{
		{"role_admin", "/admin/*", "GET|POST|PUT|DELETE"},
		{"role_user", "/otp/*", "GET|POST"},
		{"role_user", "/pin/*", "GET|POST"},
		{"role_user", "/2fa/*", "POST"},
		{"role_user", "/transfers/authorize", "POST"},
		{"role_service", "/events/login", "POST"},
	}
}

// BuildRouter wires the API. Forwarded-for and location headers are honored
// only from trustedProxies; with none, the TCP peer is the client.
func BuildRouter(h Handlers, jwtmw *middleware.AuthMW, cb middleware.CasbinMiddleware, limiter *middleware.RateLimiter, trustedProxies []string, logger *zap.Logger) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.ClientContext(trustedProxies))
	if limiter != nil {
		r.Use(limiter.Limit())
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	v := r.Group("/", jwtmw.WithJWT(), cb.Enforce())

	v.POST("/otp/request", h.OTP.Request)
	v.POST("/otp/verify", h.OTP.Verify)
	v.GET("/otp/history", h.OTP.History)

	v.POST("/pin/set", h.PIN.Set)
	v.GET("/pin/status", h.PIN.Status)
	v.POST("/2fa/enroll", h.PIN.EnrollTwoFactor)
	v.POST("/2fa/verify", h.PIN.VerifyTwoFactor)

	v.POST("/transfers/authorize", h.Transfer.Authorize)
	v.POST("/events/login", h.Events.RecordLogin)

	adm := r.Group("/admin", jwtmw.WithJWT(), cb.Enforce())
	adm.POST("/users/:id/unblock", h.Admin.UnblockUser)
	adm.GET("/otp/policies", h.Admin.ListOTPPolicies)
	adm.GET("/otp/policies/:type/:channel", h.Admin.GetOTPPolicy)
	adm.PUT("/otp/policies/:type/:channel", h.Admin.UpdateOTPPolicy)
	adm.GET("/suspicious-activity", h.Admin.SuspiciousActivity)
	adm.GET("/login-logs", h.Admin.LoginLogs)
	adm.GET("/login-statistics", h.Admin.LoginStatistics)
	adm.GET("/policies", h.Policy.List)
	adm.POST("/policies", h.Policy.Add)
	adm.DELETE("/policies", h.Policy.Remove)

	return r, nil
}
