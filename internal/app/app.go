package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/you/walletgate/internal/config"
	httpx "github.com/you/walletgate/internal/http"
	"github.com/you/walletgate/internal/http/handlers"
	"github.com/you/walletgate/internal/http/middleware"
	"github.com/you/walletgate/internal/infrastructure/auth"
	"github.com/you/walletgate/internal/infrastructure/database"
	"github.com/you/walletgate/internal/infrastructure/repositories"
	"github.com/you/walletgate/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Router builds the HTTP API on top of a container
func Router(c *Container, limiter *middleware.RateLimiter) (*gin.Engine, error) {
	h := httpx.Handlers{
		OTP:      handlers.NewOTPHandlers(c.OTPSvc, c.PolicyRepo),
		PIN:      handlers.NewPINHandlers(c.PINSvc),
		Transfer: handlers.NewTransferHandlers(c.AuthzSvc),
		Admin:    handlers.NewAdminHandlers(c.AdminSvc, c.Clock),
		Policy:   handlers.NewPolicyHandlers(c.PolicySvc),
		Events:   handlers.NewEventHandlers(c.AuditSvc),
	}
	return httpx.BuildRouter(
		h,
		middleware.NewAuthMW(c.TokenSvc),
		middleware.NewCasbinMW(c.Enforcer),
		limiter,
		c.Config.TrustedProxies,
		logging.Component(c.Logger, "http"),
	)
}

// Run serves the API until ctx is cancelled, then drains in-flight requests
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	c, err := NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	defer limiter.Stop()

	router, err := Router(c, limiter)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Migrate creates the tables, seeds the OTP policies from config and writes
// the default RBAC rules when none exist. It does not need Redis.
func Migrate(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Open(database.Options{Driver: cfg.DBDriver, DSN: cfg.DSN, LogLevel: "warn"})
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	if err := repositories.NewOTPPolicyRepository(db).Seed(ctx, cfg.OTPPolicies); err != nil {
		return fmt.Errorf("failed to seed otp policies: %w", err)
	}
	if _, err := auth.NewCasbinService(db, cfg.CasbinModelPath, httpx.DefaultPolicies()); err != nil {
		return err
	}
	logger.Info("migrations applied", zap.Int("otp_policies", len(cfg.OTPPolicies)))
	return nil
}

// Unblock clears a user's PIN lockout from the command line
func Unblock(ctx context.Context, cfg *config.Config, logger *zap.Logger, actor string, userID uint) error {
	c, err := NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.AdminSvc.UnblockUser(ctx, actor, userID); err != nil {
		return err
	}
	logger.Info("user unblocked", zap.Uint("user_id", userID), zap.String("actor", actor))
	return nil
}
