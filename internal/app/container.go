package app

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/you/walletgate/domain"
	"github.com/you/walletgate/internal/config"
	httpx "github.com/you/walletgate/internal/http"
	"github.com/you/walletgate/internal/infrastructure/auth"
	"github.com/you/walletgate/internal/infrastructure/database"
	"github.com/you/walletgate/internal/infrastructure/notifications"
	"github.com/you/walletgate/internal/infrastructure/repositories"
	"github.com/you/walletgate/internal/logging"
	"github.com/you/walletgate/internal/services"
)

// Container holds all dependencies
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	Clock  domain.Clock

	// Infrastructure
	DB          *gorm.DB
	RedisClient *redis.Client
	Enforcer    *casbin.Enforcer

	// Repositories
	UserRepo     domain.UserRepository
	SecurityRepo domain.SecurityRepository
	OTPRepo      domain.OTPRepository
	PolicyRepo   domain.OTPPolicyRepository
	AuditRepo    domain.AuditRepository

	// Infrastructure services
	Hasher    domain.SecretHasher
	TokenSvc  domain.TokenService
	Locker    domain.Locker
	Deliverer domain.OTPDeliverer

	// Gate services
	AuditSvc  domain.AuditLogger
	OTPSvc    domain.OTPService
	PINSvc    domain.PINService
	Scorer    domain.RiskScorer
	AuthzSvc  domain.AuthorizationService
	AdminSvc  domain.AdminService
	PolicySvc domain.PolicyService
}

// NewContainer connects to the stores and builds every service
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger, Clock: domain.SystemClock{}}

	if err := c.initDatabase(); err != nil {
		return nil, err
	}
	if err := c.initRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.initRepositories()
	if err := c.initDelivery(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initRBAC(); err != nil {
		c.Close()
		return nil, err
	}
	c.initServices()

	if err := c.PolicyRepo.Seed(ctx, cfg.OTPPolicies); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to seed otp policies: %w", err)
	}
	return c, nil
}

func (c *Container) initDatabase() error {
	db, err := database.Open(database.Options{
		Driver:   c.Config.DBDriver,
		DSN:      c.Config.DSN,
		LogLevel: "warn",
	})
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	c.DB = db
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	c.RedisClient = database.NewRedis(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB).Client
	if err := c.RedisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis at %s: %w", c.Config.RedisAddr, err)
	}
	return nil
}

func (c *Container) initRepositories() {
	c.UserRepo = repositories.NewUserRepository(c.DB)
	c.SecurityRepo = repositories.NewSecurityRepository(c.DB)
	c.OTPRepo = repositories.NewOTPRepository(c.RedisClient, c.Clock, c.Config.OTPRetention)
	c.PolicyRepo = repositories.NewOTPPolicyRepository(c.DB)
	c.AuditRepo = repositories.NewAuditRepository(c.DB)
}

func (c *Container) initDelivery(ctx context.Context) error {
	logSender := notifications.NewLogSender(logging.Component(c.Logger, "delivery"))

	var sms domain.SMSSender = logSender
	switch c.Config.SMSProvider {
	case "twilio":
		sms = notifications.NewTwilioSender(c.Config.TwilioSID, c.Config.TwilioToken, c.Config.TwilioFrom)
	case "sns":
		sender, err := notifications.NewSNSSender(ctx, c.Config.SNSRegion)
		if err != nil {
			return err
		}
		sms = sender
	}

	var email domain.EmailSender = logSender
	if c.Config.EmailProvider == "smtp" {
		sender, err := notifications.NewSMTPSender(notifications.SMTPConfig{
			Host:     c.Config.SMTP.Host,
			Port:     c.Config.SMTP.Port,
			Username: c.Config.SMTP.Username,
			Password: c.Config.SMTP.Password,
			From:     c.Config.SMTP.From,
		})
		if err != nil {
			return err
		}
		email = sender
	}

	c.Deliverer = notifications.NewChannelDeliverer(c.UserRepo, sms, email, logging.Component(c.Logger, "delivery"))
	return nil
}

func (c *Container) initRBAC() error {
	cas, err := auth.NewCasbinService(c.DB, c.Config.CasbinModelPath, httpx.DefaultPolicies())
	if err != nil {
		return err
	}
	c.Enforcer = cas.E
	return nil
}

func (c *Container) initServices() {
	cfg := c.Config
	c.Hasher = auth.NewSecretHasher(cfg.BcryptCost)
	c.TokenSvc = auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL)
	c.Locker = database.NewRedisLocker(c.RedisClient, cfg.OTPLockTTL)

	c.AuditSvc = services.NewAuditService(c.AuditRepo, c.Clock, logging.Component(c.Logger, "audit"))
	c.OTPSvc = services.NewOTPService(
		c.OTPRepo,
		c.Deliverer,
		c.Hasher,
		c.Locker,
		c.AuditSvc,
		c.Clock,
		logging.Component(c.Logger, "otp"),
		services.OTPConfig{TokenTTL: cfg.OTPTokenTTL, LockTTL: cfg.OTPLockTTL},
	)
	c.PINSvc = services.NewPINService(c.SecurityRepo, c.OTPSvc, c.Hasher, c.AuditSvc, c.Clock, logging.Component(c.Logger, "pin"), cfg.TOTPIssuer)
	c.Scorer = services.NewRiskScorer(services.ScorerConfig{HighValueThreshold: cfg.HighValue})
	c.AuthzSvc = services.NewAuthorizationService(
		c.OTPSvc,
		c.PINSvc,
		c.Scorer,
		c.PolicyRepo,
		c.AuditRepo,
		c.AuditSvc,
		c.Locker,
		c.Clock,
		logging.Component(c.Logger, "authorization"),
		services.AuthorizationConfig{
			AutoBlockEnabled:   cfg.AutoBlock,
			AutoBlockThreshold: cfg.AutoBlockAt,
			LockTTL:            cfg.OTPLockTTL,
		},
	)
	c.AdminSvc = services.NewAdminService(c.UserRepo, c.PINSvc, c.PolicyRepo, c.AuditRepo, c.AuditSvc, c.Scorer, c.Clock, logging.Component(c.Logger, "admin"))
	c.PolicySvc = services.NewPolicyService(c.Enforcer, c.AuditSvc, logging.Component(c.Logger, "rbac"))
}

// Close closes all connections
func (c *Container) Close() error {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
