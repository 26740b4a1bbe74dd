package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/you/walletgate/domain"
	"go.uber.org/zap"
)

const casbinRolePrefix = "role_"

// CasbinEnforcerWrapper wraps the real Casbin enforcer to implement our interface
type CasbinEnforcerWrapper struct {
	enforcer *casbin.Enforcer
}

// NewCasbinEnforcerWrapper creates a wrapper for the real Casbin enforcer
func NewCasbinEnforcerWrapper(enforcer *casbin.Enforcer) domain.CasbinEnforcer {
	return &CasbinEnforcerWrapper{enforcer: enforcer}
}

func (w *CasbinEnforcerWrapper) AddPolicy(params ...interface{}) (bool, error) {
	return w.enforcer.AddPolicy(params...)
}

func (w *CasbinEnforcerWrapper) RemovePolicy(params ...interface{}) (bool, error) {
	return w.enforcer.RemovePolicy(params...)
}

func (w *CasbinEnforcerWrapper) Enforce(rvals ...interface{}) (bool, error) {
	return w.enforcer.Enforce(rvals...)
}

func (w *CasbinEnforcerWrapper) GetPolicy() ([][]string, error) {
	return w.enforcer.GetPolicy()
}

func (w *CasbinEnforcerWrapper) SavePolicy() error {
	return w.enforcer.SavePolicy()
}

// CasbinRole maps an application role to its Casbin subject
func CasbinRole(role string) string {
	if strings.HasPrefix(role, casbinRolePrefix) {
		return role
	}
	return casbinRolePrefix + role
}

// PolicyServiceImpl implements domain.PolicyService using Casbin
type PolicyServiceImpl struct {
	enforcer domain.CasbinEnforcer
	audit    domain.AuditLogger
	logger   *zap.Logger
}

// NewPolicyService creates a new policy service
func NewPolicyService(enforcer *casbin.Enforcer, audit domain.AuditLogger, logger *zap.Logger) domain.PolicyService {
	return NewPolicyServiceWithEnforcer(NewCasbinEnforcerWrapper(enforcer), audit, logger)
}

// NewPolicyServiceWithEnforcer creates a new policy service with a CasbinEnforcer interface (for testing)
func NewPolicyServiceWithEnforcer(enforcer domain.CasbinEnforcer, audit domain.AuditLogger, logger *zap.Logger) domain.PolicyService {
	return &PolicyServiceImpl{
		enforcer: enforcer,
		audit:    audit,
		logger:   logger,
	}
}

// AddPolicy implements domain.PolicyService
func (p *PolicyServiceImpl) AddPolicy(ctx context.Context, actor string, rule domain.PolicyRule) error {
	rule, err := normalizeRule(rule)
	if err != nil {
		return err
	}
	if _, err := p.enforcer.AddPolicy(rule.Role, rule.Resource, rule.Action); err != nil {
		return fmt.Errorf("failed to add policy: %w", err)
	}
	if err := p.enforcer.SavePolicy(); err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	p.record(ctx, actor, "add", rule)
	return nil
}

// RemovePolicy implements domain.PolicyService
func (p *PolicyServiceImpl) RemovePolicy(ctx context.Context, actor string, rule domain.PolicyRule) error {
	rule, err := normalizeRule(rule)
	if err != nil {
		return err
	}
	removed, err := p.enforcer.RemovePolicy(rule.Role, rule.Resource, rule.Action)
	if err != nil {
		return fmt.Errorf("failed to remove policy: %w", err)
	}
	if !removed {
		return domain.ErrRuleNotFound
	}
	if err := p.enforcer.SavePolicy(); err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	p.record(ctx, actor, "remove", rule)
	return nil
}

// CheckPermission implements domain.PolicyService
func (p *PolicyServiceImpl) CheckPermission(role, resource, action string) (bool, error) {
	return p.enforcer.Enforce(CasbinRole(role), resource, action)
}

// GetPolicies implements domain.PolicyService
func (p *PolicyServiceImpl) GetPolicies() ([]domain.PolicyRule, error) {
	policies, err := p.enforcer.GetPolicy()
	if err != nil {
		return nil, fmt.Errorf("failed to read policies: %w", err)
	}
	rules := make([]domain.PolicyRule, 0, len(policies))
	for _, pol := range policies {
		if len(pol) < 3 {
			continue
		}
		rules = append(rules, domain.PolicyRule{Role: pol[0], Resource: pol[1], Action: pol[2]})
	}
	return rules, nil
}

func (p *PolicyServiceImpl) record(ctx context.Context, actor, op string, rule domain.PolicyRule) {
	p.logger.Info("rbac policy changed",
		zap.String("actor", actor),
		zap.String("op", op),
		zap.String("role", rule.Role),
		zap.String("resource", rule.Resource),
		zap.String("action", rule.Action),
	)

	event := domain.NewAuditEvent(domain.RBACPolicyEvent, actor, time.Time{}).
		WithActor(actor).
		WithMetadata("op", op).
		WithMetadata("role", rule.Role).
		WithMetadata("resource", rule.Resource).
		WithMetadata("action", rule.Action)
	if err := p.audit.LogEvent(ctx, event); err != nil {
		p.logger.Error("failed to audit rbac policy change", zap.String("actor", actor), zap.Error(err))
	}
}

func normalizeRule(rule domain.PolicyRule) (domain.PolicyRule, error) {
	rule.Role = strings.TrimSpace(rule.Role)
	rule.Resource = strings.TrimSpace(rule.Resource)
	rule.Action = strings.ToUpper(strings.TrimSpace(rule.Action))
	if rule.Role == "" || rule.Resource == "" || rule.Action == "" {
		return rule, fmt.Errorf("%w: role, resource and action are required", domain.ErrInvalidRule)
	}
	if !strings.HasPrefix(rule.Resource, "/") {
		return rule, fmt.Errorf("%w: resource must be an absolute path", domain.ErrInvalidRule)
	}
	rule.Role = CasbinRole(rule.Role)
	return rule, nil
}
