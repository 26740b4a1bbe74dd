package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

type CasbinService struct{ E *casbin.Enforcer }

// NewCasbinService loads the RBAC model and the persisted policies. When the
// store is empty the default policies are written once.
func NewCasbinService(db *gorm.DB, modelPath string, defaults [][]string) (*CasbinService, error) {
	adp, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}
	e, err := casbin.NewEnforcer(modelPath, adp)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load casbin policy: %w", err)
	}

	existing, err := e.GetPolicy()
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 && len(defaults) > 0 {
		if _, err := e.AddPolicies(defaults); err != nil {
			return nil, fmt.Errorf("failed to seed casbin policy: %w", err)
		}
	}
	return &CasbinService{e}, nil
}
