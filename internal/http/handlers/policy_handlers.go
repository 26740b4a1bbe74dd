package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/walletgate/domain"
)

// PolicyHandlers manages the RBAC rules guarding the API
type PolicyHandlers struct {
	policies domain.PolicyService
}

// NewPolicyHandlers creates new RBAC policy handlers
func NewPolicyHandlers(policies domain.PolicyService) *PolicyHandlers {
	return &PolicyHandlers{policies: policies}
}

// List returns every rule
func (h *PolicyHandlers) List(c *gin.Context) {
	rules, err := h.policies.GetPolicies()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rules})
}

// Add grants a role access to a resource
func (h *PolicyHandlers) Add(c *gin.Context) {
	var rule domain.PolicyRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.policies.AddPolicy(c.Request.Context(), actor(c), rule); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Remove revokes a rule
func (h *PolicyHandlers) Remove(c *gin.Context) {
	var rule domain.PolicyRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.policies.RemovePolicy(c.Request.Context(), actor(c), rule); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
