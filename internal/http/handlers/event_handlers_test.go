package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/walletgate/domain"
	"github.com/you/walletgate/internal/mocks"
)

func TestEventHandlers_RecordLogin(t *testing.T) {
	audit := mocks.NewMockAuditLogger()
	h := NewEventHandlers(audit)
	r := newTestRouter("900", "service")
	r.POST("/events/login", h.RecordLogin)

	send := func(body any) int {
		return perform(t, r, http.MethodPost, "/events/login", body).Code
	}

	assert.Equal(t, http.StatusCreated, send(LoginEventRequest{Identity: "alice@example.com", Success: true}))
	assert.Equal(t, http.StatusCreated, send(LoginEventRequest{Identity: "alice@example.com", Reason: "invalid_password"}))
	assert.Equal(t, http.StatusCreated, send(LoginEventRequest{Identity: "bob@example.com"}))
	assert.Equal(t, http.StatusBadRequest, send(`{"success":true}`))

	events := audit.EventsOfType(domain.UserLoginEvent)
	require.Len(t, events, 3)
	assert.True(t, events[0].Success)
	assert.Equal(t, "alice@example.com", events[0].Identity)
	assert.False(t, events[1].Success)
	assert.Equal(t, "invalid_password", events[1].Reason)
	assert.Equal(t, "login_failed", events[2].Reason)
	assert.NotEmpty(t, events[0].IPAddress)
}
