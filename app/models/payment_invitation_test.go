package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvitationPendingKey(t *testing.T) {
	assert.Equal(t, "1:maria@example.com", InvitationPendingKey(1, "maria@example.com"))

	// The same coach with different students gets distinct keys, and so do
	// different coaches with the same student.
	assert.NotEqual(t, InvitationPendingKey(1, "a@example.com"), InvitationPendingKey(1, "b@example.com"))
	assert.NotEqual(t, InvitationPendingKey(1, "a@example.com"), InvitationPendingKey(2, "a@example.com"))
}

func TestInvitationIsExpired(t *testing.T) {
	now := time.Now()
	inv := &PaymentInvitation{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, inv.IsExpired(now))
	assert.True(t, inv.IsExpired(now.Add(2*time.Hour)))

	// Exactly at the boundary the invitation is still usable.
	assert.False(t, inv.IsExpired(inv.ExpiresAt))
}
