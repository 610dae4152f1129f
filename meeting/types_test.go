package meeting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRole(t *testing.T) {
	tests := []struct {
		name      string
		roleLabel string
		agentName string
		want      Role
	}{
		{"facilitator label", "Facilitator", "Ada", RoleFacilitator},
		{"moderator in name", "Lead", "Panel Moderator", RoleFacilitator},
		{"reporter label", "reporter", "Bob", RoleReporter},
		{"scribe label", "Meeting Scribe", "Cy", RoleReporter},
		{"plain participant", "Sales Expert", "Dana", RoleParticipant},
		{"facilitator wins over reporter", "facilitator and reporter", "Eve", RoleFacilitator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRole(tt.roleLabel, tt.agentName))
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusInProgress))
	assert.True(t, CanTransition(StatusInProgress, StatusPaused))
	assert.True(t, CanTransition(StatusPaused, StatusInProgress))
	assert.True(t, CanTransition(StatusPaused, StatusCompleted))
	assert.True(t, CanTransition(StatusDraft, StatusCancelled))

	assert.False(t, CanTransition(StatusDraft, StatusPaused))
	assert.False(t, CanTransition(StatusCompleted, StatusInProgress))
	assert.False(t, CanTransition(StatusCancelled, StatusDraft))
	assert.False(t, CanTransition(StatusInProgress, StatusInProgress))

	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusPaused.IsTerminal())
}

func TestMemoryEntryExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, MemoryEntry{}.Expired(now))
	assert.True(t, MemoryEntry{ExpiresAt: &past}.Expired(now))
	assert.True(t, MemoryEntry{ExpiresAt: &now}.Expired(now))
	assert.False(t, MemoryEntry{ExpiresAt: &future}.Expired(now))
}
