// =============================================================================
// 📦 测试数据工厂 - 会议
// =============================================================================
// 提供预定义的会议与参会者，用于测试
// =============================================================================
package fixtures

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BaSui01/roundtable/meeting"
	"github.com/BaSui01/roundtable/meeting/store"
)

// DefaultWorkspace 测试工作区
const DefaultWorkspace = "ws-test"

// Participants 返回三人会议：Alice(参与者, 1)、Bob(参与者, 2)、Mod(主持人, 3)
func Participants(meetingID string) []meeting.Participant {
	return []meeting.Participant{
		{
			AgentID:       uuid.NewString(),
			MeetingID:     meetingID,
			Name:          "Alice",
			RoleLabel:     "Product Manager",
			SpeakingOrder: 1,
			SystemPrompt:  "You care about user outcomes.",
		},
		{
			AgentID:       uuid.NewString(),
			MeetingID:     meetingID,
			Name:          "Bob",
			RoleLabel:     "Staff Engineer",
			SpeakingOrder: 2,
			SystemPrompt:  "You care about feasibility.",
			Personality:   map[string]any{"tone": "skeptical"},
		},
		{
			AgentID:       uuid.NewString(),
			MeetingID:     meetingID,
			Name:          "Mod",
			RoleLabel:     "Facilitator",
			SpeakingOrder: 3,
			SystemPrompt:  "You keep the discussion on track.",
		},
	}
}

// SeedMeeting 写入一场指定状态的会议及其参会者
func SeedMeeting(t *testing.T, db *gorm.DB, status meeting.Status, participants func(meetingID string) []meeting.Participant) (*meeting.Meeting, []meeting.Participant) {
	t.Helper()
	ctx := context.Background()
	repo := store.NewRepository(db, nil)

	m := &meeting.Meeting{
		WorkspaceID: DefaultWorkspace,
		Title:       "Q3 pricing review",
		Topic:       "Should we raise prices for the team plan?",
		Objectives:  "Reach a recommendation with owners.",
		MeetingType: "decision",
		Status:      status,
	}
	require.NoError(t, repo.CreateMeeting(ctx, m))

	var ps []meeting.Participant
	if participants != nil {
		ps = participants(m.ID)
	}
	for i := range ps {
		require.NoError(t, repo.AddParticipant(ctx, ps[i]))
		if ps[i].Role == "" {
			ps[i].Role = meeting.ClassifyRole(ps[i].RoleLabel, ps[i].Name)
		}
	}
	return m, ps
}
