package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/roundtable/meeting"
)

// =============================================================================
// 🗄️ GORM 表结构
// =============================================================================

// MeetingRecord meetings 表
type MeetingRecord struct {
	ID          string    `gorm:"primaryKey;size:36"`
	WorkspaceID string    `gorm:"size:64;not null;index:idx_meetings_workspace"`
	Title       string    `gorm:"size:255"`
	Topic       string    `gorm:"type:text"`
	Objectives  string    `gorm:"type:text"`
	MeetingType string    `gorm:"size:64"`
	Status      string    `gorm:"size:32;not null;default:draft"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 表名
func (MeetingRecord) TableName() string { return "meetings" }

// ParticipantRecord meeting_participants 表
type ParticipantRecord struct {
	ID            uint   `gorm:"primaryKey"`
	MeetingID     string `gorm:"size:36;not null;uniqueIndex:idx_participants_meeting_agent"`
	AgentID       string `gorm:"size:36;not null;uniqueIndex:idx_participants_meeting_agent"`
	Name          string `gorm:"size:255;not null"`
	RoleLabel     string `gorm:"size:128"`
	Role          string `gorm:"size:32;not null;default:participant"`
	SpeakingOrder int    `gorm:"default:0"`
	SystemPrompt  string `gorm:"type:text"`
	Personality   string `gorm:"type:text"`
	CreatedAt     time.Time
}

// TableName 表名
func (ParticipantRecord) TableName() string { return "meeting_participants" }

// UtteranceRecord utterances 表。(meeting_id, sequence_number) 唯一索引是序号不变量的最后一道防线。
type UtteranceRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	MeetingID      string `gorm:"size:36;not null;uniqueIndex:idx_utterances_meeting_seq,priority:1"`
	SequenceNumber int64  `gorm:"not null;uniqueIndex:idx_utterances_meeting_seq,priority:2"`
	SpeakerType    string `gorm:"size:16;not null"`
	SpeakerID      string `gorm:"size:36"`
	SpeakerName    string `gorm:"size:255"`
	Content        string `gorm:"type:text;not null"`
	ContentType    string `gorm:"size:16;not null;default:speech"`
	CreatedAt      time.Time
}

// TableName 表名
func (UtteranceRecord) TableName() string { return "utterances" }

// MemoryRecord agent_memories 表
type MemoryRecord struct {
	ID             string  `gorm:"primaryKey;size:36"`
	AgentID        string  `gorm:"size:36;not null;index:idx_memories_agent"`
	Content        string  `gorm:"type:text;not null"`
	Type           string  `gorm:"size:16;not null"`
	Importance     float64 `gorm:"not null;default:0.5"`
	MeetingID      string  `gorm:"size:36"`
	ExpiresAt      *time.Time
	LastAccessedAt *time.Time
	CreatedAt      time.Time
}

// TableName 表名
func (MemoryRecord) TableName() string { return "agent_memories" }

// KnowledgeRecord agent_knowledge 表（核心只读）
type KnowledgeRecord struct {
	ID        uint   `gorm:"primaryKey"`
	AgentID   string `gorm:"size:36;not null;index:idx_knowledge_agent"`
	Title     string `gorm:"size:255"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
}

// TableName 表名
func (KnowledgeRecord) TableName() string { return "agent_knowledge" }

// AutoMigrate 自动迁移全部表（开发与测试环境；生产使用 internal/migration）
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&MeetingRecord{},
		&ParticipantRecord{},
		&UtteranceRecord{},
		&MemoryRecord{},
		&KnowledgeRecord{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// =============================================================================
// 🔄 记录 ↔ 领域对象
// =============================================================================

// ToMeeting 转换为领域对象
func (r MeetingRecord) ToMeeting() *meeting.Meeting {
	return &meeting.Meeting{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		Title:       r.Title,
		Topic:       r.Topic,
		Objectives:  r.Objectives,
		MeetingType: r.MeetingType,
		Status:      meeting.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ToParticipant 转换为领域对象。Personality 解析失败时按空处理。
func (r ParticipantRecord) ToParticipant() meeting.Participant {
	var personality map[string]any
	if r.Personality != "" {
		_ = json.Unmarshal([]byte(r.Personality), &personality)
	}
	return meeting.Participant{
		AgentID:       r.AgentID,
		MeetingID:     r.MeetingID,
		Name:          r.Name,
		RoleLabel:     r.RoleLabel,
		Role:          meeting.Role(r.Role),
		SpeakingOrder: r.SpeakingOrder,
		SystemPrompt:  r.SystemPrompt,
		Personality:   personality,
	}
}

// ToUtterance 转换为领域对象
func (r UtteranceRecord) ToUtterance() meeting.Utterance {
	return meeting.Utterance{
		ID:             r.ID,
		MeetingID:      r.MeetingID,
		SequenceNumber: r.SequenceNumber,
		SpeakerType:    meeting.SpeakerType(r.SpeakerType),
		SpeakerID:      r.SpeakerID,
		SpeakerName:    r.SpeakerName,
		Content:        r.Content,
		ContentType:    meeting.ContentType(r.ContentType),
		CreatedAt:      r.CreatedAt,
	}
}

// ToMemoryEntry 转换为领域对象
func (r MemoryRecord) ToMemoryEntry() meeting.MemoryEntry {
	return meeting.MemoryEntry{
		ID:             r.ID,
		AgentID:        r.AgentID,
		Content:        r.Content,
		Type:           meeting.MemoryType(r.Type),
		Importance:     r.Importance,
		MeetingID:      r.MeetingID,
		ExpiresAt:      r.ExpiresAt,
		LastAccessedAt: r.LastAccessedAt,
		CreatedAt:      r.CreatedAt,
	}
}
