package meeting

import (
	"strings"
	"time"
)

// =============================================================================
// 📋 会议
// =============================================================================

// Status 会议生命周期状态
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// transitions 合法的状态迁移表
var transitions = map[Status][]Status{
	StatusDraft:      {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusPaused, StatusCompleted, StatusCancelled},
	StatusPaused:     {StatusInProgress, StatusCompleted, StatusCancelled},
}

// CanTransition 判断状态迁移是否合法。completed 与 cancelled 为终态。
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal 是否为终态
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Meeting 会议（核心只读，仅检查状态前置条件）
type Meeting struct {
	ID          string
	WorkspaceID string
	Title       string
	Topic       string
	Objectives  string
	MeetingType string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// 👥 参会 Agent
// =============================================================================

// Role 参会者在会议中的功能角色，加入会议时确定
type Role string

const (
	RoleParticipant Role = "participant"
	RoleFacilitator Role = "facilitator"
	RoleReporter    Role = "reporter"
)

var (
	facilitatorMarkers = []string{"facilitator", "moderator"}
	reporterMarkers    = []string{"reporter", "scribe", "note-taker", "notetaker"}
)

// ClassifyRole 根据角色标签与名称推断功能角色。
// 只在 Agent 加入会议时调用一次，之后选择逻辑只读取 Role 枚举。
func ClassifyRole(roleLabel, name string) Role {
	label := strings.ToLower(roleLabel)
	lname := strings.ToLower(name)
	for _, m := range facilitatorMarkers {
		if strings.Contains(label, m) || strings.Contains(lname, m) {
			return RoleFacilitator
		}
	}
	for _, m := range reporterMarkers {
		if strings.Contains(label, m) || strings.Contains(lname, m) {
			return RoleReporter
		}
	}
	return RoleParticipant
}

// Participant 某个 Agent 在一场会议中扮演的角色，运行期间不可变
type Participant struct {
	AgentID       string
	MeetingID     string
	Name          string
	RoleLabel     string
	Role          Role
	SpeakingOrder int
	SystemPrompt  string
	Personality   map[string]any
}

// IsFacilitator 是否为主持人
func (p Participant) IsFacilitator() bool { return p.Role == RoleFacilitator }

// IsReporter 是否为记录员
func (p Participant) IsReporter() bool { return p.Role == RoleReporter }

// =============================================================================
// 💬 发言记录
// =============================================================================

// SpeakerType 发言者类型
type SpeakerType string

const (
	SpeakerAgent  SpeakerType = "agent"
	SpeakerHuman  SpeakerType = "human"
	SpeakerSystem SpeakerType = "system"
)

// ContentType 发言内容的粗粒度类型
type ContentType string

const (
	ContentSpeech ContentType = "speech"
	ContentSystem ContentType = "system"
	ContentAction ContentType = "action"
)

// Speaker 追加发言时的说话人信息
type Speaker struct {
	Type        SpeakerType
	ID          string
	Name        string
	ContentType ContentType
}

// Utterance 会议记录条目，只追加，不修改
type Utterance struct {
	ID             string
	MeetingID      string
	SequenceNumber int64
	SpeakerType    SpeakerType
	SpeakerID      string
	SpeakerName    string
	Content        string
	ContentType    ContentType
	CreatedAt      time.Time
}

// IsHuman 是否为人类输入
func (u Utterance) IsHuman() bool { return u.SpeakerType == SpeakerHuman }

// =============================================================================
// 🧠 记忆与知识
// =============================================================================

// MemoryType 记忆类型
type MemoryType string

const (
	MemoryEpisodic MemoryType = "episodic"
	MemorySemantic MemoryType = "semantic"
)

// MemoryEntry Agent 的一条持久记忆
type MemoryEntry struct {
	ID             string
	AgentID        string
	Content        string
	Type           MemoryType
	Importance     float64
	MeetingID      string
	ExpiresAt      *time.Time
	LastAccessedAt *time.Time
	CreatedAt      time.Time
}

// Expired 条目在 now 时刻是否已过期
func (e MemoryEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// KnowledgeSnippet 挂在 Agent 上的只读知识片段
type KnowledgeSnippet struct {
	Title   string
	Content string
}

// =============================================================================
// 🎯 回合结果
// =============================================================================

// TurnResult 一次成功回合的返回值
type TurnResult struct {
	SequenceNumber int64  `json:"sequence_number"`
	SpeakerName    string `json:"speaker_name"`
	SpeakerID      string `json:"speaker_id"`
	Content        string `json:"content"`
}
