package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/roundtable/meeting"
	"github.com/BaSui01/roundtable/types"
)

// Repository 会议、参会者与知识片段的读写
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRepository 创建仓储
func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		db:     db,
		logger: logger.With(zap.String("component", "meeting_repository")),
	}
}

// ValidateID 校验 UUID 格式的标识符
func ValidateID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return types.NewError(types.ErrInvalidID, fmt.Sprintf("invalid %s id", kind)).
			WithHTTPStatus(types.HTTPStatusFor(types.ErrInvalidID))
	}
	return nil
}

// CreateMeeting 创建会议，未设置 ID/状态时自动补全
func (r *Repository) CreateMeeting(ctx context.Context, m *meeting.Meeting) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = meeting.StatusDraft
	}
	rec := MeetingRecord{
		ID:          m.ID,
		WorkspaceID: m.WorkspaceID,
		Title:       m.Title,
		Topic:       m.Topic,
		Objectives:  m.Objectives,
		MeetingType: m.MeetingType,
		Status:      string(m.Status),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	m.CreatedAt = rec.CreatedAt
	m.UpdatedAt = rec.UpdatedAt
	return nil
}

// GetMeeting 按工作区读取会议。会议不存在或不属于该工作区时返回 MEETING_NOT_FOUND。
func (r *Repository) GetMeeting(ctx context.Context, workspaceID, meetingID string) (*meeting.Meeting, error) {
	var rec MeetingRecord
	err := r.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", meetingID, workspaceID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrMeetingNotFound, "meeting not found").
			WithHTTPStatus(types.HTTPStatusFor(types.ErrMeetingNotFound))
	}
	if err != nil {
		return nil, fmt.Errorf("load meeting: %w", err)
	}
	return rec.ToMeeting(), nil
}

// ListParticipants 按发言顺序提示返回参会者
func (r *Repository) ListParticipants(ctx context.Context, meetingID string) ([]meeting.Participant, error) {
	var recs []ParticipantRecord
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("speaking_order ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	out := make([]meeting.Participant, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.ToParticipant())
	}
	return out, nil
}

// AddParticipant 把 Agent 加入会议。功能角色在此一次性确定。
func (r *Repository) AddParticipant(ctx context.Context, p meeting.Participant) error {
	if p.Role == "" {
		p.Role = meeting.ClassifyRole(p.RoleLabel, p.Name)
	}
	personality := ""
	if len(p.Personality) > 0 {
		data, err := json.Marshal(p.Personality)
		if err != nil {
			return fmt.Errorf("encode personality: %w", err)
		}
		personality = string(data)
	}
	rec := ParticipantRecord{
		MeetingID:     p.MeetingID,
		AgentID:       p.AgentID,
		Name:          p.Name,
		RoleLabel:     p.RoleLabel,
		Role:          string(p.Role),
		SpeakingOrder: p.SpeakingOrder,
		SystemPrompt:  p.SystemPrompt,
		Personality:   personality,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	r.logger.Debug("participant added",
		zap.String("meeting_id", p.MeetingID),
		zap.String("agent_id", p.AgentID),
		zap.String("role", string(p.Role)))
	return nil
}

// ListKnowledge 读取 Agent 的知识片段
func (r *Repository) ListKnowledge(ctx context.Context, agentID string, limit int) ([]meeting.KnowledgeSnippet, error) {
	if limit <= 0 {
		return nil, nil
	}
	var recs []KnowledgeRecord
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("id ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}
	out := make([]meeting.KnowledgeSnippet, 0, len(recs))
	for _, rec := range recs {
		out = append(out, meeting.KnowledgeSnippet{Title: rec.Title, Content: rec.Content})
	}
	return out, nil
}

// AddKnowledge 写入知识片段（由外部 CRUD 与测试使用）
func (r *Repository) AddKnowledge(ctx context.Context, agentID string, snippet meeting.KnowledgeSnippet) error {
	rec := KnowledgeRecord{AgentID: agentID, Title: snippet.Title, Content: snippet.Content}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("add knowledge: %w", err)
	}
	return nil
}

// UpdateStatus 执行会议状态迁移。
// 以当前状态作为条件更新（compare-and-set），并发迁移中只有一个能成功。
func (r *Repository) UpdateStatus(ctx context.Context, workspaceID, meetingID string, to meeting.Status) (*meeting.Meeting, error) {
	m, err := r.GetMeeting(ctx, workspaceID, meetingID)
	if err != nil {
		return nil, err
	}
	if !meeting.CanTransition(m.Status, to) {
		return nil, types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("cannot move meeting from %s to %s", m.Status, to)).
			WithHTTPStatus(types.HTTPStatusFor(types.ErrInvalidTransition))
	}

	res := r.db.WithContext(ctx).
		Model(&MeetingRecord{}).
		Where("id = ? AND workspace_id = ? AND status = ?", meetingID, workspaceID, string(m.Status)).
		Update("status", string(to))
	if res.Error != nil {
		return nil, fmt.Errorf("update meeting status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, types.NewError(types.ErrInvalidTransition, "meeting status changed concurrently").
			WithHTTPStatus(types.HTTPStatusFor(types.ErrInvalidTransition))
	}

	r.logger.Info("meeting status changed",
		zap.String("meeting_id", meetingID),
		zap.String("from", string(m.Status)),
		zap.String("to", string(to)))

	m.Status = to
	return m, nil
}
