package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/roundtable/meeting"
	"github.com/BaSui01/roundtable/meeting/events"
	"github.com/BaSui01/roundtable/types"
)

// =============================================================================
// 🔌 依赖接口
// =============================================================================

// TurnRunner 执行一个发言回合
type TurnRunner interface {
	RunTurn(ctx context.Context, meetingID, workspaceID, providerChoice string) (*meeting.TurnResult, error)
}

// MeetingStore 会议读取与状态迁移
type MeetingStore interface {
	GetMeeting(ctx context.Context, workspaceID, meetingID string) (*meeting.Meeting, error)
	UpdateStatus(ctx context.Context, workspaceID, meetingID string, to meeting.Status) (*meeting.Meeting, error)
}

// Transcript 会议记录读写
type Transcript interface {
	After(ctx context.Context, meetingID string, afterSeq int64, limit int) ([]meeting.Utterance, error)
	Append(ctx context.Context, meetingID string, speaker meeting.Speaker, content string) (meeting.Utterance, error)
}

// EventStream 把某场会议的实时事件推给一个连接
type EventStream interface {
	Serve(w http.ResponseWriter, r *http.Request, meetingID string) error
}

const (
	defaultTranscriptLimit = 100
	maxTranscriptLimit     = 500
	maxHumanContentChars   = 4000
)

// actionTargets 生命周期动作到目标状态
var actionTargets = map[string]meeting.Status{
	"start":  meeting.StatusInProgress,
	"resume": meeting.StatusInProgress,
	"pause":  meeting.StatusPaused,
	"end":    meeting.StatusCompleted,
	"cancel": meeting.StatusCancelled,
}

// =============================================================================
// 🗣️ MeetingHandler
// =============================================================================

// MeetingHandler 会议相关端点。只做协议适配，业务规则在编排器与仓储中。
type MeetingHandler struct {
	turns      TurnRunner
	meetings   MeetingStore
	transcript Transcript
	stream     EventStream
	sink       events.Sink
	logger     *zap.Logger
}

// NewMeetingHandler 创建会议处理器。sink 为 nil 时不发布事件，stream 为 nil 时事件端点返回 503。
func NewMeetingHandler(turns TurnRunner, meetings MeetingStore, transcript Transcript, stream EventStream, sink events.Sink, logger *zap.Logger) *MeetingHandler {
	if sink == nil {
		sink = events.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingHandler{
		turns:      turns,
		meetings:   meetings,
		transcript: transcript,
		stream:     stream,
		sink:       sink,
		logger:     logger.With(zap.String("component", "meeting_handler")),
	}
}

// Register 在 mux 上挂载全部会议路由
func (h *MeetingHandler) Register(mux *http.ServeMux) {
	const base = "/api/v1/workspaces/{workspace}/meetings/{meeting}"
	mux.HandleFunc("POST "+base+"/turns", h.HandleTurn)
	mux.HandleFunc("GET "+base+"/transcript", h.HandleTranscript)
	mux.HandleFunc("POST "+base+"/utterances", h.HandleHumanInput)
	mux.HandleFunc("POST "+base+"/{action}", h.HandleLifecycle)
	mux.HandleFunc("GET "+base+"/events", h.HandleEvents)
}

// TurnRequest 回合请求体
type TurnRequest struct {
	Provider string `json:"provider,omitempty"`
}

// HandleTurn POST .../turns
func (h *MeetingHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	workspaceID, meetingID, err := h.scope(r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	var req TurnRequest
	if err := DecodeJSONBody(r, &req, true); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.turns.RunTurn(r.Context(), meetingID, workspaceID, req.Provider)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, result)
}

// UtteranceView 对外的发言记录
type UtteranceView struct {
	ID             string `json:"id"`
	SequenceNumber int64  `json:"sequence_number"`
	SpeakerType    string `json:"speaker_type"`
	SpeakerID      string `json:"speaker_id,omitempty"`
	SpeakerName    string `json:"speaker_name"`
	Content        string `json:"content"`
	ContentType    string `json:"content_type"`
	CreatedAt      string `json:"created_at"`
}

func toView(u meeting.Utterance) UtteranceView {
	return UtteranceView{
		ID:             u.ID,
		SequenceNumber: u.SequenceNumber,
		SpeakerType:    string(u.SpeakerType),
		SpeakerID:      u.SpeakerID,
		SpeakerName:    u.SpeakerName,
		Content:        u.Content,
		ContentType:    string(u.ContentType),
		CreatedAt:      u.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// TranscriptPage 记录分页
type TranscriptPage struct {
	Utterances []UtteranceView `json:"utterances"`
	// NextAfter 下一页的 after 参数；没有更多时等于请求的 after
	NextAfter int64 `json:"next_after"`
}

// HandleTranscript GET .../transcript?after=N&limit=M
func (h *MeetingHandler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	workspaceID, meetingID, err := h.scope(r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	after, limit, err := parsePage(r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if _, err := h.meetings.GetMeeting(r.Context(), workspaceID, meetingID); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	utterances, err := h.transcript.After(r.Context(), meetingID, after, limit)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	page := TranscriptPage{Utterances: make([]UtteranceView, 0, len(utterances)), NextAfter: after}
	for _, u := range utterances {
		page.Utterances = append(page.Utterances, toView(u))
		page.NextAfter = u.SequenceNumber
	}
	WriteSuccess(w, r, page)
}

// HumanInputRequest 人类参会者发言
type HumanInputRequest struct {
	SpeakerID   string `json:"speaker_id,omitempty"`
	SpeakerName string `json:"speaker_name"`
	Content     string `json:"content"`
}

// HandleHumanInput POST .../utterances。人类发言进入同一条记录序列，但不计入 Agent 回合数。
func (h *MeetingHandler) HandleHumanInput(w http.ResponseWriter, r *http.Request) {
	workspaceID, meetingID, err := h.scope(r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	var req HumanInputRequest
	if err := DecodeJSONBody(r, &req, false); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	req.SpeakerName = strings.TrimSpace(req.SpeakerName)
	switch {
	case req.Content == "":
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "content is required", h.logger)
		return
	case len([]rune(req.Content)) > maxHumanContentChars:
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "content is too long", h.logger)
		return
	case req.SpeakerName == "":
		WriteErrorMessage(w, r, types.ErrInvalidRequest, "speaker_name is required", h.logger)
		return
	}

	m, err := h.meetings.GetMeeting(r.Context(), workspaceID, meetingID)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if m.Status != meeting.StatusInProgress {
		WriteErrorMessage(w, r, types.ErrMeetingNotActive, "meeting is not in progress", h.logger)
		return
	}

	u, err := h.transcript.Append(r.Context(), meetingID, meeting.Speaker{
		Type:        meeting.SpeakerHuman,
		ID:          req.SpeakerID,
		Name:        req.SpeakerName,
		ContentType: meeting.ContentSpeech,
	}, req.Content)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	h.sink.Publish(events.Transcript(u))
	WriteSuccess(w, r, toView(u))
}

// StatusView 生命周期动作的响应
type StatusView struct {
	MeetingID string `json:"meeting_id"`
	Status    string `json:"status"`
}

// HandleLifecycle POST .../{start|pause|resume|end|cancel}
func (h *MeetingHandler) HandleLifecycle(w http.ResponseWriter, r *http.Request) {
	workspaceID, meetingID, err := h.scope(r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	action := r.PathValue("action")
	to, ok := actionTargets[action]
	if !ok {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "unknown action").
			WithHTTPStatus(http.StatusNotFound), h.logger)
		return
	}

	m, err := h.meetings.UpdateStatus(r.Context(), workspaceID, meetingID, to)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	h.sink.Publish(events.StatusChanged(m.ID, m.Status))
	h.logger.Info("meeting lifecycle action",
		zap.String("meeting_id", meetingID),
		zap.String("action", action),
		zap.String("status", string(m.Status)))
	WriteSuccess(w, r, StatusView{MeetingID: m.ID, Status: string(m.Status)})
}

// HandleEvents GET .../events：升级为 WebSocket 并推送该会议的事件
func (h *MeetingHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		WriteErrorMessage(w, r, types.ErrServiceUnavailable, "event stream is disabled", h.logger)
		return
	}
	workspaceID, meetingID, err := h.scope(r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if _, err := h.meetings.GetMeeting(r.Context(), workspaceID, meetingID); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if err := h.stream.Serve(w, r, meetingID); err != nil {
		h.logger.Debug("event stream closed", zap.String("meeting_id", meetingID), zap.Error(err))
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// scope 解析路径上的工作区与会议。
// 鉴权中间件注入了工作区声明时，路径中的工作区必须与之一致。
func (h *MeetingHandler) scope(r *http.Request) (workspaceID, meetingID string, err error) {
	workspaceID = strings.TrimSpace(r.PathValue("workspace"))
	meetingID = r.PathValue("meeting")
	if workspaceID == "" {
		return "", "", types.NewError(types.ErrInvalidID, "invalid workspace id")
	}
	if claimed, ok := types.WorkspaceID(r.Context()); ok && claimed != workspaceID {
		return "", "", types.NewError(types.ErrForbidden, "workspace not permitted")
	}
	if _, perr := uuid.Parse(meetingID); perr != nil {
		return "", "", types.NewError(types.ErrInvalidID, "invalid meeting id")
	}
	return workspaceID, meetingID, nil
}

func parsePage(r *http.Request) (after int64, limit int, err error) {
	q := r.URL.Query()
	if v := q.Get("after"); v != "" {
		after, err = strconv.ParseInt(v, 10, 64)
		if err != nil || after < 0 {
			return 0, 0, types.NewError(types.ErrInvalidRequest, "after must be a non-negative integer")
		}
	}
	limit = defaultTranscriptLimit
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, types.NewError(types.ErrInvalidRequest, "limit must be a positive integer")
		}
		if limit > maxTranscriptLimit {
			limit = maxTranscriptLimit
		}
	}
	return after, limit, nil
}
