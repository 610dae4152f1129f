// Package events 负责把会议进度与新发言推送给实时订阅者。
//
// 编排器只依赖 Sink 接口；Broadcaster 用有界队列与独立的投递协程实现它，
// 发布永不阻塞，队列满时丢弃事件并计数。Hub 把某场会议的事件流转发到 WebSocket 连接。
package events

import (
	"time"

	"github.com/BaSui01/roundtable/meeting"
)

// Type 事件类型
type Type string

const (
	TypeTranscript       Type = "transcript"
	TypeAgentThinking    Type = "agent_thinking"
	TypeAgentResearching Type = "agent_researching"
	TypeMeetingStatus    Type = "meeting_status"
)

// UtterancePayload 推送给客户端的发言
type UtterancePayload struct {
	ID             string    `json:"id"`
	SequenceNumber int64     `json:"sequence_number"`
	SpeakerType    string    `json:"speaker_type"`
	SpeakerID      string    `json:"speaker_id"`
	SpeakerName    string    `json:"speaker_name"`
	Content        string    `json:"content"`
	ContentType    string    `json:"content_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// Event 一条实时事件
type Event struct {
	Type      Type              `json:"type"`
	MeetingID string            `json:"meeting_id"`
	AgentID   string            `json:"agent_id,omitempty"`
	AgentName string            `json:"agent_name,omitempty"`
	Utterance *UtterancePayload `json:"utterance,omitempty"`
	Status    string            `json:"status,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Sink 事件出口。Publish 必须立即返回，投递是尽力而为的。
type Sink interface {
	Publish(e Event)
}

// NopSink 丢弃所有事件
type NopSink struct{}

// Publish 实现 Sink
func (NopSink) Publish(Event) {}

// Transcript 构造新发言事件
func Transcript(u meeting.Utterance) Event {
	return Event{
		Type:      TypeTranscript,
		MeetingID: u.MeetingID,
		Utterance: &UtterancePayload{
			ID:             u.ID,
			SequenceNumber: u.SequenceNumber,
			SpeakerType:    string(u.SpeakerType),
			SpeakerID:      u.SpeakerID,
			SpeakerName:    u.SpeakerName,
			Content:        u.Content,
			ContentType:    string(u.ContentType),
			CreatedAt:      u.CreatedAt,
		},
		Timestamp: time.Now(),
	}
}

// Progress 构造 agent_thinking / agent_researching 进度事件
func Progress(t Type, meetingID string, p meeting.Participant) Event {
	return Event{
		Type:      t,
		MeetingID: meetingID,
		AgentID:   p.AgentID,
		AgentName: p.Name,
		Timestamp: time.Now(),
	}
}

// StatusChanged 构造会议状态变更事件
func StatusChanged(meetingID string, status meeting.Status) Event {
	return Event{
		Type:      TypeMeetingStatus,
		MeetingID: meetingID,
		Status:    string(status),
		Timestamp: time.Now(),
	}
}
