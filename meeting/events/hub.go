package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// HubConfig WebSocket 转发配置
type HubConfig struct {
	// OriginPatterns 允许的跨域来源，为空时只接受同源
	OriginPatterns []string `yaml:"origin_patterns" json:"origin_patterns"`
	// WriteTimeout 单条消息写超时
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	// SubscriberBuffer 每个连接的缓冲
	SubscriberBuffer int `yaml:"subscriber_buffer" json:"subscriber_buffer"`
}

// Hub 把 Broadcaster 的事件转发到 WebSocket 连接
type Hub struct {
	broadcaster *Broadcaster
	config      HubConfig
	logger      *zap.Logger
}

// NewHub 创建 WebSocket 转发器
func NewHub(b *Broadcaster, config HubConfig, logger *zap.Logger) *Hub {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.SubscriberBuffer <= 0 {
		config.SubscriberBuffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		broadcaster: b,
		config:      config,
		logger:      logger.With(zap.String("component", "events_hub")),
	}
}

// Serve 升级连接并持续推送 meetingID 的事件，直到客户端断开或广播器关闭
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, meetingID string) error {
	// 长连接不受服务端读写超时约束
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.config.OriginPatterns,
	})
	if err != nil {
		return fmt.Errorf("websocket accept: %w", err)
	}
	defer conn.CloseNow()

	sub := h.broadcaster.Subscribe(meetingID, h.config.SubscriberBuffer)
	defer h.broadcaster.Unsubscribe(sub)

	// 只写不读；CloseRead 负责处理控制帧并在客户端断开时取消 ctx
	ctx := conn.CloseRead(r.Context())

	h.logger.Debug("subscriber connected", zap.String("meeting_id", meetingID))
	defer h.logger.Debug("subscriber disconnected",
		zap.String("meeting_id", meetingID),
		zap.Int64("dropped", sub.Dropped()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.C():
			if !ok {
				return conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
			if err := h.write(ctx, conn, e); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, h.config.WriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}
