package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/roundtable/meeting"
	"github.com/BaSui01/roundtable/meeting/store"
	"github.com/BaSui01/roundtable/types"
)

// Ledger 只追加的会议记录账本。
//
// 同一会议内 SequenceNumber 从 1 开始、严格递增、连续且不重复。
// 追加在 Locker 串行化下的单个事务中完成：读取当前最大序号，插入 max+1。
// (meeting_id, sequence_number) 唯一索引兜底。失败不重试，事务整体回滚。
type Ledger struct {
	db     *gorm.DB
	locker Locker
	logger *zap.Logger
}

// New 创建账本。locker 为 nil 时使用进程内锁。
func New(db *gorm.DB, locker Locker, logger *zap.Logger) *Ledger {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		db:     db,
		locker: locker,
		logger: logger.With(zap.String("component", "ledger")),
	}
}

// Append 追加一条发言并返回带序号的记录。
// 存储层错误统一为 COMMIT_FAILED，细节只写日志。
func (l *Ledger) Append(ctx context.Context, meetingID string, speaker meeting.Speaker, content string) (meeting.Utterance, error) {
	if strings.TrimSpace(content) == "" {
		return meeting.Utterance{}, types.NewError(types.ErrInvalidRequest, "utterance content is empty").
			WithHTTPStatus(types.HTTPStatusFor(types.ErrInvalidRequest))
	}
	if speaker.ContentType == "" {
		speaker.ContentType = meeting.ContentSpeech
	}

	unlock, err := l.locker.Lock(ctx, "ledger:"+meetingID)
	if err != nil {
		l.logger.Error("failed to acquire ledger lock",
			zap.String("meeting_id", meetingID), zap.Error(err))
		return meeting.Utterance{}, commitFailed()
	}
	defer unlock()

	rec := store.UtteranceRecord{
		ID:          uuid.NewString(),
		MeetingID:   meetingID,
		SpeakerType: string(speaker.Type),
		SpeakerID:   speaker.ID,
		SpeakerName: speaker.Name,
		Content:     content,
		ContentType: string(speaker.ContentType),
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&store.UtteranceRecord{}).
			Where("meeting_id = ?", meetingID).
			Select("COALESCE(MAX(sequence_number), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("read max sequence: %w", err)
		}
		rec.SequenceNumber = maxSeq + 1
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("insert utterance: %w", err)
		}
		return nil
	})
	if err != nil {
		l.logger.Error("ledger append failed",
			zap.String("meeting_id", meetingID),
			zap.String("speaker", speaker.Name),
			zap.Error(err))
		return meeting.Utterance{}, commitFailed()
	}

	l.logger.Debug("utterance appended",
		zap.String("meeting_id", meetingID),
		zap.Int64("sequence_number", rec.SequenceNumber),
		zap.String("speaker_type", rec.SpeakerType))

	return rec.ToUtterance(), nil
}

// Recent 返回最近 n 条发言，按序号升序
func (l *Ledger) Recent(ctx context.Context, meetingID string, n int) ([]meeting.Utterance, error) {
	if n <= 0 {
		return nil, nil
	}
	var recs []store.UtteranceRecord
	err := l.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("sequence_number DESC").
		Limit(n).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load recent utterances: %w", err)
	}

	out := make([]meeting.Utterance, len(recs))
	for i, rec := range recs {
		out[len(recs)-1-i] = rec.ToUtterance()
	}
	return out, nil
}

// After 返回序号大于 afterSeq 的发言，按序号升序，最多 limit 条
func (l *Ledger) After(ctx context.Context, meetingID string, afterSeq int64, limit int) ([]meeting.Utterance, error) {
	q := l.db.WithContext(ctx).
		Where("meeting_id = ? AND sequence_number > ?", meetingID, afterSeq).
		Order("sequence_number ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []store.UtteranceRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load utterances: %w", err)
	}

	out := make([]meeting.Utterance, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.ToUtterance())
	}
	return out, nil
}

// CountBySpeakerType 统计某类发言者的发言条数
func (l *Ledger) CountBySpeakerType(ctx context.Context, meetingID string, speakerType meeting.SpeakerType) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).
		Model(&store.UtteranceRecord{}).
		Where("meeting_id = ? AND speaker_type = ?", meetingID, string(speakerType)).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count utterances: %w", err)
	}
	return n, nil
}

// commitFailed 底层原因只进日志，不挂在返回的错误上
func commitFailed() error {
	return types.NewError(types.ErrCommitFailed, "failed to record utterance").
		WithHTTPStatus(types.HTTPStatusFor(types.ErrCommitFailed))
}
