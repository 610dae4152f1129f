package ledger

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/roundtable/meeting"
	"github.com/BaSui01/roundtable/meeting/store"
	"github.com/BaSui01/roundtable/testutil"
	"github.com/BaSui01/roundtable/testutil/fixtures"
	"github.com/BaSui01/roundtable/types"
)

func agentSpeaker(name string) meeting.Speaker {
	return meeting.Speaker{Type: meeting.SpeakerAgent, ID: uuid.NewString(), Name: name}
}

func TestLedger_AppendAssignsContiguousSequence(t *testing.T) {
	db := fixtures.NewDB(t)
	l := New(db, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	meetingID := uuid.NewString()

	for i := 1; i <= 3; i++ {
		u, err := l.Append(ctx, meetingID, agentSpeaker("Alice"), "point")
		require.NoError(t, err)
		assert.Equal(t, int64(i), u.SequenceNumber)
		assert.Equal(t, meeting.ContentSpeech, u.ContentType)
	}

	// 其他会议从 1 开始
	u, err := l.Append(ctx, uuid.NewString(), agentSpeaker("Bob"), "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.SequenceNumber)
}

func TestLedger_ConcurrentAppendsNoGapsNoDuplicates(t *testing.T) {
	db := fixtures.NewDB(t)
	l := New(db, NewLocalLocker(), zaptest.NewLogger(t))
	meetingA, meetingB := uuid.NewString(), uuid.NewString()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, mid := range []string{meetingA, meetingB} {
			wg.Add(1)
			go func(mid string) {
				defer wg.Done()
				_, err := l.Append(context.Background(), mid, agentSpeaker("Alice"), "concurrent")
				assert.NoError(t, err)
			}(mid)
		}
	}
	wg.Wait()

	for _, mid := range []string{meetingA, meetingB} {
		all, err := l.After(context.Background(), mid, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, n)
		testutil.AssertContiguousSequence(t, all)
	}
}

func TestLedger_InsertFailureCommitsNothing(t *testing.T) {
	db := fixtures.NewDB(t)
	var fail atomic.Bool
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_insert", func(tx *gorm.DB) {
		if fail.Load() {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	l := New(db, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	meetingID := uuid.NewString()

	fail.Store(true)
	_, err := l.Append(ctx, meetingID, agentSpeaker("Alice"), "lost")
	require.Error(t, err)
	assert.Equal(t, types.ErrCommitFailed, types.GetErrorCode(err))
	assert.NotContains(t, err.Error(), "disk full")
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Nil(t, typed.Cause)
	assert.Equal(t, http.StatusInternalServerError, typed.HTTPStatus)

	n, err := l.CountBySpeakerType(ctx, meetingID, meeting.SpeakerAgent)
	require.NoError(t, err)
	assert.Zero(t, n)

	fail.Store(false)
	u, err := l.Append(ctx, meetingID, agentSpeaker("Alice"), "kept")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.SequenceNumber)
}

func TestLedger_RollbackOnInsertError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(sequence_number), 0)`)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "utterances"`)).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	l := New(db, nil, zaptest.NewLogger(t))
	_, err = l.Append(context.Background(), uuid.NewString(), agentSpeaker("Alice"), "text")
	assert.Equal(t, types.ErrCommitFailed, types.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CancelledContextCommitsNothing(t *testing.T) {
	db := fixtures.NewDB(t)
	l := New(db, nil, zaptest.NewLogger(t))
	meetingID := uuid.NewString()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Append(ctx, meetingID, agentSpeaker("Alice"), "never")
	assert.Equal(t, types.ErrCommitFailed, types.GetErrorCode(err))

	n, err := l.CountBySpeakerType(context.Background(), meetingID, meeting.SpeakerAgent)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLedger_RejectsEmptyContent(t *testing.T) {
	l := New(fixtures.NewDB(t), nil, zaptest.NewLogger(t))
	_, err := l.Append(context.Background(), uuid.NewString(), agentSpeaker("Alice"), "  \n")
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestLedger_RecentAfterAndCount(t *testing.T) {
	db := fixtures.NewDB(t)
	l := New(db, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	meetingID := uuid.NewString()

	human := meeting.Speaker{Type: meeting.SpeakerHuman, Name: "Chair"}
	for i := 0; i < 5; i++ {
		sp := agentSpeaker("Alice")
		if i == 2 {
			sp = human
		}
		_, err := l.Append(ctx, meetingID, sp, "msg")
		require.NoError(t, err)
	}

	recent, err := l.Recent(ctx, meetingID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{recent[0].SequenceNumber, recent[1].SequenceNumber, recent[2].SequenceNumber})
	assert.True(t, recent[0].IsHuman())

	after, err := l.After(ctx, meetingID, 3, 1)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, int64(4), after[0].SequenceNumber)

	agents, err := l.CountBySpeakerType(ctx, meetingID, meeting.SpeakerAgent)
	require.NoError(t, err)
	assert.Equal(t, int64(4), agents)

	none, err := l.Recent(ctx, meetingID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// 确保 store 表结构包含唯一索引
func TestLedger_UniqueIndexBackstop(t *testing.T) {
	db := fixtures.NewDB(t)
	meetingID := uuid.NewString()

	rec := store.UtteranceRecord{ID: uuid.NewString(), MeetingID: meetingID, SequenceNumber: 1, SpeakerType: "agent", Content: "a", ContentType: "speech"}
	require.NoError(t, db.Create(&rec).Error)

	dup := rec
	dup.ID = uuid.NewString()
	assert.Error(t, db.Create(&dup).Error)
}
