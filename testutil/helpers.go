// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 上下文、通道与转录顺序相关的通用断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	testutil.AssertContiguousSequence(t, utterances)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BaSui01/roundtable/meeting"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertContiguousSequence 断言发言序号从 1 开始连续递增，且都属于同一会议
func AssertContiguousSequence(t *testing.T, utterances []meeting.Utterance) {
	t.Helper()

	for i, u := range utterances {
		if want := int64(i + 1); u.SequenceNumber != want {
			t.Errorf("utterance[%d] sequence mismatch: expected %d, got %d", i, want, u.SequenceNumber)
		}
		if u.MeetingID != utterances[0].MeetingID {
			t.Errorf("utterance[%d] belongs to meeting %q, expected %q", i, u.MeetingID, utterances[0].MeetingID)
		}
	}
}

// =============================================================================
// ⏳ 通道辅助
// =============================================================================

// WaitForChannel 在超时前从通道读取一个值
func WaitForChannel[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

// MustJSON 序列化失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
