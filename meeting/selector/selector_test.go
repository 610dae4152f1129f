package selector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/roundtable/meeting"
	"github.com/BaSui01/roundtable/types"
)

func participant(id, name string, role meeting.Role, order int) meeting.Participant {
	return meeting.Participant{AgentID: id, Name: name, Role: role, SpeakingOrder: order}
}

func said(p meeting.Participant, content string) meeting.Utterance {
	return meeting.Utterance{SpeakerType: meeting.SpeakerAgent, SpeakerID: p.AgentID, SpeakerName: p.Name, Content: content}
}

var (
	alice = participant("a", "Alice", meeting.RoleParticipant, 1)
	bob   = participant("b", "Bob", meeting.RoleParticipant, 2)
	mod   = participant("m", "Mod", meeting.RoleFacilitator, 3)
	scri  = participant("r", "Scribe", meeting.RoleReporter, 4)
)

func TestSelectNext_ThreeParticipantScenario(t *testing.T) {
	s := New(DefaultConfig())
	ps := []meeting.Participant{mod, bob, alice}

	var history []meeting.Utterance
	expect := []struct {
		turn   int
		want   string
		reason Reason
	}{
		{1, "Alice", ReasonLeastSpoken},
		{2, "Bob", ReasonLeastSpoken},
		{3, "Alice", ReasonLeastSpoken},
		{4, "Mod", ReasonFacilitatorCadence},
		{5, "Bob", ReasonLeastSpoken},
	}
	for _, e := range expect {
		got, reason, ok := s.SelectNext(ps, history, e.turn)
		require.True(t, ok)
		assert.Equal(t, e.want, got.Name, "turn %d", e.turn)
		assert.Equal(t, e.reason, reason, "turn %d", e.turn)
		history = append(history, said(got, "short note"))
	}
}

func TestSelectNext_FacilitatorCadence(t *testing.T) {
	s := New(DefaultConfig())
	ps := []meeting.Participant{alice, bob, mod}

	for _, turn := range []int{4, 8, 12} {
		got, _, _ := s.SelectNext(ps, nil, turn)
		assert.Equal(t, "Mod", got.Name, "turn %d", turn)
	}
	for _, turn := range []int{1, 2, 3, 5, 6, 7} {
		got, _, _ := s.SelectNext(ps, nil, turn)
		assert.NotEqual(t, "Mod", got.Name, "turn %d", turn)
	}
}

func TestSelectNext_Turn8Priority(t *testing.T) {
	s := New(DefaultConfig())

	// 主持人规则优先于记录员规则
	got, reason, _ := s.SelectNext([]meeting.Participant{alice, mod, scri}, nil, 8)
	assert.Equal(t, "Mod", got.Name)
	assert.Equal(t, ReasonFacilitatorCadence, reason)

	// 没有主持人时第 8 回合由记录员发言，且记录员规则先于轮转
	got, reason, _ = s.SelectNext([]meeting.Participant{alice, bob, scri}, nil, 8)
	assert.Equal(t, "Scribe", got.Name)
	assert.Equal(t, ReasonReporterCadence, reason)

	got, _, _ = s.SelectNext([]meeting.Participant{alice, bob, scri}, nil, 4)
	assert.Equal(t, "Alice", got.Name)
}

func TestSelectNext_TurnOneNeverCadence(t *testing.T) {
	s := New(Config{FacilitatorInterval: 1, ReporterInterval: 1})
	got, reason, _ := s.SelectNext([]meeting.Participant{mod, scri, alice}, nil, 1)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, ReasonLeastSpoken, reason)
}

func TestSelectNext_FallbackToFirst(t *testing.T) {
	s := New(DefaultConfig())
	got, reason, ok := s.SelectNext([]meeting.Participant{scri, mod}, nil, 3)
	require.True(t, ok)
	assert.Equal(t, "Mod", got.Name)
	assert.Equal(t, ReasonFallback, reason)

	_, _, ok = s.SelectNext(nil, nil, 1)
	assert.False(t, ok)
}

func TestSelectNext_IgnoresHumanUtterances(t *testing.T) {
	s := New(DefaultConfig())
	history := []meeting.Utterance{
		said(alice, "x"),
		{SpeakerType: meeting.SpeakerHuman, SpeakerID: "b", Content: "from a human"},
	}
	got, _, _ := s.SelectNext([]meeting.Participant{alice, bob}, history, 3)
	assert.Equal(t, "Bob", got.Name)
}

func loopingHistory(speakers ...meeting.Participant) []meeting.Utterance {
	var h []meeting.Utterance
	for i := 0; i < 6; i++ {
		p := speakers[i%len(speakers)]
		h = append(h, said(p, fmt.Sprintf("Our pricing strategy for customers drives revenue and retention (%d).", i)))
	}
	return h
}

func TestDetectLoop(t *testing.T) {
	s := New(DefaultConfig())

	assert.True(t, s.DetectLoop(loopingHistory(alice, bob)))
	assert.False(t, s.DetectLoop(loopingHistory(alice, bob)[:5]), "fewer than window")

	// 恰好 3 个高频词不算循环
	var three []meeting.Utterance
	for i := 0; i < 6; i++ {
		three = append(three, said(alice, "pricing strategy customers price plan"))
	}
	assert.False(t, s.DetectLoop(three))

	// 只看最近窗口
	older := append(loopingHistory(alice, bob), said(alice, "fresh"), said(bob, "angle"), said(alice, "new"))
	assert.False(t, s.DetectLoop(older))
}

func TestDetectLoop_ConfigurableThresholds(t *testing.T) {
	s := New(Config{LoopWindow: 2, LoopMinFrequency: 2, LoopMinRepeatedWords: 1})
	h := []meeting.Utterance{
		said(alice, "budget timeline"),
		said(bob, "budget timeline"),
	}
	assert.True(t, s.DetectLoop(h))
}

func TestSelect_LoopOverrideForcesFacilitator(t *testing.T) {
	s := New(DefaultConfig())
	ps := []meeting.Participant{alice, bob, mod}

	d, err := s.Select(ps, loopingHistory(alice, bob), 7)
	require.NoError(t, err)
	assert.True(t, d.LoopDetected)
	assert.Equal(t, "Mod", d.Speaker.Name)
	assert.Equal(t, ReasonLoopOverride, d.Reason)

	// 已由节奏选中主持人时不覆盖
	d, err = s.Select(ps, loopingHistory(alice, bob), 8)
	require.NoError(t, err)
	assert.True(t, d.LoopDetected)
	assert.Equal(t, ReasonFacilitatorCadence, d.Reason)

	// 没有主持人时保持原选择
	d, err = s.Select([]meeting.Participant{alice, bob}, loopingHistory(alice, bob), 7)
	require.NoError(t, err)
	assert.True(t, d.LoopDetected)
	assert.Equal(t, ReasonLeastSpoken, d.Reason)
}

func TestSelect_NoParticipants(t *testing.T) {
	_, err := New(DefaultConfig()).Select(nil, nil, 1)
	assert.Equal(t, types.ErrNoParticipants, types.GetErrorCode(err))
}

func TestSelectNext_DoesNotMutateInput(t *testing.T) {
	ps := []meeting.Participant{mod, bob, alice}
	New(DefaultConfig()).SelectNext(ps, nil, 1)
	assert.Equal(t, []meeting.Participant{mod, bob, alice}, ps)
}
