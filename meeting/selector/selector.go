// Package selector 决定下一位发言者。
//
// 选择是输入的纯函数：相同的参会者、历史与回合号总是得到相同结果，不含随机性。
package selector

import (
	"sort"
	"strings"
	"unicode"

	"github.com/BaSui01/roundtable/meeting"
	"github.com/BaSui01/roundtable/types"
)

// Config 选择规则参数
type Config struct {
	// 主持人发言间隔（回合号能被整除时发言）
	FacilitatorInterval int `yaml:"facilitator_interval" json:"facilitator_interval"`
	// 记录员发言间隔
	ReporterInterval int `yaml:"reporter_interval" json:"reporter_interval"`

	// 循环检测窗口（最近 N 条发言，不足时不检测）
	LoopWindow int `yaml:"loop_window" json:"loop_window"`
	// 只统计长度大于该值的词
	LoopMinWordLength int `yaml:"loop_min_word_length" json:"loop_min_word_length"`
	// 词频阈值
	LoopMinFrequency int `yaml:"loop_min_frequency" json:"loop_min_frequency"`
	// 超过该数量的高频词即判定为循环
	LoopMinRepeatedWords int `yaml:"loop_min_repeated_words" json:"loop_min_repeated_words"`
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		FacilitatorInterval:  4,
		ReporterInterval:     8,
		LoopWindow:           6,
		LoopMinWordLength:    5,
		LoopMinFrequency:     4,
		LoopMinRepeatedWords: 3,
	}
}

// Reason 选择原因，用于日志与指标
type Reason string

const (
	ReasonFacilitatorCadence Reason = "facilitator_cadence"
	ReasonReporterCadence    Reason = "reporter_cadence"
	ReasonLeastSpoken        Reason = "least_spoken"
	ReasonFallback           Reason = "fallback"
	ReasonLoopOverride       Reason = "loop_override"
)

// Decision 一次选择的结果
type Decision struct {
	Speaker      meeting.Participant
	Reason       Reason
	LoopDetected bool
}

// Selector 发言者选择器
type Selector struct {
	config Config
}

// New 创建选择器，非正数参数使用默认值
func New(config Config) *Selector {
	def := DefaultConfig()
	if config.FacilitatorInterval <= 0 {
		config.FacilitatorInterval = def.FacilitatorInterval
	}
	if config.ReporterInterval <= 0 {
		config.ReporterInterval = def.ReporterInterval
	}
	if config.LoopWindow <= 0 {
		config.LoopWindow = def.LoopWindow
	}
	if config.LoopMinWordLength <= 0 {
		config.LoopMinWordLength = def.LoopMinWordLength
	}
	if config.LoopMinFrequency <= 0 {
		config.LoopMinFrequency = def.LoopMinFrequency
	}
	if config.LoopMinRepeatedWords <= 0 {
		config.LoopMinRepeatedWords = def.LoopMinRepeatedWords
	}
	return &Selector{config: config}
}

// Select 选择发言者并应用循环检测覆盖
func (s *Selector) Select(participants []meeting.Participant, history []meeting.Utterance, turn int) (Decision, error) {
	speaker, reason, ok := s.SelectNext(participants, history, turn)
	if !ok {
		return Decision{}, types.NewError(types.ErrNoParticipants, "meeting has no participants").
			WithHTTPStatus(types.HTTPStatusFor(types.ErrNoParticipants))
	}

	d := Decision{Speaker: speaker, Reason: reason}
	if !s.DetectLoop(history) {
		return d, nil
	}
	d.LoopDetected = true

	if facilitator, found := findRole(bySpeakingOrder(participants), meeting.RoleFacilitator); found && facilitator.AgentID != speaker.AgentID {
		d.Speaker = facilitator
		d.Reason = ReasonLoopOverride
	}
	return d, nil
}

// SelectNext 按优先级规则选择：
//  1. 主持人节奏
//  2. 记录员节奏
//  3. 普通参会者中发言最少者（并列时按发言顺序）
//  4. 兜底第一位参会者
func (s *Selector) SelectNext(participants []meeting.Participant, history []meeting.Utterance, turn int) (meeting.Participant, Reason, bool) {
	if len(participants) == 0 {
		return meeting.Participant{}, "", false
	}
	ordered := bySpeakingOrder(participants)

	if turn > 1 && turn%s.config.FacilitatorInterval == 0 {
		if p, ok := findRole(ordered, meeting.RoleFacilitator); ok {
			return p, ReasonFacilitatorCadence, true
		}
	}
	if turn > 1 && turn%s.config.ReporterInterval == 0 {
		if p, ok := findRole(ordered, meeting.RoleReporter); ok {
			return p, ReasonReporterCadence, true
		}
	}

	counts := make(map[string]int, len(history))
	for _, u := range history {
		if u.SpeakerType == meeting.SpeakerAgent {
			counts[u.SpeakerID]++
		}
	}

	var (
		best  meeting.Participant
		found bool
	)
	for _, p := range ordered {
		if p.Role == meeting.RoleFacilitator || p.Role == meeting.RoleReporter {
			continue
		}
		if !found || counts[p.AgentID] < counts[best.AgentID] {
			best = p
			found = true
		}
	}
	if found {
		return best, ReasonLeastSpoken, true
	}
	return ordered[0], ReasonFallback, true
}

// DetectLoop 词频启发式的停滞检测。
// 只看词汇重复，不理解语义；自然复用议题术语的讨论可能误判。
func (s *Selector) DetectLoop(history []meeting.Utterance) bool {
	if len(history) < s.config.LoopWindow {
		return false
	}
	window := history[len(history)-s.config.LoopWindow:]

	freq := make(map[string]int)
	for _, u := range window {
		for _, w := range tokenize(u.Content) {
			if len([]rune(w)) > s.config.LoopMinWordLength {
				freq[w]++
			}
		}
	}

	repeated := 0
	for _, n := range freq {
		if n >= s.config.LoopMinFrequency {
			repeated++
		}
	}
	return repeated > s.config.LoopMinRepeatedWords
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func findRole(participants []meeting.Participant, role meeting.Role) (meeting.Participant, bool) {
	for _, p := range participants {
		if p.Role == role {
			return p, true
		}
	}
	return meeting.Participant{}, false
}

// bySpeakingOrder 按发言顺序稳定排序，不修改入参
func bySpeakingOrder(participants []meeting.Participant) []meeting.Participant {
	out := make([]meeting.Participant, len(participants))
	copy(out, participants)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SpeakingOrder < out[j].SpeakingOrder
	})
	return out
}
