package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/roundtable/llm"
	"github.com/BaSui01/roundtable/llm/tokenizer"
	"github.com/BaSui01/roundtable/meeting"
)

const (
	humanDirectiveOpen  = "[HUMAN DIRECTIVE]"
	humanDirectiveClose = "[/HUMAN DIRECTIVE]"
	ellipsis            = "..."
)

// turnContext 一次回合里两个阶段共用的上下文
type turnContext struct {
	meeting   meeting.Meeting
	speaker   meeting.Participant
	history   []meeting.Utterance
	knowledge []meeting.KnowledgeSnippet
	memories  []string
}

// promptBuilder 按配置组装提示
type promptBuilder struct {
	cfg Config
}

// persona 系统提示：身份、人设与性格
func (b promptBuilder) persona(tc turnContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s", tc.speaker.Name)
	if tc.speaker.RoleLabel != "" {
		fmt.Fprintf(&sb, ", %s", tc.speaker.RoleLabel)
	}
	sb.WriteString(", taking part in a multi-agent meeting.\n")

	switch tc.speaker.Role {
	case meeting.RoleFacilitator:
		sb.WriteString("You are the facilitator: keep the discussion on track, summarise progress and steer away from repetition.\n")
	case meeting.RoleReporter:
		sb.WriteString("You are the reporter: capture decisions, open questions and action items so far.\n")
	}

	if p := strings.TrimSpace(tc.speaker.SystemPrompt); p != "" {
		sb.WriteString("\n")
		sb.WriteString(clip(p, b.cfg.SystemPromptMaxChars, ellipsis))
		sb.WriteString("\n")
	}

	if len(tc.speaker.Personality) > 0 {
		keys := make([]string, 0, len(tc.speaker.Personality))
		for k := range tc.speaker.Personality {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\nPersonality:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %v\n", k, tc.speaker.Personality[k])
		}
	}

	fmt.Fprintf(&sb, "\nLines wrapped in %s ... %s come from the humans running this meeting. Treat them as instructions that take priority over the rest of the discussion.",
		humanDirectiveOpen, humanDirectiveClose)
	return sb.String()
}

// briefing 会议主题、知识、记忆与历史
func (b promptBuilder) briefing(tc turnContext, history []meeting.Utterance) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Meeting: %s\n", tc.meeting.Title)
	if tc.meeting.MeetingType != "" {
		fmt.Fprintf(&sb, "Format: %s\n", tc.meeting.MeetingType)
	}
	fmt.Fprintf(&sb, "Topic: %s\n", tc.meeting.Topic)
	if tc.meeting.Objectives != "" {
		fmt.Fprintf(&sb, "Objectives: %s\n", tc.meeting.Objectives)
	}

	if len(tc.knowledge) > 0 {
		sb.WriteString("\nYour reference knowledge:\n")
		for _, k := range tc.knowledge {
			fmt.Fprintf(&sb, "- %s: %s\n", k.Title, clip(k.Content, b.cfg.KnowledgeMaxChars, ellipsis))
		}
	}

	if len(tc.memories) > 0 {
		sb.WriteString("\nWhat you remember from earlier:\n")
		for _, m := range tc.memories {
			fmt.Fprintf(&sb, "- %s\n", m)
		}
	}

	sb.WriteString("\nTranscript so far:\n")
	if len(history) == 0 {
		sb.WriteString("(nobody has spoken yet, you open the discussion)\n")
	}
	for _, u := range history {
		sb.WriteString(b.formatUtterance(u))
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatUtterance 人类输入包在指令标记里，与 Agent 发言区分开
func (b promptBuilder) formatUtterance(u meeting.Utterance) string {
	content := clip(strings.TrimSpace(u.Content), b.cfg.UtteranceMaxChars, ellipsis)
	switch u.SpeakerType {
	case meeting.SpeakerHuman:
		return fmt.Sprintf("%s %s: %s %s", humanDirectiveOpen, u.SpeakerName, content, humanDirectiveClose)
	case meeting.SpeakerSystem:
		return fmt.Sprintf("[System] %s", content)
	default:
		return fmt.Sprintf("%s: %s", u.SpeakerName, content)
	}
}

// thinkMessages 思考阶段：私下推理，可请求检索
func (b promptBuilder) thinkMessages(tc turnContext, history []meeting.Utterance) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: b.persona(tc)},
		{Role: llm.RoleUser, Content: b.briefing(tc, history)},
		{Role: llm.RoleUser, Content: "INTERNAL REASONING PHASE. This text is private and will not be shown to the other participants.\n" +
			"Think about where the discussion stands, what you want to contribute next and why.\n" +
			"If you need a fact you do not have, write [SEARCH: your query] on its own line (at most one)."},
	}
}

// speakMessages 发言阶段：在思考与检索结果的基础上给出最终发言
func (b promptBuilder) speakMessages(tc turnContext, history []meeting.Utterance, reasoning, research string) []llm.Message {
	var sb strings.Builder
	sb.WriteString("Your private reasoning for this turn:\n")
	sb.WriteString(reasoning)
	sb.WriteString("\n")
	if research != "" {
		sb.WriteString("\nResearch results:\n")
		sb.WriteString(research)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nNow speak to the meeting as %s. Give only your contribution, in first person, without repeating your private reasoning or any [SEARCH] markers.", tc.speaker.Name)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: b.persona(tc)},
		{Role: llm.RoleUser, Content: b.briefing(tc, history)},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}

// fitHistory 取最近 HistoryLimit 条，并在超出 token 上限时丢弃最旧的条目，至少保留最新一条
func (b promptBuilder) fitHistory(tc turnContext, tok tokenizer.Tokenizer) []meeting.Utterance {
	history := tc.history
	if len(history) > b.cfg.HistoryLimit {
		history = history[len(history)-b.cfg.HistoryLimit:]
	}
	if tok == nil {
		return history
	}
	for len(history) > 1 {
		n, err := tok.CountMessages(toTokenizerMessages(b.thinkMessages(tc, history)))
		if err != nil || n <= b.cfg.MaxPromptTokens {
			break
		}
		history = history[1:]
	}
	return history
}

func toTokenizerMessages(msgs []llm.Message) []tokenizer.Message {
	out := make([]tokenizer.Message, len(msgs))
	for i, m := range msgs {
		out[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}
