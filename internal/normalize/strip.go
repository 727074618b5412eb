package normalize

import "strings"

// ReasoningTags delimits a "thinking" segment some models emit before their answer.
type ReasoningTags struct {
	Open  string
	Close string
}

// DefaultReasoningTags matches the <think>...</think> segment emitted by reasoning models
// such as qwen-qwq and deepseek-r1.
var DefaultReasoningTags = ReasoningTags{Open: "<think>", Close: "</think>"}

func (t ReasoningTags) valid() bool {
	return t.Open != "" && t.Close != ""
}

// StripReasoning removes the first complete reasoning segment from text and trims the
// surrounding whitespace. Text without a complete segment (no open tag, or an open tag
// with no close tag after it) is returned unchanged.
//
// Only the first segment is removed; later segments are left in place.
func StripReasoning(text string, tags ReasoningTags) string {
	if !tags.valid() {
		return text
	}
	start := strings.Index(text, tags.Open)
	if start < 0 {
		return text
	}
	end := strings.Index(text[start+len(tags.Open):], tags.Close)
	if end < 0 {
		return text
	}
	end += start + len(tags.Open) + len(tags.Close)
	return strings.TrimSpace(text[:start] + text[end:])
}
