package normalize

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Strategy identifies which extraction path produced a candidate.
type Strategy string

const (
	StrategyNone       Strategy = "none"
	StrategyFenced     Strategy = "fenced"
	StrategyBareObject Strategy = "bare_object"
)

const (
	conversationMarker = `"conversation"`
	codeMarker         = `"code"`
)

// fencedJSONRegex matches a ```json fenced block. The body is non-greedy so the first
// closing fence ends the block.
var fencedJSONRegex = regexp.MustCompile("(?s)```json\\n(.*?)\\n```")

// ExtractFenced returns the body of the first ```json fenced block in text.
func ExtractFenced(text string) (string, bool) {
	m := fencedJSONRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractBareObject recovers an unfenced JSON object from text. The candidate ends at the
// last '}' in text. Its start is the '{' nearest to the key markers whose span is valid JSON,
// trying every '{' before both the "conversation" and "code" markers from the closest one
// backwards. This yields the smallest valid object, so braces in nested values or inside
// strings ahead of the keys do not cut the object short.
//
// When no start gives valid JSON (for example trailing prose containing '}' after the
// object), the span from the closest '{' is returned; the parser then rejects it and the
// caller falls back.
func ExtractBareObject(text string) (string, bool) {
	end := strings.LastIndexByte(text, '}')
	if end < 0 {
		return "", false
	}
	body := text[:end]
	conv := strings.LastIndex(body, conversationMarker)
	code := strings.LastIndex(body, codeMarker)
	if conv < 0 || code < 0 {
		return "", false
	}
	limit := min(conv, code)
	nearest := strings.LastIndexByte(text[:limit], '{')
	if nearest < 0 {
		return "", false
	}
	for start := nearest; start >= 0; start = strings.LastIndexByte(text[:start], '{') {
		if candidate := text[start : end+1]; gjson.Valid(candidate) {
			return candidate, true
		}
	}
	return text[nearest : end+1], true
}

// ExtractCandidate tries the fenced form first and the bare-object form second.
func ExtractCandidate(text string) (string, Strategy, bool) {
	if candidate, ok := ExtractFenced(text); ok {
		return candidate, StrategyFenced, true
	}
	if candidate, ok := ExtractBareObject(text); ok {
		return candidate, StrategyBareObject, true
	}
	return "", StrategyNone, false
}
