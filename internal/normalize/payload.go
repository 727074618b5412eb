package normalize

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Reply is a structured model answer: a short chat message and directly renderable markup.
type Reply struct {
	Conversation string `json:"conversation"`
	Code         string `json:"code"`
}

// ParsePayload parses a candidate JSON object. Both "conversation" and "code" must be
// non-empty strings; anything else (malformed JSON, non-object, missing or mistyped
// fields) reports false. When a key repeats, the last occurrence wins.
func ParsePayload(candidate string) (Reply, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || !gjson.Valid(candidate) {
		return Reply{}, false
	}
	root := gjson.Parse(candidate)
	if !root.IsObject() {
		return Reply{}, false
	}

	var reply Reply
	var haveConv, haveCode bool
	root.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "conversation":
			reply.Conversation = value.Str
			haveConv = value.Type == gjson.String
		case "code":
			reply.Code = value.Str
			haveCode = value.Type == gjson.String
		}
		return true
	})

	if !haveConv || !haveCode || reply.Conversation == "" || reply.Code == "" {
		return Reply{}, false
	}
	return reply, true
}
