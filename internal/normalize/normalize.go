// Package normalize recovers a structured {conversation, code} reply from free-form model
// output. Models are asked for a single JSON object but routinely wrap it in reasoning
// tags or code fences, escape its newlines, or ignore the format entirely; every one of
// those cases ends in either a structured Reply or the raw text.
package normalize

import (
	"github.com/sirupsen/logrus"
)

// Kind tags which variant a Result holds.
type Kind string

const (
	KindStructured Kind = "structured"
	KindFallback   Kind = "fallback"
)

// Result is the outcome of normalizing one assistant turn.
type Result struct {
	Kind     Kind
	Reply    Reply    // set when Kind == KindStructured
	Text     string   // reasoning-stripped text, set when Kind == KindFallback
	Strategy Strategy // extraction path that produced the candidate, if any
}

// Structured reports whether the reply was recovered from a JSON payload.
func (r Result) Structured() bool {
	return r.Kind == KindStructured
}

// Conversation returns the chat message to show for this result.
func (r Result) Conversation() string {
	if r.Structured() {
		return r.Reply.Conversation
	}
	return r.Text
}

// Code returns the markup to hand to the code view and preview.
func (r Result) Code() string {
	if r.Structured() {
		return r.Reply.Code
	}
	return r.Text
}

// Options configures a Normalizer.
type Options struct {
	Tags   ReasoningTags
	Logger *logrus.Entry
}

// Normalizer runs the stripping, extraction, parsing and unescaping stages.
// It holds no state between calls.
type Normalizer struct {
	tags ReasoningTags
	log  *logrus.Entry
}

// New creates a Normalizer. Zero-valued options fall back to the <think> tags and the
// standard logrus logger.
func New(opts Options) *Normalizer {
	tags := opts.Tags
	if !tags.valid() {
		tags = DefaultReasoningTags
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Normalizer{
		tags: tags,
		log:  log.WithField("component", "normalize"),
	}
}

var defaultNormalizer = New(Options{})

// Normalize runs raw through the default Normalizer.
func Normalize(raw string) Result {
	return defaultNormalizer.Normalize(raw)
}

// Normalize never fails: text that does not carry a usable payload comes back as a
// fallback Result whose conversation and code are both the reasoning-stripped text.
func (n *Normalizer) Normalize(raw string) (res Result) {
	stripped := StripReasoning(raw, n.tags)
	fallback := Result{Kind: KindFallback, Text: stripped, Strategy: StrategyNone}

	defer func() {
		if r := recover(); r != nil {
			n.log.WithField("panic", r).Error("normalize panicked, using raw text")
			res = fallback
		}
	}()

	candidate, strategy, ok := ExtractCandidate(stripped)
	if !ok {
		n.log.WithField("length", len(stripped)).Debug("no JSON candidate found")
		return fallback
	}

	reply, ok := ParsePayload(candidate)
	if !ok {
		n.log.WithFields(logrus.Fields{
			"strategy": strategy,
			"length":   len(candidate),
		}).Debug("candidate rejected")
		fallback.Strategy = strategy
		return fallback
	}

	reply.Code = UnescapeCode(reply.Code)
	n.log.WithField("strategy", strategy).Debug("structured reply recovered")
	return Result{Kind: KindStructured, Reply: reply, Strategy: strategy}
}
