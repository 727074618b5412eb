package normalize

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestNormalizeScenarios(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		structured bool
		wantConv   string
		wantCode   string
	}{
		{
			name:       "fenced json",
			input:      "```json\n{\"conversation\": \"Nope.\", \"code\": \"<div>Hi</div>\"}\n```",
			structured: true,
			wantConv:   "Nope.",
			wantCode:   "<div>Hi</div>",
		},
		{
			name:       "reasoning then bare object",
			input:      "<think>reasoning...</think>{\"conversation\":\"Ha.\",\"code\":\"<p>X</p>\"}",
			structured: true,
			wantConv:   "Ha.",
			wantCode:   "<p>X</p>",
		},
		{
			name:       "bare object inside prose",
			input:      "Sure! {\"conversation\": \"Done\", \"code\": \"<b>A\\nB</b>\"} thanks",
			structured: true,
			wantConv:   "Done",
			wantCode:   "<b>A\nB</b>",
		},
		{
			name:     "no json at all",
			input:    "I cannot comply with that request.",
			wantConv: "I cannot comply with that request.",
			wantCode: "I cannot comply with that request.",
		},
		{
			name:     "fenced json missing code",
			input:    "```json\n{\"conversation\": \"Hi\"}\n```",
			wantConv: "```json\n{\"conversation\": \"Hi\"}\n```",
			wantCode: "```json\n{\"conversation\": \"Hi\"}\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got.Structured() != tt.structured {
				t.Fatalf("structured=%v, want %v (result %+v)", got.Structured(), tt.structured, got)
			}
			if got.Conversation() != tt.wantConv {
				t.Errorf("conversation=%q, want %q", got.Conversation(), tt.wantConv)
			}
			if got.Code() != tt.wantCode {
				t.Errorf("code=%q, want %q", got.Code(), tt.wantCode)
			}
		})
	}
}

func TestNormalizeUnescapesLiteralNewlines(t *testing.T) {
	input := "```json\n" + `{"conversation": "Fine.", "code": "<ul>\\n<li>a</li>\\n</ul>"}` + "\n```"
	got := Normalize(input)
	if !got.Structured() {
		t.Fatalf("expected structured result, got %+v", got)
	}
	want := "<ul>\n<li>a</li>\n</ul>"
	if got.Code() != want {
		t.Fatalf("code=%q, want %q", got.Code(), want)
	}
	if strings.Contains(got.Code(), `\n`) {
		t.Fatalf("code still contains a literal escape: %q", got.Code())
	}
}

func TestNormalizeFencedAndBareAgree(t *testing.T) {
	payloads := []string{
		`{"code": "<button>No</button>", "conversation": "Here is a label instead."}`,
		`{"meta":{"k":1},"conversation":"a","code":"b"}`,
		`{"title":"{x}","conversation":"a","code":"<p>{b}</p>"}`,
	}
	for _, payload := range payloads {
		fenced := Normalize("Okay:\n```json\n" + payload + "\n```\nEnjoy.")
		bare := Normalize("Okay: " + payload)
		if !fenced.Structured() || !bare.Structured() {
			t.Fatalf("%s: expected both structured, got fenced=%v bare=%v", payload, fenced.Kind, bare.Kind)
		}
		if fenced.Reply != bare.Reply {
			t.Fatalf("%s: fenced=%+v, bare=%+v", payload, fenced.Reply, bare.Reply)
		}
		if fenced.Strategy != StrategyFenced || bare.Strategy != StrategyBareObject {
			t.Fatalf("%s: strategies=%q/%q", payload, fenced.Strategy, bare.Strategy)
		}
	}
}

func TestNormalizeReasoningNeverLeaks(t *testing.T) {
	inputs := []string{
		"<think>the user wants a blue square</think>\n```json\n{\"conversation\":\"Red circle.\",\"code\":\"<div class=c></div>\"}\n```",
		"<think>plan: make it green</think> {\"conversation\":\"Green.\",\"code\":\"<p>green</p>\"}",
	}
	for _, input := range inputs {
		got := Normalize(input)
		if !got.Structured() {
			t.Fatalf("expected structured result for %q", input)
		}
		for _, field := range []string{got.Conversation(), got.Code()} {
			if strings.Contains(field, "<think>") || strings.Contains(field, "blue square") || strings.Contains(field, "plan:") {
				t.Fatalf("reasoning leaked into %q", field)
			}
		}
	}
}

func TestNormalizeFallbackUsesStrippedText(t *testing.T) {
	got := Normalize("<think>hmm</think>\n  Just prose, no payload.  ")
	if got.Structured() {
		t.Fatalf("expected fallback, got %+v", got)
	}
	want := "Just prose, no payload."
	if got.Code() != want || got.Conversation() != want {
		t.Fatalf("code=%q conversation=%q, want %q", got.Code(), got.Conversation(), want)
	}
}

func TestNormalizeFallbackTotality(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"plain prose",
		"{",
		"}",
		"{\"conversation\": \"x\", \"code\": ",
		"```json\nnot json\n```",
		"\x00\xff\xfe{\"code\"}\x01",
		`{"conversation": 1, "code": "<p>x</p>"}`,
		`{"conversation": "", "code": "<p>x</p>"}`,
		`["conversation", "code"]`,
	}
	for _, input := range inputs {
		got := Normalize(input)
		if got.Structured() {
			t.Fatalf("expected fallback for %q, got %+v", input, got)
		}
		want := StripReasoning(input, DefaultReasoningTags)
		if got.Code() != want || got.Conversation() != want {
			t.Fatalf("input %q: code=%q conversation=%q, want %q", input, got.Code(), got.Conversation(), want)
		}
	}
}

func TestNormalizeFencedFailureDoesNotTryBareObject(t *testing.T) {
	input := "```json\n{broken}\n```\n{\"conversation\":\"a\",\"code\":\"b\"}"
	got := Normalize(input)
	if got.Structured() {
		t.Fatalf("expected fallback once the fenced candidate fails, got %+v", got)
	}
	if got.Strategy != StrategyFenced {
		t.Fatalf("strategy=%q, want %q", got.Strategy, StrategyFenced)
	}
}

func TestNormalizerCustomTags(t *testing.T) {
	n := New(Options{Tags: ReasoningTags{Open: "<reasoning>", Close: "</reasoning>"}})
	got := n.Normalize(`<reasoning>x</reasoning>{"conversation":"c","code":"d"}`)
	if !got.Structured() || got.Code() != "d" {
		t.Fatalf("got %+v", got)
	}
}

func TestNormalizerLogsPath(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	n := New(Options{Logger: logrus.NewEntry(logger)})

	n.Normalize("no payload here")
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Message != "no JSON candidate found" {
		t.Fatalf("message=%q", entry.Message)
	}
	if entry.Data["component"] != "normalize" {
		t.Fatalf("component=%v", entry.Data["component"])
	}

	hook.Reset()
	n.Normalize(`{"conversation":"a","code":"b"}`)
	entry = hook.LastEntry()
	if entry == nil || entry.Data["strategy"] != StrategyBareObject {
		t.Fatalf("expected bare_object strategy in log, got %+v", entry)
	}
}

func FuzzNormalize(f *testing.F) {
	seeds := []string{
		"",
		"```json\n{\"conversation\": \"Nope.\", \"code\": \"<div>Hi</div>\"}\n```",
		"<think>x</think>{\"conversation\":\"Ha.\",\"code\":\"<p>X</p>\"}",
		"Sure! {\"conversation\": \"Done\", \"code\": \"<b>A\\nB</b>\"} thanks",
		"<think>unterminated",
		"{\"code\":\"\\\\n\",\"conversation\":\"z\"}",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, input string) {
		got := Normalize(input)
		if got.Structured() {
			if got.Conversation() == "" || got.Code() == "" {
				t.Fatalf("structured result with empty field: %+v", got)
			}
			if strings.Contains(got.Code(), `\n`) {
				t.Fatalf("structured code keeps a literal escape: %q", got.Code())
			}
			return
		}
		want := StripReasoning(input, DefaultReasoningTags)
		if got.Code() != want || got.Conversation() != want {
			t.Fatalf("fallback mismatch for %q", input)
		}
	})
}
