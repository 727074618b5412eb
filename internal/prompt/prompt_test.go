package prompt

import (
	"strings"
	"testing"
)

func TestSystemPrompt(t *testing.T) {
	if got := SystemPrompt(""); got != VibeSystemPrompt {
		t.Fatal("empty instructions should use the built-in prompt")
	}
	if got := SystemPrompt("   \n"); got != VibeSystemPrompt {
		t.Fatal("blank instructions should use the built-in prompt")
	}
	if got := SystemPrompt("Be literal."); got != "Be literal." {
		t.Fatalf("got %q", got)
	}
}

func TestVibeSystemPromptAsksForPayload(t *testing.T) {
	for _, want := range []string{`"conversation"`, `"code"`, "opposite", "vibe coding", "2 sentences"} {
		if !strings.Contains(VibeSystemPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestUserPrompt(t *testing.T) {
	if got := UserPrompt("  make a blue square \n"); got != "make a blue square" {
		t.Fatalf("got %q", got)
	}
}
