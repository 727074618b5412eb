package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/samsaffron/vibe-llm/internal/config"
)

func TestParseProviderModel(t *testing.T) {
	tests := []struct {
		in           string
		wantProvider string
		wantModel    string
		wantErr      bool
	}{
		{"groq", "groq", "", false},
		{"groq:llama-3.3-70b-versatile", "groq", "llama-3.3-70b-versatile", false},
		{"openrouter:qwen/qwq-32b", "openrouter", "qwen/qwq-32b", false},
		{"ollama:qwen3:8b", "ollama", "qwen3:8b", false},
		{" anthropic : claude-sonnet-4-5 ", "anthropic", "claude-sonnet-4-5", false},
		{"", "", "", true},
		{"nope:model", "", "", true},
	}
	for _, tt := range tests {
		provider, model, err := ParseProviderModel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseProviderModel(%q) err=%v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if provider != tt.wantProvider || model != tt.wantModel {
			t.Fatalf("ParseProviderModel(%q)=(%q,%q), want (%q,%q)", tt.in, provider, model, tt.wantProvider, tt.wantModel)
		}
	}
}

func TestNewProviderRequiresKeys(t *testing.T) {
	for _, name := range []string{"openai", "gemini", "groq", "openrouter"} {
		cfg := config.Default()
		cfg.Provider = name
		if _, err := NewProvider(cfg); err == nil || !strings.Contains(err.Error(), "API key") {
			t.Fatalf("%s: err=%v, want missing key error", name, err)
		}
	}

	cfg := config.Default()
	cfg.Provider = "openai-compat"
	if _, err := NewProvider(cfg); err == nil {
		t.Fatal("openai-compat without base_url should fail")
	}

	cfg.Provider = "bogus"
	if _, err := NewProvider(cfg); err == nil {
		t.Fatal("unknown provider should fail")
	}
}

func TestNewProviderWrapsWithRetry(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "groq"
	cfg.Groq.APIKey = "gsk_test"
	p, err := NewProvider(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*RetryProvider); !ok {
		t.Fatalf("provider type %T, want *RetryProvider", p)
	}
	if !strings.Contains(p.Name(), "qwen-qwq-32b") {
		t.Fatalf("name=%q", p.Name())
	}
}

func TestMockProviderFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "mock"
	p, err := NewProvider(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		stream, err := p.Stream(context.Background(), Request{Messages: []Message{UserText("hi")}})
		if err != nil {
			t.Fatal(err)
		}
		text, err := CollectText(stream)
		if err != nil || !strings.Contains(text, `"conversation"`) {
			t.Fatalf("text=%q err=%v", text, err)
		}
	}
}
