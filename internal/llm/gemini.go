package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// GeminiProvider implements Provider using the Google Gemini API.
type GeminiProvider struct {
	apiKey         string
	model          string
	cred           string
	thinkingBudget *int32 // Gemini 2.5: 0 disables thinking
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	cred := "api_key"
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
		cred = "env"
	}
	p := &GeminiProvider{apiKey: apiKey, model: model, cred: cred}
	// Gemini 2.5 models think by default; the reply format asks for a bare payload instead.
	if strings.HasPrefix(model, "gemini-2.5") && !strings.HasSuffix(model, "-thinking") {
		zero := int32(0)
		p.thinkingBudget = &zero
	}
	p.model = strings.TrimSuffix(model, "-thinking")
	return p
}

func (p *GeminiProvider) Name() string {
	if p.thinkingBudget != nil {
		return fmt.Sprintf("Gemini (%s, thinkingBudget=%d)", p.model, *p.thinkingBudget)
	}
	return fmt.Sprintf("Gemini (%s)", p.model)
}

func (p *GeminiProvider) Credential() string {
	return p.cred
}

func (p *GeminiProvider) newClient(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey, Backend: genai.BackendGeminiAPI})
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		client, err := p.newClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create gemini client: %w", err)
		}

		system, contents := buildGeminiContents(req.Messages)
		if len(contents) == 0 {
			return fmt.Errorf("no user content provided")
		}

		config := &genai.GenerateContentConfig{}
		if system != "" {
			config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
		}
		if p.thinkingBudget != nil {
			config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: p.thinkingBudget}
		}
		if req.Temperature > 0 {
			temp := req.Temperature
			config.Temperature = &temp
		}
		if req.MaxOutputTokens > 0 {
			config.MaxOutputTokens = int32(req.MaxOutputTokens)
		}

		if req.Debug {
			logStreamRequest(p.Name(), logrus.Fields{"system": truncate(system, 200), "contents": len(contents)})
		}

		var lastResp *genai.GenerateContentResponse
		for resp, err := range client.Models.GenerateContentStream(ctx, chooseModel(req.Model, p.model), contents, config) {
			if err != nil {
				return fmt.Errorf("gemini streaming error: %w", err)
			}
			lastResp = resp
			if text := resp.Text(); text != "" {
				events <- Event{Type: EventTextDelta, Text: text}
			}
		}

		emitGeminiUsage(events, lastResp)
		events <- Event{Type: EventDone}
		return nil
	}), nil
}

func emitGeminiUsage(events chan<- Event, resp *genai.GenerateContentResponse) {
	if resp == nil || resp.UsageMetadata == nil {
		return
	}
	if resp.UsageMetadata.TotalTokenCount > 0 {
		events <- Event{Type: EventUsage, Use: &Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}}
	}
}

func buildGeminiContents(messages []Message) (string, []*genai.Content) {
	system, rest := splitSystem(messages)
	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		if msg.Text == "" {
			continue
		}
		switch msg.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleUser))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleModel))
		}
	}
	return system, contents
}
