package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// httpClientTimeout is the default timeout for HTTP requests
const httpClientTimeout = 10 * time.Minute

// defaultHTTPClient is a shared HTTP client with reasonable timeouts
var defaultHTTPClient = &http.Client{
	Timeout: httpClientTimeout,
}

const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	GroqDefaultModel  = "qwen-qwq-32b"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OllamaBaseURL     = "http://localhost:11434/v1"
)

// OpenAICompatProvider implements Provider for OpenAI-compatible chat completion servers:
// Groq, OpenRouter, Ollama and anything else speaking the same SSE protocol.
type OpenAICompatProvider struct {
	baseURL string
	apiKey  string // optional, local servers ignore it
	model   string
	name    string // display name: "Groq", "Ollama", etc.
	headers map[string]string
	client  *http.Client
}

func NewOpenAICompatProvider(baseURL, apiKey, model, name string) *OpenAICompatProvider {
	return NewOpenAICompatProviderWithHeaders(baseURL, apiKey, model, name, nil)
}

func NewOpenAICompatProviderWithHeaders(baseURL, apiKey, model, name string, headers map[string]string) *OpenAICompatProvider {
	return &OpenAICompatProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		name:    name,
		headers: headers,
		client:  defaultHTTPClient,
	}
}

// NewGroqProvider creates a provider for Groq's OpenAI-compatible endpoint.
func NewGroqProvider(apiKey, model, baseURL string) *OpenAICompatProvider {
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}
	if model == "" {
		model = GroqDefaultModel
	}
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	return NewOpenAICompatProvider(baseURL, apiKey, model, "Groq")
}

// NewOpenRouterProvider creates a provider for OpenRouter. appURL and appTitle are sent
// as the attribution headers OpenRouter asks for.
func NewOpenRouterProvider(apiKey, model, appURL, appTitle string) *OpenAICompatProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return NewOpenAICompatProviderWithHeaders(OpenRouterBaseURL, apiKey, model, "OpenRouter", map[string]string{
		"HTTP-Referer": appURL,
		"X-Title":      appTitle,
	})
}

// NewOllamaProvider creates a provider for a local Ollama server.
func NewOllamaProvider(baseURL, model string) *OpenAICompatProvider {
	if baseURL == "" {
		baseURL = OllamaBaseURL
	}
	return NewOpenAICompatProvider(baseURL, "", model, "Ollama")
}

func (p *OpenAICompatProvider) Name() string {
	return fmt.Sprintf("%s (%s)", p.name, p.model)
}

func (p *OpenAICompatProvider) Credential() string {
	if p.apiKey == "" {
		return "none"
	}
	return "api_key"
}

// OpenAI-compatible request/response structures
type oaiChatRequest struct {
	Model         string            `json:"model"`
	Messages      []oaiMessage      `json:"messages"`
	Temperature   *float64          `json:"temperature,omitempty"`
	MaxTokens     *int              `json:"max_tokens,omitempty"`
	Stream        bool              `json:"stream,omitempty"`
	StreamOptions *oaiStreamOptions `json:"stream_options,omitempty"`
}

type oaiStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type oaiMessage struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
	Reasoning        string `json:"reasoning,omitempty"`
}

type oaiChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []oaiChoice  `json:"choices"`
	Usage   *oaiUsage    `json:"usage,omitempty"`
	XGroq   *oaiXGroq    `json:"x_groq,omitempty"`
	Error   *oaiAPIError `json:"error,omitempty"`
}

type oaiChoice struct {
	Index        int         `json:"index"`
	Delta        *oaiMessage `json:"delta,omitempty"`
	FinishReason string      `json:"finish_reason"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// oaiXGroq carries Groq's usage block, sent on the last chunk instead of "usage".
type oaiXGroq struct {
	Usage *oaiUsage `json:"usage,omitempty"`
}

type oaiAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Model listing structures
type oaiModelsResponse struct {
	Data []oaiModel `json:"data"`
}

type oaiModel struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

func (p *OpenAICompatProvider) makeRequest(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	url := p.baseURL + endpoint

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for key, value := range p.headers {
		if value == "" {
			continue
		}
		httpReq.Header.Set(key, value)
	}

	return p.client.Do(httpReq)
}

// ListModels returns available models from the server.
func (p *OpenAICompatProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := p.makeRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var modelsResp oaiModelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}

	models := make([]ModelInfo, len(modelsResp.Data))
	for i, m := range modelsResp.Data {
		models[i] = ModelInfo{ID: m.ID, Created: m.Created, OwnedBy: m.OwnedBy}
	}
	return models, nil
}

func (p *OpenAICompatProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		messages := buildCompatMessages(req.Messages)
		if len(messages) == 0 {
			return fmt.Errorf("no messages provided")
		}

		chatReq := oaiChatRequest{
			Model:         chooseModel(req.Model, p.model),
			Messages:      messages,
			Stream:        true,
			StreamOptions: &oaiStreamOptions{IncludeUsage: true},
		}
		if req.Temperature > 0 {
			v := float64(req.Temperature)
			chatReq.Temperature = &v
		}
		if req.MaxOutputTokens > 0 {
			v := req.MaxOutputTokens
			chatReq.MaxTokens = &v
		}

		if req.Debug {
			logStreamRequest(p.Name(), logrus.Fields{"url": p.baseURL + "/chat/completions", "messages": len(messages)})
		}

		body, err := json.Marshal(chatReq)
		if err != nil {
			return err
		}
		resp, err := p.makeRequest(ctx, http.MethodPost, "/chat/completions", body)
		if err != nil {
			return fmt.Errorf("%s API request failed: %w", p.name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			respBody, _ := io.ReadAll(resp.Body)
			return newRateLimitError(p.name, respBody, resp.Header)
		}
		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("%s API error (status %d): %s", p.name, resp.StatusCode, string(respBody))
		}

		return p.readSSE(resp.Body, events)
	}), nil
}

// readSSE consumes a chat completion event stream and emits text, reasoning and usage events.
func (p *OpenAICompatProvider) readSSE(body io.Reader, events chan<- Event) error {
	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var lastUsage *Usage
	var lastEventType string

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			lastEventType = strings.TrimPrefix(line, "event: ")
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chatResp oaiChatResponse
		if err := json.Unmarshal([]byte(data), &chatResp); err != nil {
			continue
		}

		if lastEventType == "error" || chatResp.Error != nil {
			errMsg := "unknown error"
			if chatResp.Error != nil {
				errMsg = chatResp.Error.Message
			}
			return fmt.Errorf("%s API error: %s", p.name, errMsg)
		}

		usage := chatResp.Usage
		if usage == nil && chatResp.XGroq != nil {
			usage = chatResp.XGroq.Usage
		}
		if usage != nil {
			lastUsage = &Usage{
				InputTokens:  usage.PromptTokens,
				OutputTokens: usage.CompletionTokens,
			}
		}

		for _, choice := range chatResp.Choices {
			if choice.Delta == nil {
				continue
			}
			if reasoning := choice.Delta.ReasoningContent + choice.Delta.Reasoning; reasoning != "" {
				events <- Event{Type: EventReasoningDelta, Text: reasoning}
			}
			if choice.Delta.Content != "" {
				events <- Event{Type: EventTextDelta, Text: choice.Delta.Content}
			}
		}

		lastEventType = ""
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s streaming error: %w", p.name, err)
	}

	if lastUsage != nil {
		events <- Event{Type: EventUsage, Use: lastUsage}
	}
	events <- Event{Type: EventDone}
	return nil
}

func buildCompatMessages(messages []Message) []oaiMessage {
	result := make([]oaiMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
			result = append(result, oaiMessage{Role: string(msg.Role), Content: msg.Text})
		}
	}
	return result
}
