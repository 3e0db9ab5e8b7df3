package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kallisto-osint/osinter/config"
)

// OpenAIProvider calls any OpenAI-compatible chat-completions endpoint.
// Serves openai itself plus openrouter/together style gateways, which is how
// the alternate backends in the fallback chain are reached.
type OpenAIProvider struct {
	cfg    config.LLMProvider
	client *http.Client
}

// NewOpenAIProvider creates a provider from its configuration block.
func NewOpenAIProvider(cfg config.LLMProvider) *OpenAIProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *OpenAIProvider) Name() string { return p.cfg.Name }

// Complete sends one chat completion request and returns the response text.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	apiKey := p.cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return "", NewCallError(p.cfg.Name, NonRetryable, errors.New("api key not configured"))
	}

	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}

	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type chatReq struct {
		Model       string    `json:"model"`
		Messages    []chatMsg `json:"messages"`
		Temperature float64   `json:"temperature,omitempty"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}

	body, err := json.Marshal(chatReq{
		Model: p.cfg.Model,
		Messages: []chatMsg{
			{Role: "system", Content: "You are an OSINT research assistant."},
			{Role: "user", Content: prompt},
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", NewCallError(p.cfg.Name, NonRetryable, fmt.Errorf("marshal: %w", err))
	}

	baseURL := p.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", NewCallError(p.cfg.Name, NonRetryable, fmt.Errorf("request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		// transport failures and timeouts are retryable on the next provider
		return "", NewCallError(p.cfg.Name, Retryable, fmt.Errorf("do: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", NewCallError(p.cfg.Name, classifyStatus(resp.StatusCode), fmt.Errorf("status %d", resp.StatusCode))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", NewCallError(p.cfg.Name, Retryable, fmt.Errorf("decode: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", NewCallError(p.cfg.Name, Retryable, errors.New("no choices"))
	}
	return out.Choices[0].Message.Content, nil
}

// classifyStatus maps an HTTP status onto the normalized error taxonomy:
// throttling and server errors move on to the next provider as retryable,
// auth and malformed-request errors are recorded as non-retryable.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return Retryable
	case code >= 500:
		return Retryable
	default:
		return NonRetryable
	}
}
