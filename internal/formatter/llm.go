package formatter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1/chat/completions"

const systemPrompt = "You are a helpful Minecraft in-game assistant. " +
	"Write one short, factual tip grounded ONLY in the provided context. " +
	"Avoid spoilers beyond the context. Keep it under 1-2 sentences."

var errMissingAPIKey = errors.New("LLM_API_KEY is required")

type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxLength   int
}

// LLM paraphrases through an OpenAI-compatible chat completions endpoint.
type LLM struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	model       string
	temperature float64
	maxTokens   int
	fallback    Fallback
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewLLM(cfg LLMConfig) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, errMissingAPIKey
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 120
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &LLM{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		fallback:    Fallback{MaxLength: cfg.MaxLength},
	}, nil
}

// Format asks the model for a tip and falls back to the deterministic formatter on any error.
func (c *LLM) Format(ctx context.Context, query string, snippets []string) string {
	text, err := c.chat(ctx, query, snippets)
	if err != nil {
		log.Printf("[FORMAT] paraphrase failed, using fallback: %v", err)
		return c.fallback.Format(ctx, query, snippets)
	}
	max := c.fallback.MaxLength
	if max == 0 {
		max = DefaultMaxLength
	}
	return Trim(text, max)
}

func (c *LLM) chat(ctx context.Context, query string, snippets []string) (string, error) {
	if len(snippets) > 3 {
		snippets = snippets[:3]
	}
	user := fmt.Sprintf("Context:\n%s\n\nTip request: %s\n\nReturn only the tip text, no preamble.",
		strings.Join(snippets, "\n\n"), query)

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm error: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("llm returned empty text")
	}
	return text, nil
}
