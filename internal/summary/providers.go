package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	miniMaxSystemPrompt = "You are a helpful assistant that outputs JSON."
	miniMaxMaxTokens    = 1000

	maxErrorBody = 2048
)

type chatMessage struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
}

type miniMaxRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Reply    string `json:"reply"`
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

func (r *chatResponse) content() string {
	if len(r.Choices) > 0 && strings.TrimSpace(r.Choices[0].Message.Content) != "" {
		return r.Choices[0].Message.Content
	}
	return r.Reply
}

// openAIEndpoint appends /chat/completions unless the base URL already
// points at a completion endpoint.
func openAIEndpoint(baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

func (g *Generator) callOpenAI(ctx context.Context, cfg Config, prompt string, jsonMode bool, maxTokens int) (string, error) {
	req := openAIRequest{
		Model:     cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	}
	if jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	if err := g.post(ctx, openAIEndpoint(cfg.BaseURL), cfg.APIKey, req, &resp); err != nil {
		return "", err
	}
	content := resp.content()
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (g *Generator) callMiniMax(ctx context.Context, cfg Config, system, prompt string, maxTokens int) (string, error) {
	req := miniMaxRequest{
		Model: cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Name: "MiniMax AI", Content: system},
			{Role: "user", Name: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	}

	var resp chatResponse
	if err := g.post(ctx, cfg.BaseURL, cfg.APIKey, req, &resp); err != nil {
		return "", err
	}
	content := resp.content()
	if strings.TrimSpace(content) == "" {
		if resp.BaseResp.StatusMsg != "" {
			return "", fmt.Errorf("%w: %s", ErrEmptyResponse, resp.BaseResp.StatusMsg)
		}
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (g *Generator) post(ctx context.Context, url, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
