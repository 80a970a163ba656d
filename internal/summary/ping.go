package summary

import (
	"context"
	"encoding/json"
	"fmt"
)

// Ping sends a minimal completion request to check that cfg reaches a
// working provider. The provider's raw answer is returned on success.
func (g *Generator) Ping(ctx context.Context, cfg Config) (json.RawMessage, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	resolved, err := g.resolve(&cfg)
	if err != nil {
		return nil, err
	}

	var body any
	url := resolved.BaseURL
	switch resolved.Provider {
	case ProviderMiniMax:
		body = miniMaxRequest{
			Model: resolved.Model,
			Messages: []chatMessage{
				{Role: "system", Name: "MiniMax AI", Content: "Ping"},
				{Role: "user", Name: "user", Content: "Hi"},
			},
			MaxTokens: 5,
		}
	default:
		url = openAIEndpoint(url)
		body = openAIRequest{
			Model:     resolved.Model,
			Messages:  []chatMessage{{Role: "user", Content: "Hi"}},
			MaxTokens: 5,
		}
	}

	var raw json.RawMessage
	if err := g.post(ctx, url, resolved.APIKey, body, &raw); err != nil {
		return nil, fmt.Errorf("ping %s: %w", resolved.Provider, err)
	}
	return raw, nil
}
