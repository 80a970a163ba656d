package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hn_insight/internal/domain"
)

const (
	ProviderOpenAI  = "openai"
	ProviderMiniMax = "minimax"

	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultMiniMaxBaseURL = "https://api.minimax.io/v1/text/chatcompletion_v2"
	DefaultMiniMaxModel   = "MiniMax-M2.1"

	DefaultTimeout = 120 * time.Second
)

var (
	ErrNoAPIKey        = errors.New("no api key configured")
	ErrInvalidAPIKey   = errors.New("api key contains non-ascii characters")
	ErrUnknownProvider = errors.New("unknown ai provider")
	ErrEmptyResponse   = errors.New("empty response from provider")
	ErrInvalidJSON     = errors.New("provider returned invalid json")
)

// Config selects a provider and its credentials. Zero fields are filled from
// the generator's process-wide defaults.
type Config struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	BaseURL  string `json:"baseUrl"`
	Model    string `json:"model"`
}

type ProviderDefaults struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Options struct {
	Provider string
	Timeout  time.Duration
	OpenAI   ProviderDefaults
	MiniMax  ProviderDefaults
}

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Body)
}

type Generator struct {
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Generator {
	if opts.Provider == "" {
		opts.Provider = ProviderOpenAI
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Generator{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger.With("component", "summary"),
	}
}

// Generate asks the resolved provider for a structured summary of story.
// Without a resolvable API key it returns ErrNoAPIKey and makes no request.
func (g *Generator) Generate(ctx context.Context, story domain.Item, commentDump, articleContent string, override *Config) (*domain.Summary, error) {
	cfg, err := g.resolve(override)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(story, commentDump, articleContent)
	g.logger.Debug("requesting summary",
		"story_id", story.ID,
		"provider", cfg.Provider,
		"model", cfg.Model,
		"prompt_chars", len(prompt),
	)

	var content string
	switch cfg.Provider {
	case ProviderMiniMax:
		content, err = g.callMiniMax(ctx, cfg, miniMaxSystemPrompt, prompt, miniMaxMaxTokens)
	default:
		content, err = g.callOpenAI(ctx, cfg, prompt, true, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("generate with %s: %w", cfg.Provider, err)
	}

	s, err := parseSummary(content, commentDump != "")
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", cfg.Provider, err)
	}
	s.StoryID = story.ID
	return s, nil
}

// resolve merges override over the defaults of the selected provider.
func (g *Generator) resolve(override *Config) (Config, error) {
	var cfg Config
	if override != nil {
		cfg = *override
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = g.opts.Provider
	}

	var defaults ProviderDefaults
	switch cfg.Provider {
	case ProviderOpenAI:
		defaults = g.opts.OpenAI
		if defaults.BaseURL == "" {
			defaults.BaseURL = DefaultOpenAIBaseURL
		}
		if defaults.Model == "" {
			defaults.Model = DefaultOpenAIModel
		}
	case ProviderMiniMax:
		defaults = g.opts.MiniMax
		if defaults.BaseURL == "" {
			defaults.BaseURL = DefaultMiniMaxBaseURL
		}
		if defaults.Model == "" {
			defaults.Model = DefaultMiniMaxModel
		}
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		cfg.APIKey = defaults.APIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}

	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("%w for provider %s", ErrNoAPIKey, cfg.Provider)
	}
	if !isASCII(cfg.APIKey) {
		return cfg, ErrInvalidAPIKey
	}
	return cfg, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}
