// Package llm adapts hosted language models to the classifier, quest text
// and insights narration roles. Every caller treats a failure here as a cue
// to use its deterministic fallback.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/config"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultOpenAIModel    = "gpt-4o-mini"
)

// Completer sends one system+user exchange and returns the text reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// NewCompleter builds the completer for cfg.Provider. Provider "none"
// returns a nil Completer and no error.
func NewCompleter(cfg config.LLMConfig, logger *zap.Logger) (Completer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropic(cfg, logger), nil
	case "openai":
		if cfg.APIKey == "" && cfg.Endpoint == "" {
			return nil, fmt.Errorf("openai provider requires an API key or a custom endpoint")
		}
		return NewOpenAI(cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// Anthropic talks to the Messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewAnthropic creates an Anthropic completer.
func NewAnthropic(cfg config.LLMConfig, logger *zap.Logger) *Anthropic {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    logger.Named("llm"),
	}
}

func (a *Anthropic) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()
	start := time.Now()

	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    system,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		a.logger.Warn("anthropic request failed",
			zap.String("model", a.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			a.logger.Debug("anthropic request completed",
				zap.String("model", a.model),
				zap.Duration("elapsed", time.Since(start)))
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewOpenAI creates an OpenAI-compatible completer.
func NewOpenAI(cfg config.LLMConfig, logger *zap.Logger) *OpenAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    logger.Named("llm"),
	}
}

func (o *OpenAI) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxCompletionTokens: o.maxTokens,
	})
	if err != nil {
		o.logger.Warn("openai request failed",
			zap.String("model", o.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	o.logger.Debug("openai request completed",
		zap.String("model", o.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
