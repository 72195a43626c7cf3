// Package genai wraps an OpenAI-compatible chat completion API for generating
// sales replies. Any endpoint speaking the OpenAI protocol can be used by
// setting a base URL.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/BTreeMap/SalesPipe/internal/models"
)

// Generation defaults.
const (
	DefaultModel         = "gpt-4o-mini"
	DefaultFallbackModel = "gpt-4o-mini"
	DefaultMaxTokens     = 500
	DefaultTemperature   = 0.7
	MaxAttempts          = 3
	RateLimitBaseBackoff = 2 * time.Second
)

// FallbackReply is sent whenever generation fails.
const FallbackReply = "Thanks for your reply! I'd love to continue our conversation. " +
	"A member of our team will be in touch shortly."

// ErrNoChoicesReturned is returned when the API answers without any choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// Generator produces the next assistant turn for a conversation.
type Generator interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

var _ Generator = (*Client)(nil)

// Message is one turn of model context.
type Message struct {
	Role    models.Role
	Content string
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK completions service to chatService.
type completionsAdapter struct {
	client openai.Client
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client generates chat completions with rate-limit retry and model fallback.
type Client struct {
	chat          chatService
	model         string
	fallbackModel string
	temperature   float64
	maxTokens     int64
	debugMode     bool
	stateDir      string
	sleep         func(ctx context.Context, d time.Duration) error
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey        string
	BaseURL       string
	Model         string
	FallbackModel string
	Temperature   float64
	MaxTokens     int
	DebugMode     bool
	StateDir      string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the primary model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithFallbackModel sets the model used on the final attempt.
func WithFallbackModel(model string) Option {
	return func(o *Opts) { o.FallbackModel = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(o *Opts) { o.Temperature = temp }
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithDebugMode writes every request and response to <stateDir>/debug as JSON.
func WithDebugMode(enabled bool, stateDir string) Option {
	return func(o *Opts) {
		o.DebugMode = enabled
		o.StateDir = stateDir
	}
}

// NewClient creates a GenAI client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:         DefaultModel,
		FallbackModel: DefaultFallbackModel,
		Temperature:   DefaultTemperature,
		MaxTokens:     DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not set")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = cfg.Model
	}
	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "fallback_model", cfg.FallbackModel, "base_url_set", cfg.BaseURL != "")
	return &Client{
		chat:          completionsAdapter{client: openai.NewClient(reqOpts...)},
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		temperature:   cfg.Temperature,
		maxTokens:     int64(cfg.MaxTokens),
		debugMode:     cfg.DebugMode,
		stateDir:      cfg.StateDir,
		sleep:         sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Complete converts messages to SDK params and returns the generated text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return c.GenerateWithMessages(ctx, params)
}

// GenerateWithMessages runs up to MaxAttempts completions. Rate-limited
// attempts back off by RateLimitBaseBackoff times the attempt number and the
// last attempt uses the fallback model. Any other error is returned at once.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		model := c.model
		if attempt == MaxAttempts {
			model = c.fallbackModel
		}
		params := openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(model),
			Messages:    messages,
			Temperature: openai.Float(c.temperature),
			MaxTokens:   openai.Int(c.maxTokens),
		}
		resp, err := c.chat.Create(ctx, params)
		c.writeDebugLog("GenerateWithMessages", model, params, resp, err)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", ErrNoChoicesReturned
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err
		if !isRateLimited(err) {
			slog.Error("genai.GenerateWithMessages: completion failed", "error", err, "model", model)
			return "", err
		}
		slog.Warn("genai.GenerateWithMessages: rate limited", "attempt", attempt, "model", model)
		if attempt < MaxAttempts {
			if err := c.sleep(ctx, RateLimitBaseBackoff*time.Duration(attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", MaxAttempts, lastErr)
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}

type debugLogEntry struct {
	Timestamp string      `json:"timestamp"`
	Method    string      `json:"method"`
	Model     string      `json:"model"`
	Params    interface{} `json:"params"`
	Response  interface{} `json:"response"`
	Error     string      `json:"error,omitempty"`
}

// writeDebugLog records one API round trip when debug mode is enabled.
func (c *Client) writeDebugLog(method, model string, params openai.ChatCompletionNewParams, resp openai.ChatCompletion, callErr error) {
	if !c.debugMode || c.stateDir == "" {
		return
	}
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("genai.writeDebugLog: create dir failed", "error", err)
		return
	}
	now := time.Now().UTC()
	entry := debugLogEntry{
		Timestamp: now.Format(time.RFC3339Nano),
		Method:    method,
		Model:     model,
		Params:    params,
		Response:  resp,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("genai.writeDebugLog: marshal failed", "error", err)
		return
	}
	name := fmt.Sprintf("genai_%s_%d.json", now.Format("20060102T150405"), now.UnixNano())
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		slog.Warn("genai.writeDebugLog: write failed", "error", err)
	}
}
