// Package llm answers free-form questions through an OpenAI-compatible chat
// completion endpoint, grounded on a compact view of the sprint cache.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/siddhartha-04/itcprj/internal/config"
)

const (
	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
	maxUserRunes   = 2000
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned no content")

const systemPrompt = `You are an Azure Boards assistant for one Azure DevOps project.
Answer questions about sprints, issues, tasks and bugs using only the JSON context provided.
Rules:
- Do not invent work items, ids or numbers. If data is missing, suggest a command that would fetch it (for example "list tasks in sprint 2").
- Reply in plain text with short paragraphs or "-" bullets. No JSON, HTML or code.
- Be concise: 4 to 6 bullets or 2 to 3 sentences unless asked for more.
- When summarising sprints, mention progress, blockers and completion status.`

// Querier answers a user question given the compact cache context.
type Querier interface {
	Query(ctx context.Context, userText string, compact CompactContext) (string, error)
}

// Client implements Querier on top of a langchaingo model.
type Client struct {
	model       llms.Model
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

var _ Querier = (*Client)(nil)

// New builds a Client for an OpenAI-compatible endpoint such as OpenRouter.
func New(cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("llm: OPENROUTER_API_KEY is not set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	model, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithHTTPClient(newHTTPClient(cfg.Timeout, maxRetries, retryBaseDelay, logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewWithModel(model, cfg, logger), nil
}

// NewWithModel wraps an existing model, for tests and alternative providers.
func NewWithModel(model llms.Model, cfg config.LLMConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 400
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	return c
}

// Query sends the question with the system prompt and context. Empty output is an error.
func (c *Client) Query(ctx context.Context, userText string, compact CompactContext) (string, error) {
	ctxJSON, err := json.Marshal(compact)
	if err != nil {
		return "", fmt.Errorf("marshal context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeSystem, "Context:\n"+string(ctxJSON)),
		llms.TextParts(llms.ChatMessageTypeHuman, "User question:\n"+truncate(strings.TrimSpace(userText), maxUserRunes)),
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(c.maxTokens),
		llms.WithTemperature(c.temperature),
	)
	if err != nil {
		c.logger.Warn("LLM query failed", "error", err, "duration", time.Since(start))
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	c.logger.Debug("LLM query completed", "duration", time.Since(start), "chars", len(text))
	return text, nil
}
