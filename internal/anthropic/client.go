package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trade-journal-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	messagesPath   = "/v1/messages"
)

var tracer = otel.Tracer("trade-journal-go/internal/anthropic")

// ErrEmptyCompletion is returned when the model answers without any text.
var ErrEmptyCompletion = errors.New("model returned no text content")

// Client is a minimal client for the Anthropic Messages API.
type Client struct {
	client    *resty.Client
	apiKey    string
	model     string
	maxTokens int
	logger    *zap.Logger
	limiter   *rate.Limiter
}

// NewClient creates a Messages API client from the AI configuration.
func NewClient(cfg *config.AI, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("Content-Type", "application/json")

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:    client,
		apiKey:    cfg.ApiKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.Named("anthropic"),
		limiter:   limiter,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MessagesResponse is the subset of the Messages API response the journal reads.
type MessagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []contentBlock `json:"content"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message and returns the concatenated
// text blocks of the reply. The call is made once; failures are not retried.
func (c *Client) Complete(ctx context.Context, prompt string) (text string, err error) {
	ctx, span := tracer.Start(ctx, "anthropic.Complete")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("model", c.model))

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetBody(messagesRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages:  []message{{Role: "user", Content: prompt}},
		}).
		SetResult(&MessagesResponse{}).
		SetError(&errorResponse{})

	c.logger.Debug("Executing request", zap.String("url", c.client.BaseURL+messagesPath), zap.String("model", c.model))
	resp, err := req.Post(messagesPath)
	if err != nil {
		c.logger.Error("Messages request failed", zap.Error(err))
		return "", fmt.Errorf("messages request failed: %w", err)
	}

	if resp.IsError() {
		detail := resp.String()
		if apiErr, ok := resp.Error().(*errorResponse); ok && apiErr.Error.Message != "" {
			detail = apiErr.Error.Message
		}
		c.logger.Error("Messages API returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("detail", detail),
		)
		return "", fmt.Errorf("request failed with status %s: %s", resp.Status(), detail)
	}

	result := resp.Result().(*MessagesResponse)
	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyCompletion
	}

	c.logger.Debug("Received completion",
		zap.String("id", result.ID),
		zap.String("stop_reason", result.StopReason),
		zap.Int("length", sb.Len()),
	)
	return sb.String(), nil
}
