// Package genai talks to an OpenAI-compatible chat completions API to abbreviate equipment names.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"assetid-workers/internal/common/config"
	httpclient "assetid-workers/internal/common/http"
	"assetid-workers/internal/common/logger"
)

var (
	ErrNotConfigured           = errors.New("genai: api key not configured")
	ErrAbbreviationTimeout     = errors.New("genai: abbreviation request timed out")
	ErrAbbreviationUnavailable = errors.New("genai: abbreviation service unavailable")
)

const completionsPath = "/v1/chat/completions"

const systemPrompt = "Create a meaningful %d-letter abbreviation for equipment names. " +
	"The abbreviation should be intuitive and follow industry standards when possible. " +
	"Respond with ONLY the abbreviation in uppercase, nothing else."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type Client struct {
	http      *resty.Client
	cfg       config.GenAIConfig
	maxLength int
	logger    logger.Logger
}

// NewClient returns a client asking for codes of at most maxLength letters.
func NewClient(cfg config.GenAIConfig, maxLength int, log logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if maxLength < 1 {
		maxLength = 4
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	hc := httpclient.NewClient(httpclient.Options{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Timeout:    timeout,
		RetryCount: cfg.MaxRetries,
		Headers:    map[string]string{"Authorization": "Bearer " + cfg.APIKey},
	})

	return &Client{http: hc, cfg: cfg, maxLength: maxLength, logger: log}, nil
}

// Abbreviate asks the model for a short uppercase code. The answer is stripped to A-Z and cut to
// the configured length.
func (c *Client) Abbreviate(ctx context.Context, text string) (string, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, c.maxLength)},
			{Role: "user", Content: text},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	var result chatResponse
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&failure).
		Post(completionsPath)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", ErrAbbreviationTimeout, context.DeadlineExceeded)
		}
		return "", fmt.Errorf("%w: %v", ErrAbbreviationUnavailable, err)
	}
	if resp.IsError() {
		c.logger.Warn("GenAI request rejected", map[string]interface{}{
			"status":  resp.StatusCode(),
			"message": failure.Error.Message,
		})
		return "", fmt.Errorf("%w: status %d: %s", ErrAbbreviationUnavailable, resp.StatusCode(), failure.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrAbbreviationUnavailable)
	}

	code := clean(result.Choices[0].Message.Content, c.maxLength)
	if code == "" {
		return "", fmt.Errorf("%w: no letters in %q", ErrAbbreviationUnavailable, result.Choices[0].Message.Content)
	}

	c.logger.Debug("GenAI abbreviation", map[string]interface{}{"text": text, "code": code})
	return code, nil
}

func clean(s string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > n {
		out = out[:n]
	}
	return out
}
