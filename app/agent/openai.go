package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"mwanga/logger"
	"mwanga/metrics"
)

// OpenAI is a chat-completions client for OpenAI-compatible APIs, Gemini's included.
type OpenAI struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

func NewOpenAI(provider string, cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.URL
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &OpenAI{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: provider,
		logger:   logger.OrNop(cfg.Logger),
	}
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	logPromptSize(o.logger, o.provider, o.model, prompt)

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	metrics.GenerationDuration.WithLabelValues(o.provider).Observe(since(start))
	if err != nil {
		return "", parseAPIError(o.provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty completion response", o.provider)
	}

	o.logger.Debug("completion received",
		zap.String("provider", o.provider),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// parseAPIError extracts a human-readable error from the API response.
func parseAPIError(provider string, err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("%s API error %d: %s", provider, reqErr.HTTPStatusCode, detail)
		}
		return fmt.Errorf("%s API error %d: %s", provider, reqErr.HTTPStatusCode, shorten(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s", provider, apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("%s request failed: %w", provider, err)
}

// extractDetail pulls "detail" or "error.message" out of a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Error.Message
}
