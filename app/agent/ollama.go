package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"mwanga/logger"
	"mwanga/metrics"
)

type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type GenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Ollama talks to an Ollama server's /api/generate endpoint.
type Ollama struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

func NewOllama(cfg Config) *Ollama {
	endpoint := strings.TrimRight(cfg.URL, "/")
	if !strings.HasSuffix(endpoint, "/api/generate") {
		endpoint += "/api/generate"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Ollama{endpoint: endpoint, model: cfg.Model, client: client, logger: logger.OrNop(cfg.Logger)}
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.GenerationDuration.WithLabelValues(ProviderOllama).Observe(since(start))
	}()

	reqBody, err := json.Marshal(GenerateRequest{Model: o.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	logPromptSize(o.logger, ProviderOllama, o.model, prompt)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, shorten(body))
	}

	out, err := decodeGenerate(body)
	if err != nil {
		return "", err
	}
	o.logger.Debug("ollama answered", zap.Duration("took", time.Since(start)), zap.Int("chars", len(out)))
	return out, nil
}

// decodeGenerate accepts both a single JSON object and a stream of newline-delimited chunks.
func decodeGenerate(body []byte) (string, error) {
	var single GenerateResponse
	if err := json.Unmarshal(body, &single); err == nil {
		if single.Error != "" {
			return "", fmt.Errorf("ollama: %s", single.Error)
		}
		return single.Response, nil
	}

	var out strings.Builder
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk GenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			return "", fmt.Errorf("decode ollama stream: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}
		out.WriteString(chunk.Response)
	}
	return out.String(), nil
}
