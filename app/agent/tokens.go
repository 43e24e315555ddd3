package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// CountTokens estimates the prompt size with the cl100k encoding. The encoding is
// fetched on first use, so a failure only disables counting.
func CountTokens(text string) (int, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.EncodingForModel("gpt-3.5-turbo")
	})
	if encErr != nil {
		return 0, encErr
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func logPromptSize(l *zap.Logger, provider, model, prompt string) {
	if !l.Core().Enabled(zap.DebugLevel) {
		return
	}
	fields := []zap.Field{
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Int("chars", len(prompt)),
	}
	if n, err := CountTokens(prompt); err == nil {
		fields = append(fields, zap.Int("tokens", n))
	}
	l.Debug("sending prompt", fields...)
}
