package chatbot

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"mwanga/loader"
	"mwanga/logger"
)

const (
	emptyQueryReply = "It looks like your message was empty. What would you like to know about the products?"
	failureReply    = "Oops, something went wrong 🤖. Error: "
	maxErrorRunes   = 200
)

// Generator is the generation service: one prompt in, one completion out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config configures a Resolver. Zero values select defaults.
type Config struct {
	Prompter  Prompter
	Gate      Gate
	Formatter *Formatter
	// Timeout bounds each generation call; zero means no bound.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Resolver answers queries grounded-first against ingested text, falling back to a general answer.
// It holds no per-turn state and is safe for concurrent use when its Generator is.
type Resolver struct {
	gen     Generator
	prompts Prompter
	gate    Gate
	format  *Formatter
	timeout time.Duration
	logger  *zap.Logger
}

func NewResolver(gen Generator, cfg Config) *Resolver {
	r := &Resolver{
		gen:     gen,
		prompts: NewPrompter(cfg.Prompter.Persona, cfg.Prompter.FallbackPersona, cfg.Prompter.ContextWindow),
		gate:    cfg.Gate,
		format:  cfg.Formatter,
		timeout: cfg.Timeout,
		logger:  logger.OrNop(cfg.Logger),
	}
	if r.gate == nil {
		r.gate = NewHeuristicGate(0, nil)
	}
	if r.format == nil {
		r.format = DefaultFormatter()
	}
	return r
}

// Resolve answers query. It always returns an Answer with Text set; failures are reported in Answer.Err.
func (r *Resolver) Resolve(ctx context.Context, doc loader.Text, query string) Answer {
	if strings.TrimSpace(query) == "" {
		return Answer{
			Text:       r.format.Format(emptyQueryReply),
			Provenance: ProvenanceNone,
			Err:        ErrEmptyQuery,
		}
	}

	var ans Answer
	if doc.Usable() {
		candidate, err := r.generate(ctx, StageGrounded, r.prompts.Grounded(query, doc.String()))
		switch {
		case err != nil:
			ans.GroundedErr = err
			r.logger.Warn("grounded generation failed, falling back", zap.Error(err))
		case r.gate.Accept(candidate):
			return r.accept(ans, ProvenanceGrounded, candidate)
		default:
			ans.Rejected = true
			r.logger.Debug("grounded candidate rejected", zap.Int("chars", len([]rune(candidate))))
		}
	} else {
		r.logger.Debug("no usable document text, answering without it",
			zap.String("source", doc.Source),
			zap.NamedError("ingest_error", doc.Err),
		)
	}

	candidate, err := r.generate(ctx, StageFallback, r.prompts.Fallback(query))
	if err != nil {
		r.logger.Error("fallback generation failed", zap.Error(err))
		ans.Provenance = ProvenanceFallback
		ans.Err = err
		ans.Text = r.format.Format(failureReply + describe(err))
		return ans
	}
	return r.accept(ans, ProvenanceFallback, candidate)
}

func (r *Resolver) accept(ans Answer, p Provenance, candidate string) Answer {
	ans.Provenance = p
	ans.Body = candidate
	ans.Text = r.format.Format(candidate)
	r.logger.Info("answer resolved",
		zap.Stringer("provenance", p),
		zap.Bool("rejected", ans.Rejected),
		zap.Bool("grounded_failed", ans.GroundedErr != nil),
	)
	return ans
}

// generate makes one bounded generation call and returns the trimmed completion.
func (r *Resolver) generate(ctx context.Context, stage Stage, prompt string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return "", &GenerationError{Stage: stage, Err: err}
	}
	return strings.TrimSpace(out), nil
}

// describe returns the short, user-visible description of a generation failure.
func describe(err error) string {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		err = gerr.Err
	}
	msg, truncated := truncate(err.Error(), maxErrorRunes)
	if truncated {
		msg += "..."
	}
	return msg
}
