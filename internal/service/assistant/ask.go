package assistant

import (
	"context"
	"fmt"
	"strings"

	"meddatachat/internal/logging"
	"meddatachat/internal/models"
	"meddatachat/internal/tabular"
)

// Ask answers question about the session's table. The primary model is tried
// first; on any failure the fallback model is tried exactly once and its
// outcome is final. Guard errors are returned before any remote call.
func (s *Service) Ask(ctx context.Context, se *models.Session, question string) (*Answer, error) {
	logger := logging.FromContext(ctx)
	trace := []State{StateIdle}

	switch {
	case !se.HasCredential():
		return nil, ErrMissingCredential
	case !se.HasTable():
		return nil, ErrNoTable
	case strings.TrimSpace(question) == "":
		return nil, ErrEmptyQuestion
	}

	trace = append(trace, StateComposing)
	prompt := ComposePrompt(tabular.Preview(se.Table, s.opts.PreviewRows), question)

	gen, err := s.factory(ctx, se.Credential)
	if err != nil {
		trace = append(trace, StateFailed)
		return nil, &Failure{
			Class: Classify(err),
			Model: s.opts.PrimaryModel,
			Err:   fmt.Errorf("init generator: %w", err),
			Trace: trace,
		}
	}

	trace = append(trace, StateCallingPrimary)
	logger.Debug().Str("model", s.opts.PrimaryModel).Int("prompt_len", len(prompt)).Msg("calling primary model")
	primary := s.attempt(ctx, gen, s.opts.PrimaryModel, prompt)
	if primary.OK() {
		trace = append(trace, StateSuccess)
		return &Answer{Text: primary.Text, Model: primary.Model, Prompt: prompt, Trace: trace}, nil
	}

	logger.Warn().Err(primary.Err).
		Str("model", s.opts.PrimaryModel).
		Str("fallback", s.opts.FallbackModel).
		Msg("primary model failed, falling back")
	trace = append(trace, StateCallingFallback)
	fallback := s.attempt(ctx, gen, s.opts.FallbackModel, prompt)
	if fallback.OK() {
		trace = append(trace, StateSuccess)
		return &Answer{
			Text:           fallback.Text,
			Model:          fallback.Model,
			UsedFallback:   true,
			FallbackReason: primary.Err.Error(),
			Prompt:         prompt,
			Trace:          trace,
		}, nil
	}

	trace = append(trace, StateFailed)
	failure := &Failure{
		Class:      Classify(fallback.Err),
		Model:      fallback.Model,
		Err:        fallback.Err,
		PrimaryErr: primary.Err,
		Trace:      trace,
	}
	logger.Error().Err(fallback.Err).Str("model", fallback.Model).Str("class", string(failure.Class)).Msg("fallback model failed")
	return nil, failure
}

func (s *Service) attempt(ctx context.Context, gen Generator, model, prompt string) Attempt {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	text, err := gen.Generate(ctx, model, prompt)
	if err != nil {
		return Attempt{Model: model, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Attempt{Model: model, Err: fmt.Errorf("%s: %w", model, ErrEmptyResponse)}
	}
	return Attempt{Model: model, Text: text}
}
