package assistant

import (
	"context"
	"errors"
	"time"

	"meddatachat/internal/tabular"
)

var (
	ErrMissingCredential = errors.New("api key is required")
	ErrNoTable           = errors.New("no dataset uploaded")
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrEmptyResponse     = errors.New("model returned an empty response")
)

// Generator sends one prompt to one model and returns the reply text.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// GeneratorFactory builds a Generator bound to a user's API key.
type GeneratorFactory func(ctx context.Context, apiKey string) (Generator, error)

type Options struct {
	PrimaryModel  string
	FallbackModel string
	PreviewRows   int
	// Timeout bounds each remote attempt. Zero means no limit.
	Timeout time.Duration
}

// Service answers questions about a session's dataset with a primary model,
// falling back to a second model once.
type Service struct {
	factory GeneratorFactory
	opts    Options
}

// NewService builds a new assistant service.
func NewService(factory GeneratorFactory, opts Options) *Service {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = tabular.DefaultPreviewRows
	}
	return &Service{factory: factory, opts: opts}
}

func (s *Service) PrimaryModel() string  { return s.opts.PrimaryModel }
func (s *Service) FallbackModel() string { return s.opts.FallbackModel }
