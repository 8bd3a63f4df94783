package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"meddatachat/internal/models"
)

type fakeReply struct {
	text string
	err  error
}

type fakeGenerator struct {
	mu      sync.Mutex
	replies map[string]fakeReply
	calls   []string
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, model)
	f.prompts = append(f.prompts, prompt)
	r, ok := f.replies[model]
	if !ok {
		return "", fmt.Errorf("unknown model %s", model)
	}
	return r.text, r.err
}

func newTestService(gen *fakeGenerator) (*Service, *[]string) {
	var keys []string
	factory := func(ctx context.Context, apiKey string) (Generator, error) {
		keys = append(keys, apiKey)
		return gen, nil
	}
	return NewService(factory, Options{PrimaryModel: "primary", FallbackModel: "fallback"}), &keys
}

func testSession() *models.Session {
	return &models.Session{
		ID:         "s1",
		Credential: "key-123",
		Table: &models.Table{
			Columns: []string{"name", "age"},
			Rows: []models.Row{
				{models.StringValue("alice"), models.IntValue(30)},
				{models.StringValue("bob"), models.IntValue(41)},
				{models.StringValue("carol"), models.IntValue(27)},
			},
		},
	}
}

func TestAskPrimarySucceeds(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]fakeReply{"primary": {text: "  Mean age is 32.67.\n"}}}
	svc, keys := newTestService(gen)

	ans, err := svc.Ask(context.Background(), testSession(), "What is the mean age?")
	require.NoError(t, err)

	assert.Equal(t, "Mean age is 32.67.", ans.Text)
	assert.Equal(t, "primary", ans.Model)
	assert.False(t, ans.UsedFallback)
	assert.Equal(t, []string{"primary"}, gen.calls)
	assert.Equal(t, []string{"key-123"}, *keys)
	assert.Equal(t, []State{StateIdle, StateComposing, StateCallingPrimary, StateSuccess}, ans.Trace)

	for _, want := range []string{"name", "age", "alice", "bob", "carol", "What is the mean age?"} {
		assert.Contains(t, ans.Prompt, want)
	}
	assert.Equal(t, ans.Prompt, gen.prompts[0])
}

func TestAskFallsBackOnce(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]fakeReply{
		"primary":  {err: errors.New("429 Resource has been exhausted (e.g. check quota).")},
		"fallback": {text: "fallback answer"},
	}}
	svc, _ := newTestService(gen)

	ans, err := svc.Ask(context.Background(), testSession(), "q")
	require.NoError(t, err)

	assert.Equal(t, "fallback answer", ans.Text)
	assert.Equal(t, "fallback", ans.Model)
	assert.True(t, ans.UsedFallback)
	assert.Contains(t, ans.FallbackReason, "quota")
	assert.Equal(t, []string{"primary", "fallback"}, gen.calls)
	assert.Equal(t, gen.prompts[0], gen.prompts[1], "both attempts send the same prompt")
	assert.Equal(t, []State{StateIdle, StateComposing, StateCallingPrimary, StateCallingFallback, StateSuccess}, ans.Trace)
}

func TestAskBothFail(t *testing.T) {
	tests := []struct {
		name        string
		fallbackErr error
		wantClass   FailureClass
	}{
		{name: "quota", fallbackErr: errors.New("Quota exceeded for this project"), wantClass: RateLimited},
		{name: "unavailable", fallbackErr: errors.New("Service unavailable"), wantClass: RemoteError},
		{name: "structured 429", fallbackErr: genai.APIError{Code: 429, Message: "Resource exhausted", Status: "RESOURCE_EXHAUSTED"}, wantClass: RateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primaryErr := errors.New("primary down")
			gen := &fakeGenerator{replies: map[string]fakeReply{
				"primary":  {err: primaryErr},
				"fallback": {err: tt.fallbackErr},
			}}
			svc, _ := newTestService(gen)

			ans, err := svc.Ask(context.Background(), testSession(), "q")
			require.Nil(t, ans)

			var failure *Failure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tt.wantClass, failure.Class)
			assert.Equal(t, "fallback", failure.Model)
			assert.Equal(t, tt.fallbackErr, failure.Err)
			assert.Equal(t, primaryErr, failure.PrimaryErr)
			assert.Equal(t, tt.wantClass == RateLimited, failure.Retryable())
			assert.Equal(t, []string{"primary", "fallback"}, gen.calls)
			assert.Equal(t, StateFailed, failure.Trace[len(failure.Trace)-1])
		})
	}
}

func TestAskEmptyResponseTriggersFallback(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]fakeReply{
		"primary":  {text: "   "},
		"fallback": {text: ""},
	}}
	svc, _ := newTestService(gen)

	_, err := svc.Ask(context.Background(), testSession(), "q")

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.True(t, errors.Is(err, ErrEmptyResponse))
	assert.Equal(t, RemoteError, failure.Class)
	assert.Equal(t, []string{"primary", "fallback"}, gen.calls)
}

func TestAskGuards(t *testing.T) {
	tests := []struct {
		name     string
		session  func() *models.Session
		question string
		want     error
	}{
		{name: "missing credential", session: func() *models.Session { s := testSession(); s.Credential = ""; return s }, question: "q", want: ErrMissingCredential},
		{name: "nil session", session: func() *models.Session { return nil }, question: "q", want: ErrMissingCredential},
		{name: "no table", session: func() *models.Session { s := testSession(); s.Table = nil; return s }, question: "q", want: ErrNoTable},
		{name: "blank question", session: testSession, question: " \t\n", want: ErrEmptyQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{replies: map[string]fakeReply{"primary": {text: "x"}}}
			svc, keys := newTestService(gen)

			_, err := svc.Ask(context.Background(), tt.session(), tt.question)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, gen.calls, "no remote call expected")
			assert.Empty(t, *keys, "generator must not be built")
		})
	}
}

func TestAskFactoryError(t *testing.T) {
	svc := NewService(func(ctx context.Context, apiKey string) (Generator, error) {
		return nil, errors.New("bad key format")
	}, Options{PrimaryModel: "primary", FallbackModel: "fallback"})

	_, err := svc.Ask(context.Background(), testSession(), "q")

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, RemoteError, failure.Class)
	assert.Contains(t, err.Error(), "bad key format")
}

type slowGenerator struct{}

func (slowGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAskTimeoutPerAttempt(t *testing.T) {
	svc := NewService(func(ctx context.Context, apiKey string) (Generator, error) {
		return slowGenerator{}, nil
	}, Options{PrimaryModel: "primary", FallbackModel: "fallback", Timeout: 10 * time.Millisecond})

	_, err := svc.Ask(context.Background(), testSession(), "q")

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, failure.Err, context.DeadlineExceeded)
	assert.ErrorIs(t, failure.PrimaryErr, context.DeadlineExceeded)
}

func TestAskPreviewIsBounded(t *testing.T) {
	se := testSession()
	se.Table.Rows = nil
	for i := 0; i < 30; i++ {
		se.Table.Rows = append(se.Table.Rows, models.Row{models.StringValue(fmt.Sprintf("patient-%02d", i)), models.IntValue(int64(i))})
	}
	gen := &fakeGenerator{replies: map[string]fakeReply{"primary": {text: "ok"}}}
	svc, _ := newTestService(gen)

	ans, err := svc.Ask(context.Background(), se, "q")
	require.NoError(t, err)
	assert.Contains(t, ans.Prompt, "patient-09")
	assert.NotContains(t, ans.Prompt, "patient-10")
}

func TestComposePrompt(t *testing.T) {
	preview := " name  age\nalice   30"
	question := "  What is the mean age?  "

	got := ComposePrompt(preview, question)
	assert.Equal(t, got, ComposePrompt(preview, question))

	want := "\nYou are a professional medical data analyst.\n" +
		"Here is a preview of the uploaded dataset:\n\n" +
		preview + "\n\n" +
		"Now respond professionally and insightfully to this question:\n" +
		question + "\n"
	assert.Equal(t, want, got)

	iPre := strings.Index(got, "medical data analyst")
	iPreview := strings.Index(got, preview)
	iTrans := strings.Index(got, "Now respond")
	iQ := strings.Index(got, question)
	assert.True(t, iPre < iPreview && iPreview < iTrans && iTrans < iQ)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want FailureClass
	}{
		{errors.New("Quota exceeded"), RateLimited},
		{errors.New("you have hit your QUOTA"), RateLimited},
		{fmt.Errorf("wrapped: %w", errors.New("daily quota reached")), RateLimited},
		{errors.New("Service unavailable"), RemoteError},
		{errors.New("rate limit"), RemoteError},
		{genai.APIError{Code: 429, Message: "Resource exhausted"}, RateLimited},
		{fmt.Errorf("gemini: %w", &genai.APIError{Code: 429, Message: "slow down"}), RateLimited},
		{genai.APIError{Code: 503, Message: "overloaded"}, RemoteError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "Classify(%v)", tt.err)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "calling_fallback", StateCallingFallback.String())
	assert.Equal(t, "unknown", State(42).String())
}
