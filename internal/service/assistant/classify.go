package assistant

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type FailureClass string

const (
	RateLimited FailureClass = "rate_limited"
	RemoteError FailureClass = "remote_error"
)

// Classify maps a remote failure to RateLimited when its description mentions
// "quota" in any case, or when it is a Gemini API error with HTTP 429.
// Everything else is RemoteError.
func Classify(err error) FailureClass {
	if err == nil {
		return RemoteError
	}
	if strings.Contains(strings.ToLower(err.Error()), "quota") {
		return RateLimited
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return RateLimited
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Code == http.StatusTooManyRequests {
		return RateLimited
	}
	return RemoteError
}

// Failure is returned by Ask when both the primary and the fallback model
// failed. Err is the fallback's error; PrimaryErr the one that triggered the
// fallback.
type Failure struct {
	Class      FailureClass
	Model      string
	Err        error
	PrimaryErr error
	Trace      []State
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s from %s: %v", f.Class, f.Model, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether a manual retry is worth offering.
func (f *Failure) Retryable() bool { return f.Class == RateLimited }
