package assistant

// State is a step of one question submission.
type State int

const (
	StateIdle State = iota
	StateComposing
	StateCallingPrimary
	StateCallingFallback
	StateSuccess
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateComposing:       "composing",
	StateCallingPrimary:  "calling_primary",
	StateCallingFallback: "calling_fallback",
	StateSuccess:         "success",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Attempt is the outcome of one call to one model.
type Attempt struct {
	Model string
	Text  string
	Err   error
}

func (a Attempt) OK() bool { return a.Err == nil }

// Answer is a successful reply to a question.
type Answer struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	// UsedFallback is set when the primary model failed and the fallback
	// model produced Text.
	UsedFallback   bool    `json:"used_fallback"`
	FallbackReason string  `json:"fallback_reason,omitempty"`
	Prompt         string  `json:"-"`
	Trace          []State `json:"trace"`
}
