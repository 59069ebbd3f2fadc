package dispatch

import "fmt"

// Result is the outcome of Send: exactly one of Text or Failure.
type Result interface {
	isResult()
}

// Text is a successful generation with surrounding whitespace trimmed.
type Text struct {
	Content string
	// EvalCount is the endpoint's own count of generated tokens, or 0 when
	// it did not report one.
	EvalCount int
}

// Failure is a transport failure: network error, timeout, non-2xx status
// or an unparsable envelope.
type Failure struct {
	Reason     string
	StatusCode int
	Err        error
}

func (Text) isResult()    {}
func (Failure) isResult() {}

func (f Failure) String() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Reason, f.Err)
	}
	return f.Reason
}

// TextOf returns the generated text and true when r is a Text.
func TextOf(r Result) (string, bool) {
	t, ok := r.(Text)
	if !ok {
		return "", false
	}
	return t.Content, true
}
