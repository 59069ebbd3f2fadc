// Package extract recovers a JSON array or object from free-form model
// output.
//
// Strategies run in order and the first that yields valid JSON wins:
//
//  1. the first ```json fenced block
//  2. the shortest span from the first '[' to a later ']' that parses
//  3. the same scan for '{' and '}'
//
// The scans do not track bracket depth. A ']' inside a string value can end
// a candidate early, in which case scanning moves on to the next ']'.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSON is wrapped by every ExtractionError.
var ErrNoJSON = errors.New("no valid JSON array or object found in response")

// ExtractionError carries the raw text that could not be parsed.
type ExtractionError struct {
	Raw string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s (%d bytes of text)", ErrNoJSON, len(e.Raw))
}

func (e *ExtractionError) Unwrap() error { return ErrNoJSON }

// Kind tells an array payload from an object payload.
type Kind int

const (
	KindObject Kind = iota + 1
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Payload is the recovered JSON. Its shape beyond array/object is the
// caller's concern.
type Payload struct {
	Kind     Kind
	Raw      json.RawMessage
	Strategy string
}

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	return json.Unmarshal(p.Raw, v)
}

// Value decodes the payload into []any or map[string]any.
func (p Payload) Value() (any, error) {
	var v any
	if err := json.Unmarshal(p.Raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var fenced = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")

type strategy struct {
	name string
	find func(text string) (string, bool)
}

var strategies = []strategy{
	{name: "fenced", find: findFenced},
	{name: "array", find: func(text string) (string, bool) { return scan(text, '[', ']') }},
	{name: "object", find: func(text string) (string, bool) { return scan(text, '{', '}') }},
}

// Extract returns the first JSON array or object recovered from raw.
func Extract(raw string) (Payload, error) {
	for _, s := range strategies {
		candidate, ok := s.find(raw)
		if !ok {
			continue
		}
		if kind, ok := classify(candidate); ok {
			return Payload{Kind: kind, Raw: json.RawMessage(candidate), Strategy: s.name}, nil
		}
	}
	return Payload{}, &ExtractionError{Raw: raw}
}

// Decode unmarshals p into a T.
func Decode[T any](p Payload) (T, error) {
	var out T
	if err := p.Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", p.Kind, err)
	}
	return out, nil
}

func findFenced(text string) (string, bool) {
	m := fenced.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// scan returns the shortest span starting at the first open byte and ending
// at a close byte that is valid JSON. Every close byte re-validates the span
// from start, so the worst case is O(n*k) for n bytes and k close bytes.
// Large inputs would need a streaming decoder instead.
func scan(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}
	for i := start + 1; i < len(text); i++ {
		if text[i] != close {
			continue
		}
		if candidate := text[start : i+1]; gjson.Valid(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func classify(candidate string) (Kind, bool) {
	if !gjson.Valid(candidate) {
		return 0, false
	}
	res := gjson.Parse(candidate)
	switch {
	case res.IsArray():
		return KindArray, true
	case res.IsObject():
		return KindObject, true
	default:
		return 0, false
	}
}
