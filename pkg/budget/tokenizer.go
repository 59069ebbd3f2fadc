package budget

import (
	"fmt"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// ReferenceEncoding is the tokenizer profile used for every model. Counts
// are a stable reference, not the served model's own tokenizer.
const ReferenceEncoding = "cl100k_base"

// Tokenizer counts tokens in text. Implementations must be deterministic.
type Tokenizer interface {
	Count(text string) int
	Name() string
}

// BPETokenizer counts tokens with a tiktoken encoding.
type BPETokenizer struct {
	enc  *tiktoken.Tiktoken
	name string
}

var loaderOnce sync.Once

// NewBPETokenizer loads the named encoding from the embedded BPE ranks.
// It never touches the network.
func NewBPETokenizer(encoding string) (*BPETokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &BPETokenizer{enc: enc, name: encoding}, nil
}

// Count never decreases as text grows. Text is cut into pieces that
// follow the encoding's pre-tokenization; every piece but the last is
// BPE-encoded and the trailing piece counts as one token, because a word
// cut short can encode to more tokens than the whole word.
func (t *BPETokenizer) Count(text string) int {
	pieces := splitPieces(text)
	if len(pieces) == 0 {
		return 0
	}
	total := 1
	for _, p := range pieces[:len(pieces)-1] {
		total += len(t.enc.Encode(p, nil, nil))
	}
	return total
}

const maxPieceRunes = 32

type pieceClass int

const (
	classPunct pieceClass = iota
	classLetter
	classDigit
	classSpace
	// classLeadSpace is a piece holding a single ' ' that may still take
	// a following word or punctuation run.
	classLeadSpace
)

func classOf(r rune) pieceClass {
	switch {
	case unicode.IsLetter(r) || unicode.IsMark(r):
		return classLetter
	case unicode.IsNumber(r):
		return classDigit
	case unicode.IsSpace(r):
		return classSpace
	default:
		return classPunct
	}
}

// extend reports whether a piece in mode with n runes takes a rune of
// class c, and the piece's mode afterwards.
func extend(mode pieceClass, n int, c pieceClass) (pieceClass, bool) {
	if n >= maxPieceRunes {
		return mode, false
	}
	switch mode {
	case classLeadSpace:
		if c == classDigit {
			return mode, false
		}
		return c, true
	case classDigit:
		return mode, c == classDigit && n < 3
	case classPunct:
		if n == 1 && c == classLetter {
			return classLetter, true
		}
		return mode, c == classPunct
	default:
		return mode, c == mode
	}
}

// splitPieces cuts text into runs of letters (with one leading space or
// punctuation rune), up to three digits, whitespace or punctuation.
// Whether a piece continues
// depends only on the piece so far and the next rune, so every piece of a
// prefix except the last is also a piece of the full text. A truncated
// rune at the end stays with the last piece.
func splitPieces(text string) []string {
	var pieces []string
	start, n := 0, 0
	var mode pieceClass
	for i, r := range text {
		if r == utf8.RuneError && !utf8.FullRuneInString(text[i:]) {
			break
		}
		c := classOf(r)
		if n > 0 {
			if next, ok := extend(mode, n, c); ok {
				mode = next
				n++
				continue
			}
			pieces = append(pieces, text[start:i])
		}
		start, n, mode = i, 1, c
		if r == ' ' {
			mode = classLeadSpace
		}
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

func (t *BPETokenizer) Name() string { return t.name }

// HeuristicTokenizer estimates ~4 bytes per token, rounding up.
type HeuristicTokenizer struct{}

func (HeuristicTokenizer) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

func (HeuristicTokenizer) Name() string { return "heuristic-4b" }

var (
	defaultOnce      sync.Once
	defaultTokenizer Tokenizer
	defaultErr       error
)

// DefaultTokenizer returns the shared reference tokenizer. When the BPE
// ranks cannot be loaded it returns the heuristic together with the load
// error so the caller can report it.
func DefaultTokenizer() (Tokenizer, error) {
	defaultOnce.Do(func() {
		t, err := NewBPETokenizer(ReferenceEncoding)
		if err != nil {
			defaultTokenizer = HeuristicTokenizer{}
			defaultErr = err
			return
		}
		defaultTokenizer = t
	})
	return defaultTokenizer, defaultErr
}
