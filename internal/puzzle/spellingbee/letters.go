// Package spellingbee solves the seven-letter spelling-bee puzzle against a
// words.Store: find every dictionary word built only from the puzzle letters
// that contains the required letter, optionally narrowed by per-letter length
// hints and two-letter starting prefixes.
//
// The tests that check result counts against the full words_alpha.txt list
// skip unless WP_WORDS_ALPHA names a local copy:
//
//	WP_WORDS_ALPHA=/path/to/words_alpha.txt go test ./internal/puzzle/spellingbee/
package spellingbee

import (
	"fmt"

	apperrors "github.com/qxuken/word-puzzles/pkg/errors"
)

const (
	// Words of MinLength or fewer bytes are rejected.
	MinLength = 3
	// MaxLength is the longest accepted word.
	MaxLength = 10
	// LettersCount is the puzzle size.
	LettersCount = 7
)

// ErrorKind classifies a ValidationError.
type ErrorKind int

const (
	// WrongLetterCount means the input did not have LettersCount letters
	// after consecutive repeats were collapsed.
	WrongLetterCount ErrorKind = iota + 1
	// DuplicateLetter means a letter appears twice in non-adjacent positions.
	DuplicateLetter
)

func (k ErrorKind) String() string {
	switch k {
	case WrongLetterCount:
		return "wrong_letter_count"
	case DuplicateLetter:
		return "duplicate_letter"
	default:
		return "unknown"
	}
}

// ValidationError reports bad puzzle input. It unwraps to
// apperrors.ErrInvalidInput.
type ValidationError struct {
	Kind   ErrorKind
	Got    int
	Letter byte
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case DuplicateLetter:
		return fmt.Sprintf("letters must have %d unique characters, %q repeats", LettersCount, e.Letter)
	default:
		return fmt.Sprintf("letters must have %d unique characters, got %d", LettersCount, e.Got)
	}
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// Letters is a validated puzzle letter set. The first letter is required.
type Letters struct {
	order   [LettersCount]byte
	allowed [256]bool
}

// ParseLetters lowercases ASCII letters, collapses consecutive repeated
// bytes and validates that exactly LettersCount distinct letters remain. The
// first byte is the required letter. Whitespace is not stripped; see
// NormalizeLetters for form input.
func ParseLetters(s string) (Letters, error) {
	var l Letters
	n := 0
	for i := 0; i < len(s); i++ {
		c := lower(s[i])
		if i > 0 && c == lower(s[i-1]) {
			continue
		}
		if n < LettersCount {
			l.order[n] = c
		}
		n++
	}
	if n != LettersCount {
		return Letters{}, &ValidationError{Kind: WrongLetterCount, Got: n}
	}
	for _, c := range l.order {
		if l.allowed[c] {
			return Letters{}, &ValidationError{Kind: DuplicateLetter, Got: n, Letter: c}
		}
		l.allowed[c] = true
	}
	return l, nil
}

// Required returns the letter every answer must contain.
func (l Letters) Required() byte {
	return l.order[0]
}

// Contains reports whether c is one of the puzzle letters.
func (l Letters) Contains(c byte) bool {
	return l.allowed[c]
}

func (l Letters) String() string {
	return string(l.order[:])
}
