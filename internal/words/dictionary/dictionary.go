// Package dictionary holds the immutable, byte-sorted word list every
// search and puzzle scan reads from.
package dictionary

import (
	"bytes"
	_ "embed"
	"fmt"
	"iter"
	"os"
	"slices"
)

//go:embed data/words.txt
var embedded []byte

// Range is a half-open [Start, End) span of dictionary indexes.
type Range struct {
	Start int
	End   int
}

// Len returns the number of words covered by r.
func (r Range) Len() int {
	return r.End - r.Start
}

// Dictionary is a sorted, read-only sequence of words. It is safe for
// concurrent use once returned by Load.
type Dictionary struct {
	words [][]byte
}

type loadOptions struct {
	dedupe bool
}

// Option configures Load.
type Option func(*loadOptions)

// WithDedupe drops repeated words after sorting.
func WithDedupe() Option {
	return func(o *loadOptions) { o.dedupe = true }
}

// Load parses a newline-separated word list. Empty lines are discarded and a
// trailing '\r' is stripped from each line. The returned dictionary keeps
// references into data, which must not be modified afterwards.
func Load(data []byte, opts ...Option) *Dictionary {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	words := make([][]byte, 0, bytes.Count(data, []byte{'\n'})+1)
	for line := range bytes.SplitSeq(data, []byte{'\n'}) {
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			continue
		}
		words = append(words, line[:len(line):len(line)])
	}
	slices.SortFunc(words, bytes.Compare)
	if o.dedupe {
		words = slices.CompactFunc(words, bytes.Equal)
	}
	return &Dictionary{words: words}
}

// Embedded loads the word list compiled into the binary.
func Embedded(opts ...Option) *Dictionary {
	return Load(embedded, opts...)
}

// LoadFile reads a word list from disk.
func LoadFile(path string, opts ...Option) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading word list %s: %w", path, err)
	}
	return Load(data, opts...), nil
}

func (d *Dictionary) Size() int {
	return len(d.words)
}

// Get returns the word at index i, or false when i is out of bounds.
func (d *Dictionary) Get(i int) ([]byte, bool) {
	if i < 0 || i >= len(d.words) {
		return nil, false
	}
	return d.words[i], true
}

// All iterates the whole dictionary in sorted order.
func (d *Dictionary) All() iter.Seq[[]byte] {
	return d.IterRange(Range{Start: 0, End: len(d.words)})
}

// IterRange iterates the words in r. The range must come from the shortcut
// index or the full span; anything else is a programming error and panics.
func (d *Dictionary) IterRange(r Range) iter.Seq[[]byte] {
	if r.Start < 0 || r.Start > r.End || r.End > len(d.words) {
		panic(fmt.Sprintf("dictionary: range [%d, %d) out of bounds for size %d", r.Start, r.End, len(d.words)))
	}
	words := d.words[r.Start:r.End]
	return func(yield func([]byte) bool) {
		for _, w := range words {
			if !yield(w) {
				return
			}
		}
	}
}

// SearchRange returns the words in r that start with prefix.
func (d *Dictionary) SearchRange(r Range, prefix []byte) []string {
	out := make([]string, 0)
	for w := range d.IterRange(r) {
		if bytes.HasPrefix(w, prefix) {
			out = append(out, string(w))
		}
	}
	return out
}
