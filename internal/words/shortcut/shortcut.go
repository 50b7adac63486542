// Package shortcut implements a fixed-size prefix table over a sorted
// dictionary. It maps every one- and two-letter lowercase prefix to the
// dictionary offset where that prefix's bucket begins, so bucket ranges are
// answered with a table lookup and a short forward scan.
package shortcut

import (
	"github.com/qxuken/word-puzzles/internal/words/dictionary"
)

const (
	alphabet = 26
	// stride leaves room for the one-letter slot followed by its 26
	// two-letter slots.
	stride = alphabet + 1

	// TableSize is 26 one-letter plus 676 two-letter slots.
	TableSize = alphabet * stride

	absent = int32(-1)
)

// Index is immutable after Build and safe for concurrent readers.
type Index struct {
	size  int
	slots [TableSize]int32
}

// Build indexes d in one forward pass. d must be sorted by byte value.
func Build(d *dictionary.Dictionary) *Index {
	idx := &Index{size: d.Size()}
	for i := range idx.slots {
		idx.slots[i] = absent
	}

	var first, second byte
	i := 0
	for word := range d.All() {
		c1, ok := fold(word[0])
		if !ok {
			first, second = 0, 0
			i++
			continue
		}
		if c1 != first {
			idx.slots[oneLetter(c1)] = int32(i)
			first, second = c1, 0
		}
		if len(word) < 2 {
			second = 0
			i++
			continue
		}
		c2, ok := fold(word[1])
		if !ok {
			second = 0
		} else if c2 != second {
			idx.slots[twoLetter(c1, c2)] = int32(i)
			second = c2
		}
		i++
	}
	return idx
}

// Size returns the number of words in the indexed dictionary.
func (x *Index) Size() int {
	return x.size
}

// SearchRange returns the bucket of words starting with prefix. Only the
// first two bytes are indexed: longer prefixes resolve to their two-letter
// bucket and must be filtered by the caller. The boolean is false when no
// word has the prefix, which callers treat as an empty result.
func (x *Index) SearchRange(prefix []byte) (dictionary.Range, bool) {
	if len(prefix) == 0 {
		return dictionary.Range{Start: 0, End: x.size}, true
	}

	c1, ok := fold(prefix[0])
	if !ok {
		return dictionary.Range{}, false
	}
	left := x.slots[oneLetter(c1)]
	if left == absent {
		return dictionary.Range{}, false
	}
	right := x.size
	for c := c1 + 1; c <= 'z'; c++ {
		if next := x.slots[oneLetter(c)]; next != absent {
			right = int(next)
			break
		}
	}
	if len(prefix) == 1 {
		return dictionary.Range{Start: int(left), End: right}, true
	}

	c2, ok := fold(prefix[1])
	if !ok {
		return dictionary.Range{}, false
	}
	left = x.slots[twoLetter(c1, c2)]
	if left == absent {
		return dictionary.Range{}, false
	}
	for c := c2 + 1; c <= 'z'; c++ {
		if next := x.slots[twoLetter(c1, c)]; next != absent {
			right = int(next)
			break
		}
	}
	return dictionary.Range{Start: int(left), End: right}, true
}

// Buckets reports how many one- and two-letter buckets are populated.
func (x *Index) Buckets() (one, two int) {
	for c1 := byte('a'); c1 <= 'z'; c1++ {
		if x.slots[oneLetter(c1)] != absent {
			one++
		}
		for c2 := byte('a'); c2 <= 'z'; c2++ {
			if x.slots[twoLetter(c1, c2)] != absent {
				two++
			}
		}
	}
	return one, two
}

func oneLetter(c byte) int {
	return int(c-'a') * stride
}

func twoLetter(c1, c2 byte) int {
	return oneLetter(c1) + int(c2-'a') + 1
}

// fold lowercases an ASCII letter and reports whether it is one.
func fold(c byte) (byte, bool) {
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	return c, c >= 'a' && c <= 'z'
}
