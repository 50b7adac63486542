package spellingbee

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/qxuken/word-puzzles/internal/words"
	"github.com/qxuken/word-puzzles/internal/words/dictionary"
)

// Variant names the scan strategy.
type Variant string

const (
	VariantSimple Variant = "simple"
	VariantHinted Variant = "hinted"
)

// LengthHints maps a starting letter to the word lengths allowed for it.
type LengthHints map[byte][]int

// Prefix is a two-letter starting prefix.
type Prefix [2]byte

func (p Prefix) String() string {
	return string(p[:])
}

// Query is a validated, immutable scan request. It is safe to reuse and to
// scan concurrently.
type Query struct {
	variant  Variant
	letters  Letters
	hints    LengthHints
	lengths  [256]uint64
	hinted   [256]bool
	prefixes []Prefix
}

// bucket is one contiguous dictionary range to scan. When constrained is set
// only word lengths present in the lengths bitmask are accepted.
type bucket struct {
	r           dictionary.Range
	constrained bool
	lengths     uint64
}

// NewSimple builds a query without hints.
func NewSimple(letters string) (*Query, error) {
	l, err := ParseLetters(letters)
	if err != nil {
		return nil, err
	}
	return &Query{variant: VariantSimple, letters: l}, nil
}

// NewHinted builds a query with optional length hints and starting prefixes.
// Hint keys and prefixes are lowercased; repeated prefixes are visited once.
func NewHinted(letters string, hints LengthHints, prefixes []Prefix) (*Query, error) {
	l, err := ParseLetters(letters)
	if err != nil {
		return nil, err
	}
	q := &Query{variant: VariantHinted, letters: l, hints: make(LengthHints, len(hints))}
	for c, lens := range hints {
		c = lower(c)
		q.hinted[c] = true
		q.hints[c] = append(q.hints[c], lens...)
		for _, n := range lens {
			if n > 0 && n < 64 {
				q.lengths[c] |= 1 << n
			}
		}
	}
	for c, lens := range q.hints {
		slices.Sort(lens)
		q.hints[c] = slices.Compact(lens)
	}
	for _, p := range prefixes {
		p = Prefix{lower(p[0]), lower(p[1])}
		if !slices.Contains(q.prefixes, p) {
			q.prefixes = append(q.prefixes, p)
		}
	}
	return q, nil
}

func (q *Query) Variant() Variant {
	return q.variant
}

func (q *Query) Letters() Letters {
	return q.letters
}

// Key is a canonical description of the query. Queries with equal keys
// return equal results from the same store.
func (q *Query) Key() string {
	var b strings.Builder
	b.WriteString(string(q.variant))
	b.WriteByte(':')
	b.WriteString(q.letters.String())
	if q.variant == VariantSimple {
		return b.String()
	}
	b.WriteByte(':')
	keys := make([]byte, 0, len(q.hints))
	for c := range q.hints {
		keys = append(keys, c)
	}
	slices.Sort(keys)
	for i, c := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteByte(c)
		b.WriteByte('=')
		for j, n := range q.hints[c] {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(n))
		}
	}
	b.WriteByte(':')
	for i, p := range q.prefixes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	return b.String()
}

// Scan returns every accepted word, grouped by bucket in visiting order and
// in dictionary order within each bucket.
func (q *Query) Scan(s *words.Store) []string {
	out := make([]string, 0)
	for _, b := range q.plan(s) {
		out = q.scanBucket(out, s.Dict, b)
	}
	return out
}

// ScanParallel scans every bucket on its own goroutine and concatenates the
// results in the same order Scan produces.
func (q *Query) ScanParallel(ctx context.Context, s *words.Store) ([]string, error) {
	buckets := q.plan(s)
	parts := make([][]string, len(buckets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, b := range buckets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parts[i] = q.scanBucket(nil, s.Dict, b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scanning buckets: %w", err)
	}

	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]string, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// plan lists the buckets to scan. With prefixes only those two-letter
// buckets are visited; otherwise each letter's one-letter bucket is. When
// hints are present, a starting letter without an entry is skipped entirely.
func (q *Query) plan(s *words.Store) []bucket {
	var buckets []bucket
	visit := func(prefix []byte) {
		start := prefix[0]
		if !q.letters.Contains(start) {
			return
		}
		if len(q.hints) > 0 && !q.hinted[start] {
			return
		}
		r, ok := s.Index.SearchRange(prefix)
		if !ok {
			return
		}
		buckets = append(buckets, bucket{r: r, constrained: q.hinted[start], lengths: q.lengths[start]})
	}

	if len(q.prefixes) > 0 {
		for _, p := range q.prefixes {
			visit(p[:])
		}
		return buckets
	}
	for _, c := range q.letters.order {
		visit([]byte{c})
	}
	return buckets
}

func (q *Query) scanBucket(out []string, d *dictionary.Dictionary, b bucket) []string {
	for w := range d.IterRange(b.r) {
		if q.accepts(w, b) {
			out = append(out, string(w))
		}
	}
	return out
}

func (q *Query) accepts(w []byte, b bucket) bool {
	n := len(w)
	if n <= MinLength || n > MaxLength {
		return false
	}
	if b.constrained && b.lengths&(1<<n) == 0 {
		return false
	}
	required := false
	for _, c := range w {
		if !q.letters.allowed[c] {
			return false
		}
		if c == q.letters.order[0] {
			required = true
		}
	}
	return required
}

// ScanSimple validates letters and runs a simple scan.
func ScanSimple(s *words.Store, letters string) ([]string, error) {
	q, err := NewSimple(letters)
	if err != nil {
		return nil, err
	}
	return q.Scan(s), nil
}

// ScanHinted validates letters and runs a hinted scan.
func ScanHinted(s *words.Store, letters string, hints LengthHints, prefixes []Prefix) ([]string, error) {
	q, err := NewHinted(letters, hints, prefixes)
	if err != nil {
		return nil, err
	}
	return q.Scan(s), nil
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
