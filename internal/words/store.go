// Package words owns the dictionary and shortcut index pair that every search
// and puzzle scan reads from. The pair is built once and shared read-only.
package words

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qxuken/word-puzzles/internal/words/dictionary"
	"github.com/qxuken/word-puzzles/internal/words/shortcut"
	"github.com/qxuken/word-puzzles/pkg/config"
)

// Store pairs a dictionary with the index built from it.
type Store struct {
	Dict  *dictionary.Dictionary
	Index *shortcut.Index
}

// NewStore indexes d.
func NewStore(d *dictionary.Dictionary) *Store {
	return &Store{Dict: d, Index: shortcut.Build(d)}
}

// Range resolves prefix through the index. Absent prefixes yield an empty
// range at offset zero.
func (s *Store) Range(prefix []byte) dictionary.Range {
	r, ok := s.Index.SearchRange(prefix)
	if !ok {
		return dictionary.Range{}
	}
	return r
}

// SearchPrefix returns up to limit words starting with prefix, and the total
// number of matches. prefix is lowercased; bytes past the second are matched
// by scanning inside the two-letter bucket. A limit <= 0 means no limit.
func (s *Store) SearchPrefix(prefix string, limit int) ([]string, int) {
	p := bytes.ToLower([]byte(prefix))
	out := make([]string, 0)
	total := 0
	for w := range s.Dict.IterRange(s.Range(p)) {
		if !bytes.HasPrefix(w, p) {
			continue
		}
		total++
		if limit <= 0 || len(out) < limit {
			out = append(out, string(w))
		}
	}
	return out, total
}

// Provider builds the Store on first use. Concurrent first callers wait for a
// single build and all observe the same result.
type Provider struct {
	cfg    config.DictionaryConfig
	load   func() (*Store, error)
	ready  atomic.Bool
	logger *slog.Logger
}

func NewProvider(cfg config.DictionaryConfig) *Provider {
	p := &Provider{
		cfg:    cfg,
		logger: slog.Default().With("component", "words"),
	}
	p.load = sync.OnceValues(p.build)
	return p
}

// Store returns the shared Store, building it on the first call.
func (p *Provider) Store() (*Store, error) {
	return p.load()
}

// Ready reports whether a Store has been built successfully.
func (p *Provider) Ready() bool {
	return p.ready.Load()
}

func (p *Provider) build() (*Store, error) {
	start := time.Now()
	var opts []dictionary.Option
	if p.cfg.Dedupe {
		opts = append(opts, dictionary.WithDedupe())
	}

	source := "embedded"
	var d *dictionary.Dictionary
	if p.cfg.Path == "" {
		d = dictionary.Embedded(opts...)
	} else {
		var err error
		source = p.cfg.Path
		d, err = dictionary.LoadFile(p.cfg.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading dictionary: %w", err)
		}
	}

	s := NewStore(d)
	one, two := s.Index.Buckets()
	p.logger.Info("dictionary loaded",
		"source", source,
		"words", d.Size(),
		"one_letter_buckets", one,
		"two_letter_buckets", two,
		"duration", time.Since(start),
	)
	p.ready.Store(true)
	return s, nil
}
