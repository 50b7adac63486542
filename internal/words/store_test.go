package words

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qxuken/word-puzzles/internal/words/dictionary"
	"github.com/qxuken/word-puzzles/pkg/config"
)

func testStore() *Store {
	return NewStore(dictionary.Load([]byte("apple\napply\napt\nbanana\nband\nbandit\ncat")))
}

func TestSearchPrefix(t *testing.T) {
	s := testStore()

	tests := []struct {
		prefix string
		limit  int
		want   []string
		total  int
	}{
		{"ap", 0, []string{"apple", "apply", "apt"}, 3},
		{"APP", 0, []string{"apple", "apply"}, 2},
		{"band", 0, []string{"band", "bandit"}, 2},
		{"b", 1, []string{"banana"}, 3},
		{"", 2, []string{"apple", "apply"}, 7},
		{"zz", 10, []string{}, 0},
		{"bx", 10, []string{}, 0},
		{"9", 10, []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, total := s.SearchPrefix(tt.prefix, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.total, total)
		})
	}
}

func TestRangeAbsentIsEmpty(t *testing.T) {
	s := testStore()
	assert.Equal(t, 0, s.Range([]byte("q")).Len())
	assert.Equal(t, 3, s.Range([]byte("a")).Len())
}

func TestProviderEmbedded(t *testing.T) {
	p := NewProvider(config.DictionaryConfig{})
	assert.False(t, p.Ready())

	s, err := p.Store()
	require.NoError(t, err)
	assert.True(t, p.Ready())
	assert.Greater(t, s.Dict.Size(), 1000)
	assert.Equal(t, s.Dict.Size(), s.Index.Size())
}

func TestProviderBuildsOnce(t *testing.T) {
	p := NewProvider(config.DictionaryConfig{})

	const callers = 16
	stores := make([]*Store, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Store()
			assert.NoError(t, err)
			stores[i] = s
		}()
	}
	wg.Wait()

	for _, s := range stores[1:] {
		assert.Same(t, stores[0], s)
	}
}

func TestProviderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("beta\nalpha\nbeta\n"), 0o644))

	s, err := NewProvider(config.DictionaryConfig{Path: path, Dedupe: true}).Store()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Dict.Size())

	p := NewProvider(config.DictionaryConfig{Path: filepath.Join(t.TempDir(), "nope.txt")})
	_, err = p.Store()
	assert.Error(t, err)
	assert.False(t, p.Ready())

	// the failure is cached like a success
	_, again := p.Store()
	assert.Equal(t, err, again)
}
