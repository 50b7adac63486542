// Command wordctl runs prefix searches and spelling-bee solves against a word
// list from the command line.
//
//	wordctl -prefix ab -limit 20
//	wordctl -letters gabcdef
//	wordctl -letters abcdefg -lengths "a:4,5;b:6" -prefixes "ab,ba"
//	wordctl -letters abcdefg -matrix hints.txt
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/qxuken/word-puzzles/internal/puzzle/spellingbee"
	"github.com/qxuken/word-puzzles/internal/words"
	"github.com/qxuken/word-puzzles/pkg/config"
	"github.com/qxuken/word-puzzles/pkg/logger"
)

type options struct {
	prefix   string
	letters  string
	lengths  string
	prefixes string
	matrix   string
	list     string
	dict     string
	dedupe   bool
	limit    int
	parallel bool
}

func main() {
	var opts options
	flag.StringVar(&opts.prefix, "prefix", "", "list words starting with this prefix")
	flag.StringVar(&opts.letters, "letters", "", "solve for seven puzzle letters, required letter first")
	flag.StringVar(&opts.lengths, "lengths", "", `length hints, e.g. "a:4,5;b:6"`)
	flag.StringVar(&opts.prefixes, "prefixes", "", `starting prefixes, e.g. "ab,ac"`)
	flag.StringVar(&opts.matrix, "matrix", "", "file holding the printed length grid")
	flag.StringVar(&opts.list, "list", "", `printed two-letter list, e.g. "ab-3 ac-1"`)
	flag.StringVar(&opts.dict, "dict", "", "word list file (default: embedded list)")
	flag.BoolVar(&opts.dedupe, "dedupe", false, "drop repeated words when loading")
	flag.IntVar(&opts.limit, "limit", 0, "maximum prefix results (0 = all)")
	flag.BoolVar(&opts.parallel, "parallel", false, "scan buckets concurrently")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	slog.SetDefault(logger.New(os.Stderr, *logLevel, "text", "service", "wordctl"))

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "wordctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if (opts.prefix == "") == (opts.letters == "") {
		return errors.New("exactly one of -prefix or -letters is required")
	}

	store, err := words.NewProvider(config.DictionaryConfig{Path: opts.dict, Dedupe: opts.dedupe}).Store()
	if err != nil {
		return err
	}

	start := time.Now()
	var found []string
	if opts.prefix != "" {
		var total int
		found, total = store.SearchPrefix(opts.prefix, opts.limit)
		slog.Info("prefix search", "prefix", opts.prefix, "total", total, "duration", time.Since(start))
	} else {
		q, err := buildQuery(opts)
		if err != nil {
			return err
		}
		if opts.parallel {
			found, err = q.ScanParallel(ctx, store)
			if err != nil {
				return err
			}
		} else {
			found = q.Scan(store)
		}
		slog.Info("solved", "query", q.Key(), "words", len(found), "duration", time.Since(start))
	}

	for _, w := range found {
		if _, err := fmt.Fprintln(out, w); err != nil {
			return err
		}
	}
	return nil
}

func buildQuery(opts options) (*spellingbee.Query, error) {
	raw := spellingbee.NormalizeLetters(opts.letters)
	if opts.lengths == "" && opts.prefixes == "" && opts.matrix == "" && opts.list == "" {
		return spellingbee.NewSimple(raw)
	}
	letters, err := spellingbee.ParseLetters(raw)
	if err != nil {
		return nil, err
	}

	hints := spellingbee.LengthHints{}
	if opts.matrix != "" {
		data, err := os.ReadFile(opts.matrix)
		if err != nil {
			return nil, fmt.Errorf("reading length grid: %w", err)
		}
		hints = spellingbee.ParseLengthMatrix(string(data), letters)
	}
	explicit, err := parseLengths(opts.lengths)
	if err != nil {
		return nil, err
	}
	for c, lens := range explicit {
		hints[c] = lens
	}

	prefixes, err := parsePrefixes(opts.prefixes)
	if err != nil {
		return nil, err
	}
	prefixes = append(prefixes, spellingbee.ParsePrefixList(opts.list, letters)...)
	return spellingbee.NewHinted(raw, hints, prefixes)
}

// parseLengths reads "a:4,5;b:6". An entry with no lengths ("c:") allows no
// words for that letter.
func parseLengths(s string) (spellingbee.LengthHints, error) {
	hints := spellingbee.LengthHints{}
	for entry := range strings.SplitSeq(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, list, ok := strings.Cut(entry, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || len(key) != 1 {
			return nil, fmt.Errorf("length hint %q: want <letter>:<n>[,<n>...]", entry)
		}
		lens := []int{}
		for field := range strings.SplitSeq(list, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			n, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("length hint %q: %w", entry, err)
			}
			lens = append(lens, n)
		}
		hints[key[0]] = lens
	}
	return hints, nil
}

// parsePrefixes reads "ab,ac".
func parsePrefixes(s string) ([]spellingbee.Prefix, error) {
	var out []spellingbee.Prefix
	for field := range strings.SplitSeq(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if len(field) != 2 {
			return nil, fmt.Errorf("prefix %q must have two letters", field)
		}
		out = append(out, spellingbee.Prefix{field[0], field[1]})
	}
	return out, nil
}
