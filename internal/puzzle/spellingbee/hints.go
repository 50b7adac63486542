package spellingbee

import (
	"strings"
	"unicode"
)

// Columns after the letter label in a hint matrix row cover these lengths.
const (
	matrixFirstLength = 4
	matrixColumns     = 5
)

// NormalizeLetters lowercases s and removes all whitespace.
func NormalizeLetters(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// ParseLengthMatrix reads the length grid printed with a puzzle's hints:
//
//	    4  5  6  7  8  Σ
//	a:  2  1  -  3  -  6
//	b:  -  4  2  -  1  7
//
// A row whose first byte is a puzzle letter yields an entry for that letter.
// Each of the next five columns that is not "-" allows words of length 4 to
// 8. Other rows are ignored; a repeated letter row replaces the earlier one.
func ParseLengthMatrix(text string, letters Letters) LengthHints {
	hints := make(LengthHints)
	for line := range strings.SplitSeq(strings.ToLower(text), "\n") {
		if line == "" || !letters.Contains(line[0]) {
			continue
		}
		fields := strings.Fields(line)
		lens := make([]int, 0, matrixColumns)
		for i := 1; i <= matrixColumns && i < len(fields); i++ {
			if fields[i] != "-" {
				lens = append(lens, matrixFirstLength+i-1)
			}
		}
		hints[line[0]] = lens
	}
	return hints
}

// ParsePrefixList extracts two-letter prefixes from free text such as
// "ab-3 ac-1 ba-2". Scanning left to right, every pair of adjacent puzzle
// letters is taken as a prefix and scanning resumes after it.
func ParsePrefixList(text string, letters Letters) []Prefix {
	b := []byte(strings.ToLower(text))
	var out []Prefix
	for i := 0; i+1 < len(b); {
		if letters.Contains(b[i]) && letters.Contains(b[i+1]) {
			out = append(out, Prefix{b[i], b[i+1]})
			i += 2
			continue
		}
		i++
	}
	return out
}
