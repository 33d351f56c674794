// Package labelscan extracts numbers that follow a text label in loosely
// formatted diagnostic output. It assumes nothing about column positions:
// only that a label appears and a number follows it on the same line or on
// the next non-empty line.
package labelscan

import (
	"strconv"
	"strings"
	"unicode"
)

// Unit selects which numeric tokens are accepted after a label.
type Unit int

const (
	// Count accepts a bare number.
	Count Unit = iota
	// Millis requires an "ms" suffix, attached ("1.5ms") or as the next token.
	Millis
	// Percent requires a "%" suffix, attached or as the next token.
	Percent
)

// Matcher reports whether a line matches.
type Matcher func(line string) bool

// Contains matches lines that contain every word, case-insensitively.
func Contains(words ...string) Matcher {
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}
	return func(line string) bool {
		l := strings.ToLower(line)
		for _, w := range lowered {
			if !strings.Contains(l, w) {
				return false
			}
		}
		return true
	}
}

// Any matches lines matched by at least one of ms.
func Any(ms ...Matcher) Matcher {
	return func(line string) bool {
		for _, m := range ms {
			if m(line) {
				return true
			}
		}
		return false
	}
}

// Scanner walks the lines of a text with a forward-only cursor.
type Scanner struct {
	lines []string
	pos   int
}

// New splits text into lines. CRLF line endings are accepted.
func New(text string) *Scanner {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return &Scanner{lines: strings.Split(text, "\n")}
}

// Lines returns the lines visible to the scanner.
func (s *Scanner) Lines() []string { return s.lines }

// Block returns a scanner over the lines starting at the first line matching
// start and ending before the next line matching any of stops. The parent
// cursor moves to the end of the block.
func (s *Scanner) Block(start Matcher, stops ...Matcher) (*Scanner, bool) {
	begin := -1
	for i := s.pos; i < len(s.lines); i++ {
		if start(s.lines[i]) {
			begin = i
			break
		}
	}
	if begin < 0 {
		return nil, false
	}
	stop := Any(stops...)
	end := len(s.lines)
	for i := begin + 1; i < len(s.lines); i++ {
		if len(stops) > 0 && stop(s.lines[i]) {
			end = i
			break
		}
	}
	s.pos = end
	return &Scanner{lines: s.lines[begin:end]}, true
}

// FindNumber finds the next line at or after the cursor containing label and
// returns the number that follows the label on that line, or the first
// matching number on the next non-empty line. On success the cursor moves
// past the consumed line.
func (s *Scanner) FindNumber(label string, unit Unit) (float64, bool) {
	match := Contains(label)
	for i := s.pos; i < len(s.lines); i++ {
		line := s.lines[i]
		if !match(line) {
			continue
		}
		if v, ok := NumberAfter(line, label, unit); ok {
			s.pos = i + 1
			return v, true
		}
		for j := i + 1; j < len(s.lines); j++ {
			if strings.TrimSpace(s.lines[j]) == "" {
				continue
			}
			if v, ok := firstNumber(tokenize(s.lines[j]), unit); ok {
				s.pos = j + 1
				return v, true
			}
			break
		}
	}
	return 0, false
}

// NumberAfter returns the first number of the given unit that appears after
// label on line. The label match is case-insensitive.
func NumberAfter(line, label string, unit Unit) (float64, bool) {
	idx := strings.Index(strings.ToLower(line), strings.ToLower(label))
	if idx < 0 {
		return 0, false
	}
	return firstNumber(tokenize(line[idx+len(label):]), unit)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '(' || r == ')' || r == '[' || r == ']' || r == '=' || r == ':' || r == '~'
	})
}

func firstNumber(tokens []string, unit Unit) (float64, bool) {
	for i, tok := range tokens {
		var nextTok string
		if i+1 < len(tokens) {
			nextTok = strings.ToLower(tokens[i+1])
		}
		switch unit {
		case Millis:
			if v, ok := parseSuffixed(tok, "ms", nextTok); ok {
				return v, true
			}
		case Percent:
			if v, ok := parseSuffixed(tok, "%", nextTok); ok {
				return v, true
			}
		default:
			if v, ok := parseNumber(strings.TrimRight(tok, ".;")); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func parseSuffixed(tok, suffix, nextTok string) (float64, bool) {
	lower := strings.ToLower(strings.TrimRight(tok, ".;"))
	if strings.HasSuffix(lower, suffix) {
		return parseNumber(lower[:len(lower)-len(suffix)])
	}
	if strings.HasPrefix(nextTok, suffix) {
		return parseNumber(lower)
	}
	return 0, false
}

// parseNumber accepts plain decimal numbers only, rejecting words such as
// "Inf" or "NaN" that strconv would otherwise parse.
func parseNumber(tok string) (float64, bool) {
	if tok == "" {
		return 0, false
	}
	c := tok[0]
	if c != '-' && c != '+' && c != '.' && (c < '0' || c > '9') {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
