// Package gcode parses single G-code blocks typed at the bench console
package gcode

import (
	"errors"
	"fmt"
	"strconv"

	"edmpulser/core"
)

var (
	// ErrBadNumber is returned for a word letter without a valid value
	ErrBadNumber = errors.New("gcode: bad number format")
	// ErrNotMCode is returned by Block for lines that are not M-codes
	ErrNotMCode = errors.New("gcode: not an M-code")
)

// Line is one parsed block
type Line struct {
	Letter  byte // G, M or T; zero for a words-only or comment line
	Number  int
	Words   map[byte]float64
	Comment string
}

// Parse parses one line. Blank lines return a nil Line.
func Parse(s string) (*Line, error) {
	i := skipSpace(s, 0)
	if i >= len(s) {
		return nil, nil
	}

	l := &Line{Words: make(map[byte]float64)}
	if c := upper(s[i]); c == 'G' || c == 'M' || c == 'T' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j == i+1 {
			return nil, fmt.Errorf("%w: %c without number", ErrBadNumber, c)
		}
		n, err := strconv.Atoi(s[i+1 : j])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadNumber, s[i:j])
		}
		l.Letter, l.Number = c, n
		i = j
	}

	for {
		i = skipSpace(s, i)
		if i >= len(s) {
			return l, nil
		}
		if s[i] == ';' || s[i] == '(' {
			l.Comment = s[i:]
			return l, nil
		}
		if !isLetter(s[i]) {
			return nil, fmt.Errorf("%w: unexpected %q", ErrBadNumber, s[i])
		}
		letter := upper(s[i])
		j := number(s, i+1)
		v, err := strconv.ParseFloat(s[i+1:j], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %c%s", ErrBadNumber, letter, s[i+1:j])
		}
		l.Words[letter] = v
		i = j
	}
}

// Block converts an M line to a core.Block
func (l *Line) Block() (*core.Block, error) {
	if l == nil || l.Letter != 'M' {
		return nil, ErrNotMCode
	}
	if l.Number < 0 || l.Number > 0xFFFF {
		return nil, fmt.Errorf("%w: M%d", ErrBadNumber, l.Number)
	}
	return &core.Block{Code: core.MCode(l.Number), Words: l.Words}, nil
}

// number returns the end of the numeric text starting at pos
func number(s string, pos int) int {
	if pos < len(s) && (s[pos] == '-' || s[pos] == '+') {
		pos++
	}
	for pos < len(s) && (isDigit(s[pos]) || s[pos] == '.') {
		pos++
	}
	return pos
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
