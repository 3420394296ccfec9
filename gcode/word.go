// Package gcode tokenizes a single normalized RS-274/NGC block into words
// and enforces the modal-group-exclusivity rule of spec section 4.2. It
// does not interpret what a word means — that is the canonical machine's
// job — it only lexes and groups.
package gcode

import (
	"strconv"

	"github.com/nasa-jpl/tinyg/status"
)

// Word is one letter/value pair parsed from a block, e.g. "X10.5" -> {'X',
// 10.5} or "G1" -> {'G', 1}.
type Word struct {
	Letter byte
	Value  float64
}

// Block is the result of tokenizing one line: its words, in the order
// they appeared, plus the line number if an N word was present.
type Block struct {
	Words      []Word
	LineNumber int
	HasLine    bool
}

// Has reports whether the block contains a word with the given letter,
// returning its value if so.
func (b Block) Has(letter byte) (float64, bool) {
	for _, w := range b.Words {
		if w.Letter == letter {
			return w.Value, true
		}
	}
	return 0, false
}

// All returns every word in the block with the given letter, in order.
// Used for I/J/K which may legitimately repeat across axes in some
// dialects, and for diagnostic purposes; RS-274 words are normally
// singular per letter and callers should prefer Has.
func (b Block) All(letter byte) []Word {
	var out []Word
	for _, w := range b.Words {
		if w.Letter == letter {
			out = append(out, w)
		}
	}
	return out
}

// validLetters is the set of letters this dialect recognizes at all; any
// other letter is an UnrecognizedCommand.
var validLetters = map[byte]bool{
	'A': true, 'B': true, 'C': true, 'D': true, 'F': true, 'G': true,
	'I': true, 'J': true, 'K': true, 'L': true, 'M': true, 'N': true,
	'P': true, 'Q': true, 'R': true, 'S': true, 'T': true, 'X': true,
	'Y': true, 'Z': true,
}

// Tokenize scans a normalized block (upper-case, whitespace-stripped,
// comments already removed) into a Block of words.
//
// A malformed numeric value yields status.BadNumberFormat. A bare numeric
// value with no preceding letter yields status.ExpectedCommandLetter. An
// unrecognized letter yields status.UnrecognizedCommand. An empty block
// (e.g. a comment-only line) yields an empty Block and status.OK — the
// caller decides whether that is meaningful.
func Tokenize(block string) (Block, status.Code) {
	var b Block
	i := 0
	n := len(block)
	for i < n {
		c := block[i]
		if !isLetter(c) {
			return b, status.ExpectedCommandLetter
		}
		if !validLetters[c] {
			return b, status.UnrecognizedCommand
		}
		i++
		start := i
		seenDigitOrDot := false
		for i < n && isNumberByte(block[i]) {
			if block[i] != '+' && block[i] != '-' {
				seenDigitOrDot = true
			}
			i++
		}
		if i == start || !seenDigitOrDot {
			return b, status.BadNumberFormat
		}
		val, err := strconv.ParseFloat(block[start:i], 64)
		if err != nil {
			return b, status.BadNumberFormat
		}
		w := Word{Letter: c, Value: val}
		if c == 'N' {
			b.LineNumber = int(val)
			b.HasLine = true
		}
		b.Words = append(b.Words, w)
	}
	return b, status.OK
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == '+' || c == '-'
}

// Normalize strips comments, whitespace, and case from a raw host line so
// it is ready for Tokenize. Two comment forms are recognized: "(...)"
// in-line (discarded, may appear mid-block) and ";..." to end of line.
// Tab and space characters outside comments are discarded.
func Normalize(raw string) string {
	out := make([]byte, 0, len(raw))
	inParenComment := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inParenComment {
			if c == ')' {
				inParenComment = false
			}
			continue
		}
		switch c {
		case '(':
			inParenComment = true
		case ';':
			return string(out)
		case ' ', '\t', '\r', '\n':
			// discard
		default:
			out = append(out, upper(c))
		}
	}
	return string(out)
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
