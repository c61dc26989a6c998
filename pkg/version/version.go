// Package version orders free-form plugin version strings.
//
// A version string is split into runs of digits and runs of letters. Digit
// runs compare as integers, letter runs compare case-insensitively, and a
// digit run always sorts before a letter run at the same position. Any other
// character is a separator.
package version

import (
	"fmt"
	"strings"
	"unicode"

	"pluginsync/pkg/models"
)

// TokenKind distinguishes numeric from textual runs. Numeric sorts first.
type TokenKind int

const (
	Numeric TokenKind = iota
	Textual
)

// Token is one run extracted from a version string. For Numeric tokens Value
// holds the digits without leading zeros ("0" for an all-zero run), so the
// comparison is exact for runs of any length.
type Token struct {
	Kind  TokenKind
	Value string
}

func (t Token) String() string {
	if t.Kind == Numeric {
		return t.Value
	}
	return fmt.Sprintf("%q", t.Value)
}

// Tokenize splits text into numeric and textual tokens. Any Unicode decimal
// digit counts toward a numeric run; only ASCII letters form textual runs.
func Tokenize(text string) []Token {
	var tokens []Token
	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsDigit(r):
			var digits strings.Builder
			j := i
			for ; j < len(runes) && unicode.IsDigit(runes[j]); j++ {
				digits.WriteByte(byte('0' + digitValue(runes[j])))
			}
			tokens = append(tokens, Token{Kind: Numeric, Value: trimZeros(digits.String())})
			i = j
		case isLetter(r):
			j := i
			for j < len(runes) && isLetter(runes[j]) {
				j++
			}
			tokens = append(tokens, Token{Kind: Textual, Value: strings.ToLower(string(runes[i:j]))})
			i = j
		default:
			i++
		}
	}
	return tokens
}

// Compare orders two token sequences lexicographically, returning -1, 0 or 1.
func Compare(a, b []Token) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareToken(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func compareToken(a, b Token) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if a.Kind == Numeric {
		// Values carry no leading zeros, so a longer run is a larger number.
		if len(a.Value) != len(b.Value) {
			if len(a.Value) < len(b.Value) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a.Value, b.Value)
}

// Key is the orderable form of a plugin's version.
type Key []Token

// Compare orders k against other.
func (k Key) Compare(other Key) int {
	return Compare(k, other)
}

// KeyFor derives the ranking key from a plugin's version fields. The short
// version wins when known, then the bundle version. ok is false when neither
// is known and the plugin cannot be ranked.
func KeyFor(short, bundle string) (Key, bool) {
	if short != models.UnknownVersion {
		return Key(Tokenize(short)), true
	}
	if bundle != models.UnknownVersion {
		return Key(Tokenize(bundle)), true
	}
	return nil, false
}

// Label renders a plugin's version for reports. ok is false when both fields
// are unknown.
func Label(short, bundle string) (string, bool) {
	switch {
	case short == models.UnknownVersion && bundle == models.UnknownVersion:
		return "", false
	case short == models.UnknownVersion:
		return bundle, true
	case bundle == models.UnknownVersion || bundle == short:
		return short, true
	}
	return fmt.Sprintf("%s (%s)", short, bundle), true
}

// digitValue returns the value of a decimal digit rune. Unicode assigns
// decimal digits in contiguous runs of ten starting at zero, so the value is
// the offset from the start of the run modulo ten.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	start := r
	for start > 0 && unicode.IsDigit(start-1) {
		start--
	}
	return int(r-start) % 10
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func trimZeros(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
