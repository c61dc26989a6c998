package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{name: "empty", input: "", want: nil},
		{name: "separators only", input: "..-_ ", want: nil},
		{
			name:  "dotted numeric",
			input: "1.9.9",
			want:  []Token{{Numeric, "1"}, {Numeric, "9"}, {Numeric, "9"}},
		},
		{
			name:  "mixed runs lowercased",
			input: "v10.2Beta3",
			want:  []Token{{Textual, "v"}, {Numeric, "10"}, {Numeric, "2"}, {Textual, "beta"}, {Numeric, "3"}},
		},
		{
			name:  "leading zeros dropped",
			input: "007.000",
			want:  []Token{{Numeric, "7"}, {Numeric, "0"}},
		},
		{
			name:  "non ascii is a separator",
			input: "1.0é2",
			want:  []Token{{Numeric, "1"}, {Numeric, "0"}, {Numeric, "2"}},
		},
		{
			name:  "arabic-indic digits",
			input: "\u0661\u0662.\u0663",
			want:  []Token{{Numeric, "12"}, {Numeric, "3"}},
		},
		{
			name:  "fullwidth and devanagari digits",
			input: "\uff11\uff10-\u0966\u096d",
			want:  []Token{{Numeric, "10"}, {Numeric, "7"}},
		},
		{
			name:  "adjacent digit blocks",
			input: "\U0001D7D9\U0001D7CE",
			want:  []Token{{Numeric, "10"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2.0", "1.9.9", 1},
		{"v10", "v9", 1},
		{"10", "9", 1},
		{"1.0", "1.0.0", -1},
		{"1.0", "1.0", 0},
		{"1.0", "1-0", 0},
		{"1.0b", "1.0B", 0},
		{"1.0", "1.a", -1},
		{"1.0rc1", "1.0", 1},
		{"01.2", "1.2", 0},
		{"123456789012345678901234567890", "123456789012345678901234567889", 1},
		{"", "0", -1},
		{"\u0661\u0662", "9", 1},
		{"\u0661\u0662", "12", 0},
		{"", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(Tokenize(tt.a), Tokenize(tt.b)))
			assert.Equal(t, -tt.want, Compare(Tokenize(tt.b), Tokenize(tt.a)))
		})
	}
}

func TestKeyFor(t *testing.T) {
	key, ok := KeyFor("1.2.3", "123")
	assert.True(t, ok)
	assert.Equal(t, Key(Tokenize("1.2.3")), key)

	key, ok = KeyFor("unknown", "45")
	assert.True(t, ok)
	assert.Equal(t, Key(Tokenize("45")), key)

	_, ok = KeyFor("unknown", "unknown")
	assert.False(t, ok)

	high, _ := KeyFor("2.0", "unknown")
	low, _ := KeyFor("1.9.9", "unknown")
	assert.Equal(t, 1, high.Compare(low))
}

func TestLabel(t *testing.T) {
	tests := []struct {
		short, bundle string
		want          string
		ok            bool
	}{
		{"1.2.3", "123", "1.2.3 (123)", true},
		{"1.2.3", "1.2.3", "1.2.3", true},
		{"1.2.3", "unknown", "1.2.3", true},
		{"unknown", "77", "77", true},
		{"unknown", "unknown", "", false},
	}

	for _, tt := range tests {
		got, ok := Label(tt.short, tt.bundle)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}
