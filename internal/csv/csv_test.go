package csv

import (
	stdcsv "encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeBasic(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "simple rows",
			input: "a,b,c\nd,e,f",
			want:  [][]string{{"a", "b", "c"}, {"d", "e", "f"}},
		},
		{
			name:  "quoted comma preserved",
			input: `a,"b,c",d`,
			want:  [][]string{{"a", "b,c", "d"}},
		},
		{
			name:  "doubled quote escaping",
			input: `"say ""hi"""`,
			want:  [][]string{{`say "hi"`}},
		},
		{
			name:  "crlf terminators",
			input: "a,b\r\nc,d\r\n",
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "bare cr terminator",
			input: "a\rb",
			want:  [][]string{{"a"}, {"b"}},
		},
		{
			name:  "newline inside quotes is data",
			input: "a,\"line1\nline2\",b",
			want:  [][]string{{"a", "line1\nline2", "b"}},
		},
		{
			name:  "empty fields",
			input: "a,,c",
			want:  [][]string{{"a", "", "c"}},
		},
		{
			name:  "trailing comma yields trailing empty field",
			input: "a,b,",
			want:  [][]string{{"a", "b", ""}},
		},
		{
			name:  "no trimming",
			input: " a , b ",
			want:  [][]string{{" a ", " b "}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestTokenizeEmptyInput(t *testing.T) {
	assert.Empty(t, Tokenize(""))
}

func TestTokenizeTrailingNewlineNoExtraRow(t *testing.T) {
	got := Tokenize("a,b\n")
	require.Len(t, got, 1)
	assert.Equal(t, []string{"a", "b"}, got[0])
}

func TestTokenizeBlankLineYieldsSingleEmptyField(t *testing.T) {
	// The tokenizer is unopinionated: a blank line is a row with one empty
	// field. Downstream extractors filter those.
	got := Tokenize("a\n\nb")
	require.Len(t, got, 3)
	assert.Equal(t, [][]string{{"a"}, {""}, {"b"}}, got)
}

// TestTokenizeRoundTrip renders rows with the standard library's CSV writer
// and tokenizes them back.
func TestTokenizeRoundTrip(t *testing.T) {
	rows := [][]string{
		{"plain", "with,comma", `with"quote`},
		{"", "  spaced  ", "multi\nline"},
		{"$83.83", "450.2", "2024-01-31"},
	}

	var b strings.Builder
	w := stdcsv.NewWriter(&b)
	require.NoError(t, w.WriteAll(rows))
	w.Flush()

	assert.Equal(t, rows, Tokenize(b.String()))
}
