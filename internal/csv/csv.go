// Package csv implements a small quoted-field-aware CSV tokenizer.
//
// It covers the RFC 4180 subset the dashboard's feeds actually use: quoted
// fields, embedded commas and newlines inside quotes, and doubled-quote
// escaping. It is deliberately unopinionated: no trimming, no type coercion,
// no row filtering. Callers apply their own normalization rules on top.
package csv

import "strings"

// Tokenize splits raw CSV text into rows of string fields.
//
// Rules:
//   - '"' toggles quoted-field state; a doubled '"' inside a quoted field
//     emits one literal quote.
//   - ',' outside quotes ends the current field.
//   - '\n', or '\r' optionally followed by '\n', outside quotes ends the
//     current field and row. Inside quotes line breaks are literal data.
//   - At end of input any pending field/row is flushed.
//
// Empty input yields zero rows. A trailing line terminator yields no extra
// empty row.
func Tokenize(text string) [][]string {
	var rows [][]string
	var row []string
	var field strings.Builder
	inQuotes := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '"':
			if inQuotes && i+1 < len(text) && text[i+1] == '"' {
				// Doubled quote inside a quoted field: one literal quote.
				field.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ',':
			if inQuotes {
				field.WriteByte(c)
				continue
			}
			row = append(row, field.String())
			field.Reset()
		case '\r', '\n':
			if inQuotes {
				field.WriteByte(c)
				continue
			}
			if c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				// CRLF is a single terminator.
				i++
			}
			row = append(row, field.String())
			field.Reset()
			rows = append(rows, row)
			row = nil
		default:
			field.WriteByte(c)
		}
	}

	// Flush the pending field and row when input does not end in a
	// line terminator.
	if field.Len() > 0 || row != nil {
		row = append(row, field.String())
		rows = append(rows, row)
	}

	return rows
}
