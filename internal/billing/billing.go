// Package billing extracts normalized usage records from a utility's
// exported bill CSV.
//
// The export is messy by design: several metadata lines precede the real
// header row, column order varies between export versions, numeric cells
// carry currency symbols and quote wrapping, and non-billing line items
// (summaries, adjustments) are interleaved with billing rows. The extractor
// is best-effort at the row level (a malformed row is dropped, not fatal)
// but fails loudly when the overall shape is wrong: no header, required
// columns missing, or nothing usable left.
package billing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wallboard/internal/csv"
	appLog "wallboard/internal/log"
	"wallboard/internal/model"
)

// ErrHeaderNotFound indicates no row qualifying as the bill header was found.
var ErrHeaderNotFound = errors.New("billing: header row not found")

// ErrNoRecords indicates the header was valid but no data row survived
// filtering.
var ErrNoRecords = errors.New("billing: no valid records in input")

// ColumnsMissingError reports required columns absent from the header row.
type ColumnsMissingError struct {
	Missing []string // required column names that were not resolved
	Header  []string // normalized header cells, for diagnostics
}

func (e *ColumnsMissingError) Error() string {
	return fmt.Sprintf("billing: required columns missing: %s (header: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Header, " | "))
}

// columns holds resolved header column indices. -1 means not present.
type columns struct {
	typ       int
	startDate int
	endDate   int
	importKWh int
	exportKWh int
	cost      int
}

// ExtractRecords parses a bill CSV export into billing records.
//
// The billing period's END DATE is the authoritative record date. Rows whose
// TYPE cell does not contain "billing" are skipped, as are rows with
// unparseable dates. Usage is net import minus export when that is positive,
// raw import otherwise.
func ExtractRecords(text string) ([]model.BillingRecord, error) {
	rows := dropBlankRows(csv.Tokenize(text))

	headerIdx, cols, err := findHeader(rows)
	if err != nil {
		return nil, err
	}

	minFields := cols.endDate
	if cols.importKWh > minFields {
		minFields = cols.importKWh
	}
	minFields++

	records := make([]model.BillingRecord, 0, len(rows)-headerIdx-1)
	for _, row := range rows[headerIdx+1:] {
		if len(row) < minFields {
			continue
		}

		if cols.typ >= 0 && cols.typ < len(row) {
			typ := normalizeCell(row[cols.typ])
			if typ != "" && !strings.Contains(typ, "billing") {
				continue
			}
		}

		date, ok := parseBillDate(normalizeCell(row[cols.endDate]))
		if !ok {
			appLog.Debug("billing: dropping row with unparseable date", "cell", row[cols.endDate])
			continue
		}

		imp := parseAmount(normalizeCell(row[cols.importKWh]))
		var exp float64
		if cols.exportKWh >= 0 && cols.exportKWh < len(row) {
			exp = parseAmount(normalizeCell(row[cols.exportKWh]))
		}

		// Net metering can push usage to zero or below when export edges
		// past import; fall back to raw import in that case.
		usage := imp - exp
		if usage <= 0 {
			usage = imp
		}

		rec := model.BillingRecord{
			Date:     date.Format("2006-01-02"),
			UsageKWh: usage,
		}

		if cols.cost >= 0 && cols.cost < len(row) {
			if c, ok := parseAmountStrict(normalizeCell(row[cols.cost])); ok {
				rec.Cost = &c
			}
		}

		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// findHeader scans rows top-down for the bill header and resolves column
// indices against it. Metadata rows preceding the header never qualify
// because they lack the TYPE column.
func findHeader(rows [][]string) (int, columns, error) {
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = normalizeCell(c)
		}
		if !isHeaderRow(cells) {
			continue
		}

		cols := resolveColumns(cells)

		var missing []string
		if cols.endDate < 0 {
			missing = append(missing, "end date")
		}
		if cols.importKWh < 0 {
			missing = append(missing, "import (kwh)")
		}
		if len(missing) > 0 {
			return 0, cols, &ColumnsMissingError{Missing: missing, Header: cells}
		}
		return i, cols, nil
	}
	return 0, columns{}, ErrHeaderNotFound
}

// isHeaderRow reports whether normalized cells look like the bill header:
// a literal "type" cell plus a start-date or end-date cell.
func isHeaderRow(cells []string) bool {
	hasType := false
	hasDate := false
	for _, c := range cells {
		if c == "type" {
			hasType = true
		}
		if strings.Contains(c, "start date") || strings.Contains(c, "end date") {
			hasDate = true
		}
	}
	return hasType && hasDate
}

// resolveColumns maps known columns onto normalized header cells. Resolution
// is per-column and order-independent.
func resolveColumns(cells []string) columns {
	cols := columns{typ: -1, startDate: -1, endDate: -1, importKWh: -1, exportKWh: -1, cost: -1}
	for i, c := range cells {
		switch {
		case c == "type" && cols.typ < 0:
			cols.typ = i
		case strings.Contains(c, "start date") && cols.startDate < 0:
			cols.startDate = i
		case strings.Contains(c, "end date") && cols.endDate < 0:
			cols.endDate = i
		case strings.Contains(c, "import") && strings.Contains(c, "kwh") && cols.importKWh < 0:
			cols.importKWh = i
		case strings.Contains(c, "export") && strings.Contains(c, "kwh") && cols.exportKWh < 0:
			cols.exportKWh = i
		case c == "cost" && cols.cost < 0:
			cols.cost = i
		}
	}
	return cols
}

// normalizeCell strips quote wrapping and whitespace, lowercased. The
// tokenizer already removed well-formed quoting; this also tolerates cells
// that arrive pre-unquoted or with stray wrapping, without corrupting either.
func normalizeCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.ToLower(strings.TrimSpace(s))
}

var billDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	time.RFC3339,
}

// parseBillDate parses a date cell. Known layouts are tried first; as a
// fallback the cell is split on "/" or "-" and read as explicit
// year-month-day segments.
func parseBillDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range billDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '-'
	})
	if len(parts) != 3 {
		return time.Time{}, false
	}
	year, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	day, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// parseAmount parses a numeric cell after stripping everything that is not a
// digit, '.', or '-' (currency symbols, thousands separators, units).
// Unparseable or empty cells yield 0.
func parseAmount(s string) float64 {
	v, _ := parseAmountStrict(s)
	return v
}

func parseAmountStrict(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// dropBlankRows removes rows whose every cell trims to empty.
func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		blank := true
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, row)
		}
	}
	return out
}
