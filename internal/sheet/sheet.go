// Package sheet segments a general-purpose spreadsheet CSV export into
// titled sections.
//
// The export carries no explicit section markers; sectioning is a row-shape
// heuristic. A row whose first cell is not date-like and whose second cell is
// non-empty opens a new section (title plus column headers); every other
// non-blank row is data for the currently open section. The dashboard uses
// this to group a vehicle's maintenance history under the vehicle's name.
//
// Malformed input never fails; the worst case is zero sections.
package sheet

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"wallboard/internal/csv"
	"wallboard/internal/model"
)

// dateLike matches a leading M/D/Y date, e.g. "1/1/24" or "12/31/2024".
var dateLike = regexp.MustCompile(`^\d{1,2}/\d{1,2}/(\d{4}|\d{2})`)

// ExtractSections parses a spreadsheet CSV export into ordered sections.
// Rows within each section are sorted descending by the date in their first
// cell. Data rows appearing before any section header are discarded.
func ExtractSections(text string) []model.SheetSection {
	rows := csv.Tokenize(text)

	sections := make([]model.SheetSection, 0)
	var open *model.SheetSection

	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}

		if isSectionHeader(row) {
			if open != nil {
				sections = append(sections, finalize(*open))
			}
			open = &model.SheetSection{
				Title:   strings.TrimSpace(row[0]),
				Headers: nonEmptyTrimmed(row[1:]),
				Rows:    [][]string{},
			}
			continue
		}

		if open == nil {
			// Data before the first section header has nowhere to go.
			continue
		}
		open.Rows = append(open.Rows, trimmed(row))
	}

	if open != nil {
		sections = append(sections, finalize(*open))
	}

	return sections
}

// isSectionHeader reports whether a row introduces a new section: a
// non-date-like first cell plus a non-empty second cell.
func isSectionHeader(row []string) bool {
	if len(row) < 2 {
		return false
	}
	first := strings.TrimSpace(row[0])
	if dateLike.MatchString(first) {
		return false
	}
	return strings.TrimSpace(row[1]) != ""
}

// finalize sorts a section's rows descending by the date in column 0.
// Rows whose first cell does not parse as a date get the zero time as their
// key, which descending order pushes after every real date; two such rows
// keep their source order (the sort is stable).
func finalize(s model.SheetSection) model.SheetSection {
	type keyed struct {
		key time.Time
		row []string
	}
	ks := make([]keyed, len(s.Rows))
	for i, row := range s.Rows {
		ks[i] = keyed{key: rowDate(row), row: row}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		return ks[i].key.After(ks[j].key)
	})
	for i := range ks {
		s.Rows[i] = ks[i].row
	}
	return s
}

var rowDateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
}

// rowDate parses the sortable date key from a data row's first cell.
func rowDate(row []string) time.Time {
	if len(row) == 0 {
		return time.Time{}
	}
	cell := strings.TrimSpace(row[0])
	for _, layout := range rowDateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimmed(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func nonEmptyTrimmed(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
