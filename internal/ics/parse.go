// Package ics extracts calendar events from raw iCalendar text.
//
// This is a deliberately small parser, not an RFC 5545 implementation: it
// unfolds wrapped lines, walks VEVENT blocks, and pulls out SUMMARY, DTSTART,
// and DTEND. Recurrence rules, alarms, and timezone definitions are ignored;
// the household feeds this dashboard subscribes to are plain single events.
// Malformed input never fails; the worst case is zero events.
package ics

import (
	"regexp"
	"strings"
	"time"

	appLog "wallboard/internal/log"
	"wallboard/internal/model"
)

const eventMarker = "BEGIN:VEVENT"

var (
	// Property lines, matched after unfolding. DTSTART/DTEND tolerate
	// parameters before the colon (VALUE=DATE, TZID=...).
	summaryRe = regexp.MustCompile(`(?m)^SUMMARY:(.*)$`)
	dtStartRe = regexp.MustCompile(`(?m)^DTSTART[^:\r\n]*:(.*)$`)
	dtEndRe   = regexp.MustCompile(`(?m)^DTEND[^:\r\n]*:(.*)$`)
)

// ExtractEvents parses iCalendar text into events.
//
// An event needs a SUMMARY and a parseable DTSTART to be emitted; anything
// less is skipped. A missing DTEND defaults to the start value. AllDay
// follows the shape of the DTSTART value (bare YYYYMMDD date vs date-time).
func ExtractEvents(text string) []model.Event {
	if text == "" {
		return nil
	}

	blocks := strings.Split(unfold(text), eventMarker)
	if len(blocks) < 2 {
		return nil
	}

	events := make([]model.Event, 0, len(blocks)-1)
	for _, block := range blocks[1:] {
		ev, ok := parseBlock(block)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics extract completed", "block_count", len(blocks)-1, "event_count", len(events))
	return events
}

// parseBlock extracts one event from a VEVENT block body.
func parseBlock(block string) (model.Event, bool) {
	sm := summaryRe.FindStringSubmatch(block)
	st := dtStartRe.FindStringSubmatch(block)
	if sm == nil || st == nil {
		return model.Event{}, false
	}

	startRaw := strings.TrimSpace(st[1])
	start, allDay, ok := parseValue(startRaw)
	if !ok {
		return model.Event{}, false
	}

	end := start
	if em := dtEndRe.FindStringSubmatch(block); em != nil {
		if t, _, eok := parseValue(strings.TrimSpace(em[1])); eok {
			end = t
		}
	}

	return model.Event{
		Summary: unescapeText(strings.TrimRight(sm[1], "\r")),
		Start:   start,
		End:     end,
		AllDay:  allDay,
	}, true
}

// unfold rejoins folded content lines (a break followed by leading
// whitespace) and normalizes remaining terminators to bare LF.
func unfold(text string) string {
	r := strings.NewReplacer(
		"\r\n ", "",
		"\r\n\t", "",
		"\n ", "",
		"\n\t", "",
	)
	return strings.ReplaceAll(r.Replace(text), "\r\n", "\n")
}

// unescapeText converts iCalendar text escapes into their literal form.
// These are two-character sequences in the source, not control characters.
func unescapeText(s string) string {
	r := strings.NewReplacer(
		`\,`, ",",
		`\;`, ";",
		`\n`, "\n",
	)
	return r.Replace(s)
}

// parseValue parses a DTSTART/DTEND value. The value is first stripped down
// to digits and 'T', which shrugs off stray artifacts; the Z suffix is
// checked against the original raw value.
//
//   - 8 bare digits: an all-day date (YYYYMMDD), midnight local.
//   - with a 'T': a date-time (YYYYMMDDTHHMMSS), UTC when the raw value ends
//     in 'Z', local wall-clock otherwise.
//   - anything else: unparseable.
func parseValue(raw string) (t time.Time, allDay bool, ok bool) {
	stripped := stripToDigitsAndT(raw)

	if len(stripped) == 8 && !strings.Contains(stripped, "T") {
		t, err := time.ParseInLocation("20060102", stripped, time.Local)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, true, true
	}

	if strings.Contains(stripped, "T") {
		loc := time.Local
		if strings.HasSuffix(raw, "Z") {
			loc = time.UTC
		}
		t, err := time.ParseInLocation("20060102T150405", stripped, loc)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, false, true
	}

	return time.Time{}, false, false
}

func stripToDigitsAndT(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == 'T' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
