package ics

import (
	"strings"
	"testing"
	"time"

	goical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calendar(blocks ...string) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n")
	for _, block := range blocks {
		b.WriteString("BEGIN:VEVENT\r\n")
		b.WriteString(block)
		b.WriteString("END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func TestExtractEventsAllDay(t *testing.T) {
	text := calendar("SUMMARY:Birthday\r\nDTSTART;VALUE=DATE:20240615\r\n")

	events := ExtractEvents(text)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "Birthday", ev.Summary)
	assert.True(t, ev.AllDay)
	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local)
	assert.True(t, ev.Start.Equal(want), "start = %v", ev.Start)
	assert.True(t, ev.End.Equal(want), "end = %v", ev.End)
}

func TestExtractEventsTimedUTC(t *testing.T) {
	text := calendar("SUMMARY:Standup\r\nDTSTART:20240615T140000Z\r\nDTEND:20240615T143000Z\r\n")

	events := ExtractEvents(text)
	require.Len(t, events, 1)

	ev := events[0]
	assert.False(t, ev.AllDay)
	assert.True(t, ev.Start.Equal(time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)), "start = %v", ev.Start)
	assert.True(t, ev.End.Equal(time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)), "end = %v", ev.End)
}

func TestExtractEventsTimedLocal(t *testing.T) {
	text := calendar("SUMMARY:Dinner\r\nDTSTART:20240615T183000\r\n")

	events := ExtractEvents(text)
	require.Len(t, events, 1)

	want := time.Date(2024, 6, 15, 18, 30, 0, 0, time.Local)
	assert.True(t, events[0].Start.Equal(want), "start = %v", events[0].Start)
}

func TestExtractEventsEscapedSummary(t *testing.T) {
	text := calendar(`SUMMARY:Mom\, Dad\, and kids` + "\r\nDTSTART:20240615T140000Z\r\n")

	events := ExtractEvents(text)
	require.Len(t, events, 1)
	assert.Equal(t, "Mom, Dad, and kids", events[0].Summary)
}

func TestExtractEventsEscapes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`a\, b`, "a, b"},
		{`a\; b`, "a; b"},
		{`line1\nline2`, "line1\nline2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unescapeText(tt.raw))
	}
}

func TestExtractEventsMissingEndDefaultsToStart(t *testing.T) {
	text := calendar("SUMMARY:Open house\r\nDTSTART:20240615T140000Z\r\n")

	events := ExtractEvents(text)
	require.Len(t, events, 1)
	assert.True(t, events[0].End.Equal(events[0].Start))
}

func TestExtractEventsUnparseableEndDefaultsToStart(t *testing.T) {
	text := calendar("SUMMARY:Odd feed\r\nDTSTART:20240615T140000Z\r\nDTEND:whenever\r\n")

	events := ExtractEvents(text)
	require.Len(t, events, 1)
	assert.True(t, events[0].End.Equal(events[0].Start))
}

func TestExtractEventsDropsIncompleteBlocks(t *testing.T) {
	text := calendar(
		"SUMMARY:No start here\r\n",
		"DTSTART:20240615T140000Z\r\n", // no summary
		"SUMMARY:Bad start\r\nDTSTART:tomorrowish\r\n",
		"SUMMARY:Keeper\r\nDTSTART:20240615T140000Z\r\n",
	)

	events := ExtractEvents(text)
	require.Len(t, events, 1)
	assert.Equal(t, "Keeper", events[0].Summary)
}

func TestExtractEventsLineFolding(t *testing.T) {
	// A folded SUMMARY line: break + leading space on the continuation.
	text := calendar("SUMMARY:Quarterly budget\r\n  review meeting\r\nDTSTART:20240615T140000Z\r\n")

	events := ExtractEvents(text)
	require.Len(t, events, 1)
	assert.Equal(t, "Quarterly budget review meeting", events[0].Summary)
}

func TestExtractEventsBareLFInput(t *testing.T) {
	text := "BEGIN:VCALENDAR\nBEGIN:VEVENT\nSUMMARY:LF feed\nDTSTART:20240615T140000Z\nEND:VEVENT\nEND:VCALENDAR\n"

	events := ExtractEvents(text)
	require.Len(t, events, 1)
	assert.Equal(t, "LF feed", events[0].Summary)
}

func TestExtractEventsParameterTolerantDtstart(t *testing.T) {
	text := calendar("SUMMARY:Tz event\r\nDTSTART;TZID=America/Denver:20240615T090000\r\n")

	events := ExtractEvents(text)
	require.Len(t, events, 1)
	// TZID parameters are tolerated but not resolved; local wall clock.
	want := time.Date(2024, 6, 15, 9, 0, 0, 0, time.Local)
	assert.True(t, events[0].Start.Equal(want), "start = %v", events[0].Start)
}

func TestExtractEventsEmptyAndMalformedInput(t *testing.T) {
	assert.Empty(t, ExtractEvents(""))
	assert.Empty(t, ExtractEvents("not an ics feed at all"))
	assert.Empty(t, ExtractEvents("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
}

func TestExtractEventsAllDayFollowsStartShape(t *testing.T) {
	// Defensive: allDay classification comes from DTSTART even when DTEND
	// has a different shape.
	text := calendar("SUMMARY:Mixed\r\nDTSTART;VALUE=DATE:20240615\r\nDTEND:20240616T100000Z\r\n")

	events := ExtractEvents(text)
	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)
	assert.True(t, events[0].End.Equal(time.Date(2024, 6, 16, 10, 0, 0, 0, time.UTC)))
}

// TestExtractEventsLibraryRenderedFeed feeds the extractor a calendar
// serialized by a real iCalendar library, folding and all.
func TestExtractEventsLibraryRenderedFeed(t *testing.T) {
	cal := goical.NewCalendar()
	cal.SetMethod(goical.MethodPublish)

	ev := cal.AddEvent("uid-1@wallboard")
	ev.SetSummary("Dentist appointment, bring insurance card")
	ev.SetStartAt(time.Date(2024, 7, 1, 15, 0, 0, 0, time.UTC))
	ev.SetEndAt(time.Date(2024, 7, 1, 16, 0, 0, 0, time.UTC))

	ev2 := cal.AddEvent("uid-2@wallboard")
	ev2.SetSummary("Trash day")
	ev2.SetStartAt(time.Date(2024, 7, 2, 6, 0, 0, 0, time.UTC))

	events := ExtractEvents(cal.Serialize())
	require.Len(t, events, 2)

	assert.Equal(t, "Dentist appointment, bring insurance card", events[0].Summary)
	assert.True(t, events[0].Start.Equal(time.Date(2024, 7, 1, 15, 0, 0, 0, time.UTC)))
	assert.True(t, events[0].End.Equal(time.Date(2024, 7, 1, 16, 0, 0, 0, time.UTC)))
	assert.False(t, events[0].AllDay)

	assert.Equal(t, "Trash day", events[1].Summary)
	assert.True(t, events[1].End.Equal(events[1].Start))
}
