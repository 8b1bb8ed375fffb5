package ics

import (
	"errors"
	"sort"
	"time"

	"wallboard/internal/model"
)

// WindowConfig controls how extracted events are windowed for display.
type WindowConfig struct {
	// DisplayLocation is the timezone occurrences are converted into.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive display window.
	RangeStart time.Time
	RangeEnd   time.Time
}

// WindowEvents clips events to the display window and normalizes them into
// occurrences in the configured display timezone, sorted by start time.
// sourceID tags each occurrence with the feed it came from.
func WindowEvents(sourceID string, events []model.Event, cfg WindowConfig) ([]model.Occurrence, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("window: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}

	out := make([]model.Occurrence, 0, len(events))
	for _, ev := range events {
		start := ev.Start
		end := ev.End

		if ev.AllDay {
			// All-day: occupy [date 00:00, next day 00:00) in the event's
			// own timezone.
			date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			start = date
			if !end.After(start) {
				end = date.Add(24 * time.Hour)
			}
		}

		if !timeRangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}

		out = append(out, makeOccurrence(sourceID, ev, start, end, cfg.DisplayLocation))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// makeOccurrence converts an event plus its concrete start/end into an
// occurrence normalized into displayLoc.
func makeOccurrence(sourceID string, ev model.Event, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	endLocal := end.In(displayLoc)

	return model.Occurrence{
		SourceID: sourceID,
		Summary:  ev.Summary,
		AllDay:   ev.AllDay,
		Start:    startLocal,
		End:      endLocal,
		// Stable per-instance key from the display-local start.
		InstanceKey: startLocal.Format(time.RFC3339Nano),
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
