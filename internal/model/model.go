package model

import "time"

// BillingRecord is one normalized day/period of electricity usage extracted
// from a utility bill export. The record date is the billing period's end
// date; the store deduplicates by it on upsert.
type BillingRecord struct {
	// Date is the billing period end date, formatted YYYY-MM-DD.
	Date string `json:"date"`

	// UsageKWh is the net usage for the period (import minus export when the
	// difference is positive, raw import otherwise). Always present; 0 when
	// the source cell was empty or unparseable.
	UsageKWh float64 `json:"usage_kwh"`

	// Cost is the billed cost for the period, nil when the export carried no
	// cost column or the cell was empty.
	Cost *float64 `json:"cost,omitempty"`
}

// SheetSection is one titled block of rows from a spreadsheet export
// (e.g. one vehicle's maintenance history).
type SheetSection struct {
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Event represents a single calendar event as extracted from an ICS feed,
// before any display windowing.
type Event struct {
	Summary string

	// Start / End carry the event's own timezone (UTC for Z-suffixed values,
	// the process-local zone otherwise). For all-day events both are
	// midnight of the calendar date.
	Start time.Time
	End   time.Time

	AllDay bool
}

// Occurrence is a single display instance of an event after windowing and
// timezone normalization into the configured display zone.
type Occurrence struct {
	SourceID string // calendar source ID (config ICS ID)

	// InstanceKey uniquely identifies this instance, derived from the
	// display-local start time.
	InstanceKey string

	Summary string
	AllDay  bool

	// Start / End are in the configured display timezone.
	Start time.Time
	End   time.Time
}
