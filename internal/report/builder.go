package report

import (
	"errors"
	"time"
)

// ErrInvalidRange rejects windows whose end precedes their start.
var ErrInvalidRange = errors.New("report: window end precedes start")

// Report is an immutable assembled report, owned by the caller.
type Report struct {
	Window      Window
	Snapshot    Snapshot
	Notes       string
	GeneratedAt time.Time
}

// Builder assembles a Report from a window, a snapshot, and optional
// notes. Pure assembly; the only failure mode is an invalid window.
type Builder struct {
	window   Window
	snapshot Snapshot
	notes    string
	now      func() time.Time
}

// NewBuilder constructs an empty report builder.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// WithWindow sets the report date range.
func (b *Builder) WithWindow(window Window) *Builder {
	b.window = window
	return b
}

// WithSnapshot attaches the aggregation result.
func (b *Builder) WithSnapshot(snapshot Snapshot) *Builder {
	b.snapshot = snapshot
	return b
}

// WithNotes attaches free-form notes.
func (b *Builder) WithNotes(notes string) *Builder {
	b.notes = notes
	return b
}

// WithClock overrides the generation timestamp source.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	if now != nil {
		b.now = now
	}
	return b
}

// Build validates the window and stamps the generation time.
func (b *Builder) Build() (Report, error) {
	if !b.window.Valid() {
		return Report{}, ErrInvalidRange
	}

	return Report{
		Window:      b.window,
		Snapshot:    b.snapshot,
		Notes:       b.notes,
		GeneratedAt: b.now().UTC(),
	}, nil
}
