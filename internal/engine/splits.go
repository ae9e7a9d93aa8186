package engine

import (
	"time"

	"github.com/quantfold/leapsback/internal/models"
)

// SplitTable holds the known forward splits loaded from configuration.
type SplitTable struct {
	events []models.SplitEvent
}

// NewSplitTable builds a lookup table over the configured split events.
func NewSplitTable(events []models.SplitEvent) *SplitTable {
	return &SplitTable{events: events}
}

// Between returns the split for symbol whose date falls inside the holding
// window, inclusive on both ends, or nil when the window spans no split.
// A single window spanning two splits of the same symbol does not occur in
// practice; the first match wins.
func (t *SplitTable) Between(symbol string, entry, exit time.Time) *models.SplitEvent {
	if t == nil {
		return nil
	}
	for i := range t.events {
		ev := &t.events[i]
		if ev.Symbol != symbol {
			continue
		}
		if ev.Date.Before(entry) || ev.Date.After(exit) {
			continue
		}
		return ev
	}
	return nil
}
