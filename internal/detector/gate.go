package detector

import (
	"github.com/rewired-gh/linewatch/internal/logger"
	"github.com/rewired-gh/linewatch/internal/models"
)

// gateDecision is what the gate did with one change event.
type gateDecision int

const (
	gateEmit gateDecision = iota
	gateDuplicate
	gateRangeFiltered
)

// gate admits at most one change per severity for one (event, market, poll)
// and drops moves that stay inside the band already alerted for that severity.
type gate struct {
	tracker *Tracker
	eventID string
	taken   map[models.Severity]bool
}

func newGate(tracker *Tracker, eventID string) *gate {
	return &gate{
		tracker: tracker,
		eventID: eventID,
		taken:   make(map[models.Severity]bool, len(models.Severities)),
	}
}

// admit decides on ch and, when it is emitted, records its band.
// A range-filtered change still uses up its severity for this poll.
func (g *gate) admit(ch models.ChangeEvent) gateDecision {
	if g.taken[ch.Severity] {
		return gateDuplicate
	}
	g.taken[ch.Severity] = true

	dir := ch.Direction()
	if band, ok := g.tracker.Band(g.eventID, ch.Severity); ok && band.Contains(ch.Reference.Line, ch.Entry.Line, dir) {
		logger.Info("Event %s market %s: %s alert %s -> %s inside alerted band [%s, %s], suppressed",
			g.eventID, ch.Market, ch.Severity, ch.Reference.Line, ch.Entry.Line, band.Lower, band.Upper)
		return gateRangeFiltered
	}

	g.tracker.SetBand(g.eventID, ch.Severity, Band{
		Lower:     ch.Reference.Line,
		Upper:     ch.Entry.Line,
		Direction: dir,
	})
	return gateEmit
}
