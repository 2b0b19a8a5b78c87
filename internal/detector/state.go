package detector

import (
	"github.com/rewired-gh/linewatch/internal/models"
)

// Watermark is the last fully processed snapshot of one market.
type Watermark struct {
	ID    int64
	Value models.Line
	Set   bool
}

// Band is the line interval covered by the last alert of a severity.
// Direction is +1 when that alert moved the line up, -1 otherwise.
type Band struct {
	Lower     models.Line
	Upper     models.Line
	Direction int
}

// Contains reports whether a move from ref to entry in direction dir stays
// inside the band: same direction, starting in [Lower, Upper) and not
// breaking out past Upper.
func (b Band) Contains(ref, entry models.Line, dir int) bool {
	if dir != b.Direction {
		return false
	}
	if dir > 0 {
		return b.Lower.Cmp(ref) <= 0 && ref.Cmp(b.Upper) < 0 && entry.Cmp(b.Upper) <= 0
	}
	return b.Lower.Cmp(ref) >= 0 && ref.Cmp(b.Upper) > 0 && entry.Cmp(b.Upper) >= 0
}

// EventState is everything carried between polls for one event.
type EventState struct {
	Watermarks map[models.MarketType]Watermark
	Bands      map[models.Severity]Band

	Goals           models.Pair
	Penalties       models.Pair
	RedCards        models.Pair
	markersSeen     bool
	SuppressedUntil int64

	Home     string
	Away     string
	League   string
	GameTime string
}

// Tracker owns the per-event state. It is not safe for concurrent use;
// only the poll loop touches it.
type Tracker struct {
	bufferSeconds int64
	events        map[string]*EventState
}

// NewTracker returns an empty tracker. bufferSeconds is how long a penalty
// or red card pauses detection.
func NewTracker(bufferSeconds int64) *Tracker {
	return &Tracker{
		bufferSeconds: bufferSeconds,
		events:        make(map[string]*EventState),
	}
}

func (t *Tracker) getOrCreate(eventID string) *EventState {
	if st, ok := t.events[eventID]; ok {
		return st
	}
	st := &EventState{
		Watermarks: make(map[models.MarketType]Watermark),
		Bands:      make(map[models.Severity]Band),
	}
	t.events[eventID] = st
	return st
}

// Lookup returns the state of an event without creating it.
func (t *Tracker) Lookup(eventID string) (*EventState, bool) {
	st, ok := t.events[eventID]
	return st, ok
}

// Len is the number of tracked events.
func (t *Tracker) Len() int {
	return len(t.events)
}

// RefreshDescriptive stores the fields used to compose messages.
func (t *Tracker) RefreshDescriptive(eventID, home, away, league, gameTime string) {
	st := t.getOrCreate(eventID)
	st.Home = home
	st.Away = away
	st.League = league
	st.GameTime = gameTime
}

// ObserveMarkers records goals, penalties and red cards and reports whether
// detection must be skipped for this poll.
//
// The first observation of an event always skips: there is no baseline yet.
// Any later change skips too, and a penalty or red card change between two
// known values also pauses detection until now+buffer. An unknown incoming
// value never replaces a known one.
func (t *Tracker) ObserveMarkers(eventID string, goals, penalties, redCards models.Pair, now int64) (suppress bool, buffered bool) {
	st := t.getOrCreate(eventID)
	first := !st.markersSeen
	st.markersSeen = true

	if observe(&st.Goals, goals) {
		suppress = true
	}
	for _, m := range []struct {
		stored *models.Pair
		next   models.Pair
	}{
		{&st.Penalties, penalties},
		{&st.RedCards, redCards},
	} {
		wasKnown := m.stored.Known
		if observe(m.stored, m.next) {
			suppress = true
			if wasKnown {
				st.SuppressedUntil = now + t.bufferSeconds
				buffered = true
			}
		}
	}

	return suppress || first, buffered
}

// observe stores next in stored and reports whether the known value changed.
func observe(stored *models.Pair, next models.Pair) bool {
	if !next.Known || *stored == next {
		return false
	}
	*stored = next
	return true
}

// restore rolls an event's markers, buffer and descriptive fields back to
// prev. Watermarks and bands are left as they are.
func (t *Tracker) restore(eventID string, prev EventState) {
	st, ok := t.events[eventID]
	if !ok {
		return
	}
	prev.Watermarks = st.Watermarks
	prev.Bands = st.Bands
	*st = prev
}

// Suppressed reports whether now is still inside the event's buffer.
func (t *Tracker) Suppressed(eventID string, now int64) bool {
	st, ok := t.events[eventID]
	return ok && now < st.SuppressedUntil
}

// Watermark returns the watermark of one market, unset if never seeded.
func (t *Tracker) Watermark(eventID string, market models.MarketType) Watermark {
	st, ok := t.events[eventID]
	if !ok {
		return Watermark{}
	}
	return st.Watermarks[market]
}

// SetWatermark commits the last processed snapshot of a market.
func (t *Tracker) SetWatermark(eventID string, market models.MarketType, id int64, value models.Line) {
	t.getOrCreate(eventID).Watermarks[market] = Watermark{ID: id, Value: value, Set: true}
}

// Band returns the last alerted band for a severity.
func (t *Tracker) Band(eventID string, sev models.Severity) (Band, bool) {
	st, ok := t.events[eventID]
	if !ok {
		return Band{}, false
	}
	b, ok := st.Bands[sev]
	return b, ok
}

// SetBand overwrites the alerted band for a severity.
func (t *Tracker) SetBand(eventID string, sev models.Severity, b Band) {
	t.getOrCreate(eventID).Bands[sev] = b
}

// Evict drops every event not in active and returns how many were removed.
func (t *Tracker) Evict(active map[string]struct{}) int {
	removed := 0
	for id := range t.events {
		if _, ok := active[id]; !ok {
			delete(t.events, id)
			removed++
		}
	}
	return removed
}
