package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MarketType identifies one of the tracked odds markets.
type MarketType string

const (
	AsianHandicap     MarketType = "1_2"
	GoalLine          MarketType = "1_3"
	HalfAsianHandicap MarketType = "1_5"
	HalfGoalLine      MarketType = "1_6"
)

// MarketTypes lists every tracked market in processing order.
var MarketTypes = []MarketType{AsianHandicap, GoalLine, HalfAsianHandicap, HalfGoalLine}

// Label returns the human-readable market name used in alerts.
func (m MarketType) Label() string {
	switch m {
	case AsianHandicap:
		return "Asian Handicap"
	case GoalLine:
		return "Goal Line"
	case HalfAsianHandicap:
		return "1st Half Asian Handicap"
	case HalfGoalLine:
		return "1st Half Goal Line"
	default:
		return string(m)
	}
}

// Valid reports whether m is one of the tracked markets.
func (m MarketType) Valid() bool {
	switch m {
	case AsianHandicap, GoalLine, HalfAsianHandicap, HalfGoalLine:
		return true
	}
	return false
}

// IsTotal reports whether the market is an over/under market.
func (m MarketType) IsTotal() bool {
	return m == GoalLine || m == HalfGoalLine
}

// Quoted reports whether the snapshot carries every price the market needs.
// Handicap markets need home and away prices, totals need over and under.
func (m MarketType) Quoted(s Snapshot) bool {
	if m.IsTotal() {
		return s.Over.Available && s.Under.Available
	}
	return s.Home.Available && s.Away.Available
}

// Snapshot is one parsed odds quote for one market of one event.
type Snapshot struct {
	ID          int64
	AddedAt     int64
	Line        Line
	Home        Quote
	Away        Quote
	Over        Quote
	Under       Quote
	Score       Pair
	DisplayTime string
}

// FlexString accepts a JSON string, number or null. The feed is not
// consistent about quoting numeric fields.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(b)
	return nil
}

// RawSnapshot is a snapshot as the odds feed sends it.
type RawSnapshot struct {
	ID        FlexString `json:"id"`
	Handicap  string     `json:"handicap"`
	HomeOdds  string     `json:"home_od"`
	AwayOdds  string     `json:"away_od"`
	OverOdds  string     `json:"over_od"`
	UnderOdds string     `json:"under_od"`
	Score     *string    `json:"ss"`
	TimeStr   *string    `json:"time_str"`
	AddTime   FlexString `json:"add_time"`
}

// Parse converts the wire form into a Snapshot.
// Errors wrap ErrMalformedSnapshot.
func (r RawSnapshot) Parse() (Snapshot, error) {
	var s Snapshot
	var err error

	if s.ID, err = strconv.ParseInt(strings.TrimSpace(string(r.ID)), 10, 64); err != nil {
		return Snapshot{}, fmt.Errorf("%w: id %q", ErrMalformedSnapshot, r.ID)
	}
	if s.AddedAt, err = strconv.ParseInt(strings.TrimSpace(string(r.AddTime)), 10, 64); err != nil {
		return Snapshot{}, fmt.Errorf("%w: snapshot %d: add_time %q", ErrMalformedSnapshot, s.ID, r.AddTime)
	}
	if s.Line, err = ParseLine(r.Handicap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: snapshot %d: %v", ErrMalformedSnapshot, s.ID, err)
	}
	quotes := []struct {
		raw string
		dst *Quote
	}{
		{r.HomeOdds, &s.Home},
		{r.AwayOdds, &s.Away},
		{r.OverOdds, &s.Over},
		{r.UnderOdds, &s.Under},
	}
	for _, q := range quotes {
		if *q.dst, err = ParseQuote(q.raw); err != nil {
			return Snapshot{}, fmt.Errorf("%w: snapshot %d: %v", ErrMalformedSnapshot, s.ID, err)
		}
	}
	if s.Score, err = ParseScore(r.Score); err != nil {
		return Snapshot{}, fmt.Errorf("%w: snapshot %d: %v", ErrMalformedSnapshot, s.ID, err)
	}
	if r.TimeStr != nil {
		s.DisplayTime = strings.TrimSpace(*r.TimeStr)
	}
	return s, nil
}

// MarketSeries is the unfiltered history of one market for one event, newest first.
type MarketSeries []RawSnapshot

// Parse parses every snapshot; the first malformed one fails the whole series.
func (ms MarketSeries) Parse() ([]Snapshot, error) {
	out := make([]Snapshot, 0, len(ms))
	for _, r := range ms {
		s, err := r.Parse()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
