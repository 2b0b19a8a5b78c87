package models

import "time"

// Severity classifies how far a line moved.
type Severity int

const (
	SeverityNone Severity = iota
	Soft
	Medium
	Hard
)

// Severities lists the alerting tiers from mildest to strongest.
var Severities = []Severity{Soft, Medium, Hard}

func (s Severity) String() string {
	switch s {
	case Soft:
		return "SOFT"
	case Medium:
		return "MEDIUM"
	case Hard:
		return "HARD"
	default:
		return "NONE"
	}
}

// ChangeEvent is a qualifying line move between a reference snapshot and a newer entry.
type ChangeEvent struct {
	EventID        string
	Market         MarketType
	Severity       Severity
	Change         Line
	TimeDifference int64
	Entry          Snapshot
	Reference      Snapshot
}

// Direction is +1 when the line went up and -1 otherwise.
func (c ChangeEvent) Direction() int {
	if c.Entry.Line.Sub(c.Reference.Line).IsPositive() {
		return 1
	}
	return -1
}

// Alert is a change that passed every gate and is ready for delivery.
type Alert struct {
	ID        string
	ChannelID string
	Severity  Severity
	Market    MarketType

	EventID  string
	League   string
	Home     string
	Away     string
	Score    string
	GameTime string
	Prelive  bool

	From     Line
	To       Line
	Elapsed  int64
	VenueURL string

	DetectedAt time.Time
}
