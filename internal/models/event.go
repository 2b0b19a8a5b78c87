// Package models defines the core domain entities: events, odds snapshots, and alerts.
package models

import (
	"errors"
	"strings"
)

// EventSummary is one live (or about to start) match from the in-play feed.
type EventSummary struct {
	ID       string `json:"id"`
	League   string `json:"league"`
	Home     string `json:"home"`
	Away     string `json:"away"`
	GameTime string `json:"game_time"` // match minute; empty before kick-off

	Goals     Pair `json:"-"`
	Penalties Pair `json:"-"`
	RedCards  Pair `json:"-"`
}

// Prelive reports whether the match clock has not started.
func (e *EventSummary) Prelive() bool {
	return strings.TrimSpace(e.GameTime) == ""
}

// Validate checks event field constraints.
func (e *EventSummary) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("event ID must not be empty")
	}
	if e.Goals.Known && (e.Goals.Home < 0 || e.Goals.Away < 0) {
		return errors.New("goals must not be negative")
	}
	if e.Penalties.Known && (e.Penalties.Home < 0 || e.Penalties.Away < 0) {
		return errors.New("penalties must not be negative")
	}
	if e.RedCards.Known && (e.RedCards.Home < 0 || e.RedCards.Away < 0) {
		return errors.New("red cards must not be negative")
	}
	return nil
}
