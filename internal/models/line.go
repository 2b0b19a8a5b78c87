package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// PlaceholderQuote is what the data source sends when a price is not offered.
const PlaceholderQuote = "-"

// ErrMalformedSnapshot marks a snapshot field that could not be parsed.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Line is an effective handicap or total value.
// It is fixed-point so that two quotes of the same line always compare equal.
type Line struct {
	d decimal.Decimal
}

// ParseLine parses a handicap in plain ("-0.5") or split ("1.0,1.5") notation.
// A split line is worth the arithmetic mean of its parts.
func ParseLine(s string) (Line, error) {
	parts := strings.Split(s, ",")
	sum := decimal.Zero
	for _, p := range parts {
		p = strings.TrimPrefix(strings.TrimSpace(p), "+")
		if p == "" {
			return Line{}, fmt.Errorf("empty line component in %q", s)
		}
		v, err := decimal.NewFromString(p)
		if err != nil {
			return Line{}, fmt.Errorf("invalid line %q: %w", s, err)
		}
		sum = sum.Add(v)
	}
	return Line{d: sum.Div(decimal.NewFromInt(int64(len(parts))))}, nil
}

// NewLine builds a line from a float literal. Intended for constants and tests.
func NewLine(f float64) Line {
	return Line{d: decimal.NewFromFloat(f)}
}

func (l Line) Equal(o Line) bool { return l.d.Equal(o.d) }

func (l Line) Cmp(o Line) int { return l.d.Cmp(o.d) }

func (l Line) Sub(o Line) Line { return Line{d: l.d.Sub(o.d)} }

func (l Line) Abs() Line { return Line{d: l.d.Abs()} }

func (l Line) IsPositive() bool { return l.d.IsPositive() }

func (l Line) Float64() float64 {
	f, _ := l.d.Float64()
	return f
}

// String renders the line the way bookmakers print it: always with a decimal point.
func (l Line) String() string {
	s := l.d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Quote is a price for one side of a market, or Unavailable.
type Quote struct {
	Price     decimal.Decimal
	Available bool
}

// Unavailable is the quote of a side that is not currently offered.
var Unavailable = Quote{}

// ParseQuote treats the placeholder and an absent field as Unavailable.
func ParseQuote(s string) (Quote, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == PlaceholderQuote {
		return Unavailable, nil
	}
	p, err := decimal.NewFromString(s)
	if err != nil {
		return Unavailable, fmt.Errorf("invalid quote %q: %w", s, err)
	}
	return Quote{Price: p, Available: true}, nil
}

// Pair is an ordered (home, away) counter such as a score or a card tally.
// The zero value is unknown, which is distinct from 0-0.
type Pair struct {
	Home  int
	Away  int
	Known bool
}

// NewPair returns a known pair.
func NewPair(home, away int) Pair {
	return Pair{Home: home, Away: away, Known: true}
}

// ParseScore parses "home-away". A nil or empty score is unknown.
func ParseScore(s *string) (Pair, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return Pair{}, nil
	}
	home, away, ok := strings.Cut(strings.TrimSpace(*s), "-")
	if !ok {
		return Pair{}, fmt.Errorf("invalid score %q", *s)
	}
	return parsePair(home, away)
}

// ParseStat parses a two-element statistic such as ["1","0"].
// Anything other than exactly two entries is unknown.
func ParseStat(v []string) (Pair, error) {
	if len(v) != 2 {
		return Pair{}, nil
	}
	return parsePair(v[0], v[1])
}

func parsePair(home, away string) (Pair, error) {
	h, err := strconv.Atoi(strings.TrimSpace(home))
	if err != nil {
		return Pair{}, fmt.Errorf("invalid home value %q: %w", home, err)
	}
	a, err := strconv.Atoi(strings.TrimSpace(away))
	if err != nil {
		return Pair{}, fmt.Errorf("invalid away value %q: %w", away, err)
	}
	return NewPair(h, a), nil
}

func (p Pair) String() string {
	if !p.Known {
		return ""
	}
	return fmt.Sprintf("%d-%d", p.Home, p.Away)
}
