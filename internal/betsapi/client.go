// Package betsapi fetches live football events and their odds history from BetsAPI.
package betsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rewired-gh/linewatch/internal/logger"
	"github.com/rewired-gh/linewatch/internal/models"
)

// OddsMarkets is the odds_market filter selecting the four tracked lines.
const OddsMarkets = "2,3,5,6"

// Client provides access to the BetsAPI in-play and odds endpoints
type Client struct {
	eventsURL string
	oddsURL   string
	token     string
	sportID   int
	http      *resty.Client
}

// ClientConfig holds retry settings for the HTTP client
type ClientConfig struct {
	SportID        int
	MaxRetries     int
	RetryDelayBase time.Duration
}

// NewClient creates a new BetsAPI client
func NewClient(eventsURL, oddsURL, token string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.SportID == 0 {
		cfg.SportID = 1
	}

	r := resty.New()
	r.SetTimeout(timeout)
	r.SetHeader("Accept", "application/json")
	r.SetRetryCount(cfg.MaxRetries)
	r.SetRetryWaitTime(cfg.RetryDelayBase)
	r.AddRetryCondition(func(resp *resty.Response, err error) bool {
		return err != nil || resp.StatusCode() >= 500 || resp.StatusCode() == 429
	})

	return &Client{
		eventsURL: eventsURL,
		oddsURL:   oddsURL,
		token:     token,
		sportID:   cfg.SportID,
		http:      r,
	}
}

type named struct {
	ID   models.FlexString `json:"id"`
	Name string            `json:"name"`
}

// inplayEvent is one result of the in-play events endpoint
type inplayEvent struct {
	ID     models.FlexString `json:"id"`
	Time   models.FlexString `json:"time"`
	League named             `json:"league"`
	Home   named             `json:"home"`
	Away   named             `json:"away"`
	SS     *string           `json:"ss"`
	Timer  *struct {
		TM models.FlexString `json:"tm"`
	} `json:"timer"`
	Stats struct {
		Goals     []string `json:"goals"`
		Penalties []string `json:"penalties"`
		RedCards  []string `json:"redcards"`
	} `json:"stats"`
}

type inplayResponse struct {
	Success int           `json:"success"`
	Error   string        `json:"error"`
	Results []inplayEvent `json:"results"`
}

type oddsResponse struct {
	Success int    `json:"success"`
	Error   string `json:"error"`
	Results struct {
		Odds map[string]models.MarketSeries `json:"odds"`
	} `json:"results"`
}

func (c *Client) get(ctx context.Context, url string, params map[string]string, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token", c.token).
		SetQueryParams(params).
		Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// FetchLiveEvents retrieves every in-play football event
func (c *Client) FetchLiveEvents(ctx context.Context) ([]models.EventSummary, error) {
	var body inplayResponse
	err := c.get(ctx, c.eventsURL, map[string]string{"sport_id": strconv.Itoa(c.sportID)}, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch live events: %w", err)
	}
	if body.Success != 1 {
		return nil, fmt.Errorf("failed to fetch live events: api error %q", body.Error)
	}

	events := make([]models.EventSummary, 0, len(body.Results))
	for _, e := range body.Results {
		if e.ID == "" {
			continue
		}
		events = append(events, toSummary(e))
	}
	return events, nil
}

func toSummary(e inplayEvent) models.EventSummary {
	s := models.EventSummary{
		ID:     string(e.ID),
		League: strings.TrimSpace(e.League.Name),
		Home:   strings.TrimSpace(e.Home.Name),
		Away:   strings.TrimSpace(e.Away.Name),
	}
	if e.Timer != nil {
		s.GameTime = string(e.Timer.TM)
	}

	stat := func(name string, v []string) models.Pair {
		p, err := models.ParseStat(v)
		if err != nil {
			logger.Warn("Event %s: ignoring %s stat %v: %v", e.ID, name, v, err)
			return models.Pair{}
		}
		return p
	}
	s.Goals = stat("goals", e.Stats.Goals)
	if !s.Goals.Known {
		if p, err := models.ParseScore(e.SS); err == nil {
			s.Goals = p
		}
	}
	s.Penalties = stat("penalties", e.Stats.Penalties)
	s.RedCards = stat("redcards", e.Stats.RedCards)
	return s
}

// FetchMarketSeries retrieves the odds history of the tracked markets for one event
func (c *Client) FetchMarketSeries(ctx context.Context, eventID string) (map[models.MarketType]models.MarketSeries, error) {
	var body oddsResponse
	params := map[string]string{
		"event_id":    eventID,
		"odds_market": OddsMarkets,
	}
	if err := c.get(ctx, c.oddsURL, params, &body); err != nil {
		return nil, fmt.Errorf("failed to fetch odds: %w", err)
	}
	if body.Success != 1 {
		return nil, fmt.Errorf("failed to fetch odds: api error %q", body.Error)
	}

	out := make(map[models.MarketType]models.MarketSeries, len(models.MarketTypes))
	for key, series := range body.Results.Odds {
		mt := models.MarketType(key)
		if !mt.Valid() {
			continue
		}
		out[mt] = series
	}
	return out, nil
}
