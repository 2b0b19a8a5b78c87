// Package detector turns odds snapshot histories into tiered line-movement alerts.
package detector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/linewatch/internal/logger"
	"github.com/rewired-gh/linewatch/internal/metrics"
	"github.com/rewired-gh/linewatch/internal/models"
)

// Source fetches live events and their odds histories.
type Source interface {
	FetchLiveEvents(ctx context.Context) ([]models.EventSummary, error)
	FetchMarketSeries(ctx context.Context, eventID string) (map[models.MarketType]models.MarketSeries, error)
}

// Blacklist answers whether a lowercased league name is excluded.
type Blacklist interface {
	IsBlacklisted(league string) (bool, error)
}

// Sink delivers a message to a channel.
type Sink interface {
	Deliver(ctx context.Context, channelID, text string, richText bool) error
}

type Config struct {
	SoftThreshold      float64
	MediumThreshold    float64
	HardThreshold      float64
	Lookback           time.Duration
	Buffer             time.Duration
	Channels           map[models.Severity]string
	DefaultChannel     string
	NoticeChannel      string
	ExcludedCategories []string
	VenueBaseURL       string
}

func DefaultConfig() Config {
	return Config{
		SoftThreshold:      0.5,
		MediumThreshold:    0.75,
		HardThreshold:      1.0,
		Lookback:           150 * time.Second,
		Buffer:             150 * time.Second,
		Channels:           map[models.Severity]string{},
		ExcludedCategories: []string{"esoccer"},
		VenueBaseURL:       "https://betsapi.com/rs/bet365",
	}
}

type Monitor struct {
	source     Source
	blacklist  Blacklist
	sink       Sink
	metrics    *metrics.Metrics
	tracker    *Tracker
	classifier classifier
	config     Config
	now        func() time.Time
}

// New builds a Monitor. blacklist, sink and m may be nil.
func New(source Source, blacklist Blacklist, sink Sink, m *metrics.Metrics, config Config) *Monitor {
	return &Monitor{
		source:    source,
		blacklist: blacklist,
		sink:      sink,
		metrics:   m,
		tracker:   NewTracker(int64(config.Buffer / time.Second)),
		classifier: classifier{
			thresholds: Thresholds{
				Soft:   models.NewLine(config.SoftThreshold),
				Medium: models.NewLine(config.MediumThreshold),
				Hard:   models.NewLine(config.HardThreshold),
			},
			lookbackSeconds: int64(config.Lookback / time.Second),
		},
		config: config,
		now:    time.Now,
	}
}

// Tracker exposes the carried state, mainly for inspection.
func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

func (m *Monitor) excluded(league string) (bool, string) {
	lower := strings.ToLower(strings.TrimSpace(league))
	for _, cat := range m.config.ExcludedCategories {
		if cat != "" && strings.Contains(lower, strings.ToLower(cat)) {
			return true, metrics.ReasonExcluded
		}
	}
	if m.blacklist == nil {
		return false, ""
	}
	banned, err := m.blacklist.IsBlacklisted(lower)
	if err != nil {
		logger.Warn("Blacklist lookup for %q failed, skipping event: %v", lower, err)
		return true, metrics.ReasonBlacklisted
	}
	if banned {
		return true, metrics.ReasonBlacklisted
	}
	return false, ""
}

// ProcessEvent runs detection for one event and returns the alerts to send.
// fetched reports whether the odds were requested, which is what the poll
// delay is scaled by. A fetch error abandons the event for this poll and
// leaves its carried state as it was.
func (m *Monitor) ProcessEvent(ctx context.Context, ev models.EventSummary) (alerts []models.Alert, fetched bool, err error) {
	if skip, reason := m.excluded(ev.League); skip {
		logger.Debug("Event %s (%s) excluded", ev.ID, ev.League)
		m.metrics.IncSuppressed(reason)
		return nil, false, nil
	}

	var before EventState
	prev, known := m.tracker.Lookup(ev.ID)
	if known {
		before = *prev
	}

	m.tracker.RefreshDescriptive(ev.ID, ev.Home, ev.Away, ev.League, ev.GameTime)

	now := m.now().Unix()
	suppress, buffered := m.tracker.ObserveMarkers(ev.ID, ev.Goals, ev.Penalties, ev.RedCards, now)
	st, _ := m.tracker.Lookup(ev.ID)
	if buffered {
		logger.Info("Event %s: penalty or red card, detection paused until %d", ev.ID, st.SuppressedUntil)
		m.notify(ctx, renderBufferNotice(st, ev.ID, st.SuppressedUntil))
	}
	if suppress {
		logger.Debug("Event %s: markers changed or first seen, detection skipped this poll", ev.ID)
		m.metrics.IncSuppressed(metrics.ReasonMarkers)
		return nil, false, nil
	}
	if m.tracker.Suppressed(ev.ID, now) {
		logger.Debug("Event %s: inside buffer until %d", ev.ID, st.SuppressedUntil)
		m.metrics.IncSuppressed(metrics.ReasonBuffer)
		return nil, false, nil
	}

	series, err := m.source.FetchMarketSeries(ctx, ev.ID)
	if err != nil {
		if known {
			m.tracker.restore(ev.ID, before)
		}
		return nil, true, fmt.Errorf("failed to fetch odds for event %s: %w", ev.ID, err)
	}

	for _, market := range models.MarketTypes {
		raw, ok := series[market]
		if !ok {
			continue
		}
		alerts = append(alerts, m.processMarket(ctx, ev, st, market, raw)...)
	}
	return alerts, true, nil
}

func (m *Monitor) processMarket(ctx context.Context, ev models.EventSummary, st *EventState, market models.MarketType, raw models.MarketSeries) []models.Alert {
	parsed, err := raw.Parse()
	if err != nil {
		logger.Warn("Event %s market %s: %v", ev.ID, market, err)
		m.metrics.IncMalformed(string(market))
		return nil
	}
	if len(parsed) == 0 {
		return nil
	}

	wm := m.tracker.Watermark(ev.ID, market)
	if !wm.Set {
		m.tracker.SetWatermark(ev.ID, market, parsed[0].ID, parsed[0].Line)
		logger.Debug("Event %s market %s: seeded at snapshot %d line %s", ev.ID, market, parsed[0].ID, parsed[0].Line)
		return nil
	}

	dedup := Deduplicate(FilterNoise(market, parsed))
	res := m.classifier.classify(classifyInput{
		eventID:         ev.ID,
		market:          market,
		watermark:       wm,
		suppressedUntil: st.SuppressedUntil,
		goals:           st.Goals,
		dedup:           dedup,
	})
	if res.advanced {
		m.tracker.SetWatermark(ev.ID, market, res.watermark.ID, res.watermark.Value)
	}
	for _, entry := range res.goalInRunning {
		m.metrics.IncSuppressed(metrics.ReasonScoreChanged)
		m.notify(ctx, renderGoalNotice(st, ev.ID, market, entry))
	}

	// one slot per severity for this market; bands stay event-wide
	g := newGate(m.tracker, ev.ID)
	var alerts []models.Alert
	for _, ch := range res.changes {
		switch g.admit(ch) {
		case gateDuplicate:
			continue
		case gateRangeFiltered:
			m.metrics.IncSuppressed(metrics.ReasonRangeFilter)
			m.notify(ctx, renderRangeNotice(st, ch))
			continue
		}
		alerts = append(alerts, m.buildAlert(ev, st, ch))
	}
	return alerts
}

func (m *Monitor) channelFor(sev models.Severity) string {
	if ch, ok := m.config.Channels[sev]; ok && ch != "" {
		return ch
	}
	return m.config.DefaultChannel
}

func (m *Monitor) buildAlert(ev models.EventSummary, st *EventState, ch models.ChangeEvent) models.Alert {
	score := ch.Entry.Score.String()
	if score == "" {
		score = st.Goals.String()
	}
	gameTime := ch.Entry.DisplayTime
	if gameTime == "" {
		gameTime = st.GameTime
	}
	return models.Alert{
		ID:         uuid.NewString(),
		ChannelID:  m.channelFor(ch.Severity),
		Severity:   ch.Severity,
		Market:     ch.Market,
		EventID:    ev.ID,
		League:     st.League,
		Home:       st.Home,
		Away:       st.Away,
		Score:      score,
		GameTime:   gameTime,
		Prelive:    ev.Prelive(),
		From:       ch.Reference.Line,
		To:         ch.Entry.Line,
		Elapsed:    ch.TimeDifference,
		VenueURL:   VenueURL(m.config.VenueBaseURL, ev.ID, st.Home, st.Away),
		DetectedAt: m.now(),
	}
}

// RunCycle processes every event once, delivering each event's alerts
// before moving to the next. processed counts events whose odds were
// fetched; seen holds every event id in the input, for Evict.
func (m *Monitor) RunCycle(ctx context.Context, events []models.EventSummary) (processed int, seen map[string]struct{}) {
	start := m.now()
	cycleID := uuid.NewString()
	seen = make(map[string]struct{}, len(events))
	sent := 0

	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			logger.Warn("Cycle %s: skipping invalid event: %v", cycleID, err)
			continue
		}
		seen[ev.ID] = struct{}{}

		alerts, fetched, err := m.ProcessEvent(ctx, ev)
		if fetched {
			processed++
		}
		if err != nil {
			logger.Warn("Cycle %s: %v", cycleID, err)
			continue
		}
		for _, a := range alerts {
			if m.deliver(ctx, a) {
				sent++
			}
		}
	}

	m.metrics.AddProcessed(processed)
	m.metrics.ObserveCycle(m.now().Sub(start))
	logger.Info("Cycle %s: %d events seen, %d processed, %d alerts delivered", cycleID, len(seen), processed, sent)
	return processed, seen
}

func (m *Monitor) deliver(ctx context.Context, a models.Alert) bool {
	m.metrics.IncAlert(a.Severity.String(), string(a.Market))
	logger.Info("Alert %s: %s %s event %s %s -> %s in %ds", a.ID, a.Severity, a.Market, a.EventID, a.From, a.To, a.Elapsed)

	if m.sink == nil {
		return false
	}
	if a.ChannelID == "" {
		logger.Warn("Alert %s: no channel configured for %s", a.ID, a.Severity)
		return false
	}
	if err := m.sink.Deliver(ctx, a.ChannelID, RenderAlert(a), true); err != nil {
		logger.Error("Alert %s: delivery to %s failed: %v", a.ID, a.ChannelID, err)
		m.metrics.IncDeliveryFailure()
		return false
	}
	return true
}

func (m *Monitor) notify(ctx context.Context, text string) {
	if m.sink == nil || m.config.NoticeChannel == "" {
		return
	}
	if err := m.sink.Deliver(ctx, m.config.NoticeChannel, text, true); err != nil {
		logger.Warn("Failed to send notice: %v", err)
	}
}

// Evict forgets events that are no longer live.
func (m *Monitor) Evict(seen map[string]struct{}) {
	if n := m.tracker.Evict(seen); n > 0 {
		logger.Debug("Evicted %d finished events", n)
	}
	m.metrics.SetTracked(m.tracker.Len())
}

// Poll fetches the live list, runs one cycle and evicts finished events.
// A failed fetch leaves all state untouched.
func (m *Monitor) Poll(ctx context.Context) (int, error) {
	events, err := m.source.FetchLiveEvents(ctx)
	if err != nil {
		m.metrics.ObservePoll(false)
		return 0, fmt.Errorf("failed to fetch live events: %w", err)
	}
	logger.Debug("Fetched %d live events", len(events))

	processed, seen := m.RunCycle(ctx, events)
	m.Evict(seen)
	m.metrics.ObservePoll(true)
	return processed, nil
}

// PollDelay spaces polls by processed/divisor+1 units so that the odds
// request rate stays under the data source's limit.
func PollDelay(processed, divisor int, unit time.Duration) time.Duration {
	if divisor <= 0 {
		divisor = 1
	}
	return time.Duration(processed/divisor+1) * unit
}
