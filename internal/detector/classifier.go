package detector

import (
	"github.com/rewired-gh/linewatch/internal/logger"
	"github.com/rewired-gh/linewatch/internal/models"
)

// Thresholds are the minimum absolute line changes for each severity.
type Thresholds struct {
	Soft   models.Line
	Medium models.Line
	Hard   models.Line
}

// Classify maps a line change to a severity, SeverityNone below Soft.
func (th Thresholds) Classify(change models.Line) models.Severity {
	switch {
	case change.Cmp(th.Hard) >= 0:
		return models.Hard
	case change.Cmp(th.Medium) >= 0:
		return models.Medium
	case change.Cmp(th.Soft) >= 0:
		return models.Soft
	default:
		return models.SeverityNone
	}
}

// classifyInput is everything the classifier reads for one market.
type classifyInput struct {
	eventID         string
	market          models.MarketType
	watermark       Watermark
	suppressedUntil int64
	goals           models.Pair
	dedup           []models.Snapshot // newest first
}

// classifyResult is the outcome for one market. advanced is false when no
// entry was fully processed and the watermark must stay where it is.
type classifyResult struct {
	changes   []models.ChangeEvent
	watermark Watermark
	advanced  bool

	// entries whose reference pairing crossed a score change
	goalInRunning []models.Snapshot
}

type classifier struct {
	thresholds      Thresholds
	lookbackSeconds int64
}

// recent returns the frames newer than the watermark, newest first.
func (c *classifier) recent(in classifyInput) []models.Snapshot {
	var out []models.Snapshot
	for _, s := range in.dedup {
		if s.ID <= in.watermark.ID {
			break
		}
		if !in.market.Quoted(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *classifier) classify(in classifyInput) classifyResult {
	res := classifyResult{watermark: in.watermark}

	recent := c.recent(in)
	if len(recent) == 0 {
		return res
	}

	running := in.watermark.Value
	for i := len(recent) - 1; i >= 0; i-- {
		entry := recent[i]

		if !entry.Line.Equal(running) {
			if entry.AddedAt < in.suppressedUntil {
				logger.Debug("Event %s market %s: snapshot %d inside buffer, skipped", in.eventID, in.market, entry.ID)
				continue
			}
			if entry.Score.Known && entry.Score != in.goals {
				logger.Debug("Event %s market %s: snapshot %d score %s differs from event score %s, skipped",
					in.eventID, in.market, entry.ID, entry.Score, in.goals)
				continue
			}
			c.pair(in, entry, &res)
		}

		running = entry.Line
		res.watermark = Watermark{ID: entry.ID, Value: entry.Line, Set: true}
		res.advanced = true
	}

	return res
}

// pair scans backwards from entry for reference frames inside the lookback
// window and records at most one change per severity.
func (c *classifier) pair(in classifyInput, entry models.Snapshot, res *classifyResult) {
	taken := make(map[models.Severity]bool, len(models.Severities))
	goalNoted := false

	for _, ref := range in.dedup {
		if len(taken) == len(models.Severities) {
			return
		}
		if ref.ID >= entry.ID || !in.market.Quoted(ref) || ref.AddedAt < in.suppressedUntil {
			continue
		}
		dt := entry.AddedAt - ref.AddedAt
		if dt > c.lookbackSeconds {
			return
		}
		if dt <= 0 {
			continue
		}

		change := entry.Line.Sub(ref.Line).Abs()
		sev := c.thresholds.Classify(change)
		if sev == models.SeverityNone || taken[sev] {
			continue
		}

		if entry.Score != ref.Score {
			logger.Info("Event %s market %s: goal within running data (%s -> %s), reference %d ignored",
				in.eventID, in.market, ref.Score, entry.Score, ref.ID)
			if !goalNoted {
				res.goalInRunning = append(res.goalInRunning, entry)
				goalNoted = true
			}
			continue
		}

		taken[sev] = true
		res.changes = append(res.changes, models.ChangeEvent{
			EventID:        in.eventID,
			Market:         in.market,
			Severity:       sev,
			Change:         change,
			TimeDifference: dt,
			Entry:          entry,
			Reference:      ref,
		})
	}
}
