package detector

import "github.com/rewired-gh/linewatch/internal/models"

// FilterNoise removes frames that carry no usable line information.
// The series is newest first and the result keeps that order.
//
// A frame is dropped when the market's required quotes are unavailable, or
// when its line agrees with none of its chronological neighbours. The newest
// frame is always kept since it has no successor yet; the next poll judges it
// again once one arrives.
func FilterNoise(market models.MarketType, series []models.Snapshot) []models.Snapshot {
	quoted := make([]models.Snapshot, 0, len(series))
	for _, s := range series {
		if market.Quoted(s) {
			quoted = append(quoted, s)
		}
	}

	out := make([]models.Snapshot, 0, len(quoted))
	for i, s := range quoted {
		if i == 0 {
			out = append(out, s)
			continue
		}
		newer := quoted[i-1].Line.Equal(s.Line)
		older := i+1 < len(quoted) && quoted[i+1].Line.Equal(s.Line)
		if newer || older {
			out = append(out, s)
		}
	}
	return out
}
