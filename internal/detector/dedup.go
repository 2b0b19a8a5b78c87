package detector

import "github.com/rewired-gh/linewatch/internal/models"

// Deduplicate collapses each run of equal consecutive lines into one frame.
// Input and output are newest first. The frame kept for a run is its most
// recent one, so later time differences are measured from when the line was
// last seen at that value.
func Deduplicate(filtered []models.Snapshot) []models.Snapshot {
	if len(filtered) == 0 {
		return nil
	}
	out := make([]models.Snapshot, 0, len(filtered))
	for _, s := range filtered {
		if n := len(out); n > 0 && out[n-1].Line.Equal(s.Line) {
			continue
		}
		out = append(out, s)
	}
	return out
}
