package detector

import (
	"fmt"
	"html"
	"strings"

	"github.com/rewired-gh/linewatch/internal/models"
)

// PreliveMarker is shown instead of a match clock before kick-off.
const PreliveMarker = "Prelive"

// VenueURL builds the event page link: <base>/<id>/<Home-Team>-v-<Away-Team>.
func VenueURL(base, eventID, home, away string) string {
	slug := func(s string) string {
		return strings.Join(strings.Fields(s), "-")
	}
	return fmt.Sprintf("%s/%s/%s-v-%s", strings.TrimRight(base, "/"), eventID, slug(home), slug(away))
}

// RenderAlert formats an alert as Telegram HTML.
func RenderAlert(a models.Alert) string {
	var b strings.Builder

	if a.Prelive {
		fmt.Fprintf(&b, "🕒 <b>%s</b>\n", PreliveMarker)
	}
	fmt.Fprintf(&b, "⚽ %s\n", html.EscapeString(a.League))

	clock := PreliveMarker
	if !a.Prelive && a.GameTime != "" {
		clock = html.EscapeString(a.GameTime) + "'"
	}
	fmt.Fprintf(&b, "⏱ %s %s %s %s\n",
		clock, html.EscapeString(a.Home), html.EscapeString(a.Score), html.EscapeString(a.Away))

	fmt.Fprintf(&b, "<b>%s</b> from <b>%s</b> -&gt; <b>%s</b> in %ds\n",
		html.EscapeString(a.Market.Label()), a.From, a.To, a.Elapsed)
	b.WriteString(html.EscapeString(a.VenueURL))

	return b.String()
}

func renderBufferNotice(st *EventState, eventID string, until int64) string {
	return fmt.Sprintf("⏸ %s v %s (%s): penalty or red card, detection paused until %d",
		html.EscapeString(st.Home), html.EscapeString(st.Away), eventID, until)
}

func renderRangeNotice(st *EventState, ch models.ChangeEvent) string {
	return fmt.Sprintf("🚫 %s v %s (%s): %s %s %s -&gt; %s stopped by range filter",
		html.EscapeString(st.Home), html.EscapeString(st.Away), ch.EventID,
		ch.Severity, html.EscapeString(ch.Market.Label()), ch.Reference.Line, ch.Entry.Line)
}

func renderGoalNotice(st *EventState, eventID string, market models.MarketType, entry models.Snapshot) string {
	return fmt.Sprintf("⚠️ %s v %s (%s): goal within running data on %s at snapshot %d",
		html.EscapeString(st.Home), html.EscapeString(st.Away), eventID,
		html.EscapeString(market.Label()), entry.ID)
}
