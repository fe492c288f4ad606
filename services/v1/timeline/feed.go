package timeline

import (
	"fmt"
	"strings"
	"time"

	"reacher-incidents/events"
	"reacher-incidents/models"
)

func stateEmoji(state *models.State) string {
	switch {
	case state.IsResolvedState:
		return "✅"
	case state.IsAcknowledgedState:
		return "👀"
	case state.IsCreatedState:
		return "🔴"
	}
	return "➡️"
}

// FeedEvent monta a mensagem de feed de uma mudança de estado.
func FeedEvent(state *models.State, label, rootCause, userID string, at time.Time) *events.FeedEvent {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Changed **%s State** to **%s**", stateEmoji(state), label, state.Name)
	if strings.TrimSpace(rootCause) != "" {
		b.WriteString("\n\n**Cause:** \n")
		b.WriteString(rootCause)
	}
	return &events.FeedEvent{
		ProjectID:    state.ProjectID,
		Markdown:     b.String(),
		Color:        state.Color,
		NotifyUserID: userID,
		At:           at,
	}
}
