package messaging

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/telkomfield/visitbot/internal/models"
)

// RenderPrompt flattens a prompt into plain chat text. Choices become a
// numbered list so users on channels without buttons can answer with
// the option number or the option label.
func RenderPrompt(p models.Prompt) string {
	var b strings.Builder
	b.WriteString(p.Text)
	if len(p.Choices) > 0 {
		b.WriteString("\n")
		for i, c := range p.Choices {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, c.Label))
		}
	}
	if p.AllowBack {
		b.WriteString("\n\nReply \"back\" to correct your previous answer.")
	}
	return b.String()
}

// MatchChoice resolves a raw text reply against the choices last offered
// to the user. It accepts the option number, the exact key, or the label
// (case-insensitive).
func MatchChoice(reply string, choices []models.Choice) (string, bool) {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" || len(choices) == 0 {
		return "", false
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(choices) {
			return choices[n-1].Key, true
		}
		return "", false
	}
	for _, c := range choices {
		if trimmed == c.Key || strings.EqualFold(trimmed, c.Label) {
			return c.Key, true
		}
	}
	return "", false
}

// keywordTriggers maps free-text commands onto navigation triggers.
// These work in any state, matching what the inline keyboards offer.
var keywordTriggers = map[string]string{
	"start":  models.TriggerStart,
	"begin":  models.TriggerStart,
	"back":   models.TriggerBack,
	"undo":   models.TriggerBack,
	"cancel": models.TriggerAbort,
	"stop":   models.TriggerAbort,
	"status": models.TriggerStatus,
	"help":   models.TriggerHelp,
	"menu":   models.TriggerHelp,
}

// MatchTrigger reports whether a raw text reply is a navigation keyword.
func MatchTrigger(reply string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(reply))
	normalized = strings.TrimPrefix(normalized, "/")
	trigger, ok := keywordTriggers[normalized]
	return trigger, ok
}
