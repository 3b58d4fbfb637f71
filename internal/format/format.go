package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"skype-alertbot/internal/models"
)

// Mode selects how an alert group is rendered for chat.
type Mode string

const (
	// ModeShort renders one condensed line per alert.
	ModeShort Mode = "short"
	// ModeFull renders a multi-field block per alert.
	ModeFull Mode = "full"
)

// Delimiter separates alert blocks in full mode.
const Delimiter = "----------------"

// Valid reports whether m is a known rendering mode.
func (m Mode) Valid() bool {
	return m == ModeShort || m == ModeFull
}

// Message renders a webhook message as a single chat message body.
func Message(msg *models.WebhookMessage, mode Mode) string {
	if mode == ModeFull {
		return strings.Join(FullBlocks(msg), "\n"+Delimiter+"\n")
	}
	return strings.Join(Short(msg), "\n")
}

// Short renders exactly one line per alert: status, alert name, summary and
// the remaining labels. Absent annotations are simply omitted.
func Short(msg *models.WebhookMessage) []string {
	lines := make([]string, 0, len(msg.Alerts))
	for i := range msg.Alerts {
		alert := &msg.Alerts[i]

		var b strings.Builder
		b.WriteString(alert.Status)
		if name := alert.Name(); name != "" {
			b.WriteString(" ")
			b.WriteString(name)
		}
		if summary := alert.Summary(); summary != "" {
			b.WriteString(": ")
			b.WriteString(summary)
		}
		if extra := labelPairs(alert.Labels, "alertname"); len(extra) > 0 {
			b.WriteString(" (")
			b.WriteString(strings.Join(extra, ", "))
			b.WriteString(")")
		}
		lines = append(lines, b.String())
	}
	return lines
}

// FullBlocks renders one multi-line block per alert. Callers join the blocks
// with Delimiter; the block count always equals the alert count.
func FullBlocks(msg *models.WebhookMessage) []string {
	blocks := make([]string, 0, len(msg.Alerts))
	for i := range msg.Alerts {
		alert := &msg.Alerts[i]

		var b strings.Builder
		fmt.Fprintf(&b, "Alert: %s\n", alert.Name())
		fmt.Fprintf(&b, "Status: %s\n", alert.Status)
		if !alert.StartsAt.IsZero() {
			fmt.Fprintf(&b, "Starts: %s\n", alert.StartsAt.Format(time.RFC1123))
		}
		if !alert.EndsAt.IsZero() {
			fmt.Fprintf(&b, "Ends: %s\n", alert.EndsAt.Format(time.RFC1123))
		}
		if pairs := labelPairs(alert.Labels, "alertname"); len(pairs) > 0 {
			fmt.Fprintf(&b, "Labels: %s\n", strings.Join(pairs, ", "))
		}
		if pairs := labelPairs(alert.Annotations, ""); len(pairs) > 0 {
			fmt.Fprintf(&b, "Annotations: %s\n", strings.Join(pairs, ", "))
		}
		blocks = append(blocks, strings.TrimRight(b.String(), "\n"))
	}
	return blocks
}

// labelPairs returns "k=v" pairs sorted by key so output is deterministic.
func labelPairs[M ~map[string]string](m M, skip string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if k == skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+m[k])
	}
	return pairs
}
