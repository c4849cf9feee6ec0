// Package notify renders validated alert events into Slack messages. The
// renderer is pure: the same event always produces the same message, and it
// performs no I/O.
package notify

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/ports"
)

// Renderer builds notification text and Block Kit layout for alert events.
type Renderer struct{}

// New constructs the renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render produces the fallback text and rich blocks for an event.
func (r *Renderer) Render(event *models.Event) ports.Message {
	headline := fmt.Sprintf(":chart_with_upwards_trend: *%s* alert triggered", event.Data.Symbol)
	condition := describeCondition(event.Data)

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Symbol:*\n%s", event.Data.Symbol), false, false),
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Condition:*\n%s", condition), false, false),
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Current value:*\n%s", formatValue(event.Data.CurrentValue)), false, false),
	}
	if event.Data.Threshold != nil {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*Threshold:*\n%s", formatValue(*event.Data.Threshold)), false, false))
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, headline, false, false),
			nil, nil,
		),
		slack.NewSectionBlock(nil, fields, nil),
		slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("Triggered at %s", event.Data.TriggeredAt), false, false),
		),
	}

	text := fmt.Sprintf("%s alert: %s (current value %s)",
		event.Data.Symbol, condition, formatValue(event.Data.CurrentValue))

	return ports.Message{Text: text, Blocks: blocks}
}

// describeCondition turns a machine condition like "price_above" into
// readable text, appending the threshold when the condition carries one.
func describeCondition(data models.AlertData) string {
	desc := strings.ReplaceAll(data.Condition, "_", " ")
	if desc == "" {
		desc = "alert condition met"
	}
	if data.Threshold != nil {
		desc = fmt.Sprintf("%s %s", desc, formatValue(*data.Threshold))
	}
	return desc
}

// formatValue trims trailing zeros so 230.50 renders as 230.5 and 1000000
// stays integral.
func formatValue(v float64) string {
	s := strings.TrimRight(fmt.Sprintf("%.4f", v), "0")
	return strings.TrimSuffix(s, ".")
}
