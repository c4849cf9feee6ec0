// Package ports defines the external collaborators the ingestion pipeline
// and transport depend on. The implementations live in internal/notify and
// internal/slack; tests substitute fakes.
package ports

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/models"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	Text   string
	Blocks []slack.Block
}

// Renderer turns a validated event into display text. Pure: same event,
// same message.
type Renderer interface {
	Render(event *models.Event) Message
}

// Deliverer posts a rendered message to a channel on behalf of a workspace.
type Deliverer interface {
	PostMessage(ctx context.Context, botToken, channelID string, msg Message) error
}

// OAuthResult is the outcome of exchanging an OAuth authorization code.
type OAuthResult struct {
	TeamID   string
	TeamName string
	BotToken string
}

// OAuthExchanger completes the OAuth handshake. The handshake itself lives
// outside the ingestion core; the callback handler only needs the exchange.
type OAuthExchanger interface {
	Exchange(ctx context.Context, code string) (*OAuthResult, error)
}
