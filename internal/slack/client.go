// Package slack adapts the slack-go SDK to the delivery and OAuth ports.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/ports"
)

// Client posts messages and exchanges OAuth codes. The bot token is supplied
// per call because every workspace has its own; clientID and clientSecret
// identify the app itself for the OAuth exchange.
type Client struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for Slack API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New constructs a Slack API client adapter.
func New(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostMessage delivers a rendered message to a channel. The context bounds
// the call; the caller owns timeout policy.
func (c *Client) PostMessage(ctx context.Context, botToken, channelID string, msg ports.Message) error {
	api := slack.New(botToken, slack.OptionHTTPClient(c.httpClient))

	options := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if len(msg.Blocks) > 0 {
		options = append(options, slack.MsgOptionBlocks(msg.Blocks...))
	}

	_, _, err := api.PostMessageContext(ctx, channelID, options...)
	if err != nil {
		return fmt.Errorf("post message to %s: %w", channelID, err)
	}
	return nil
}

// Exchange completes the OAuth v2 code exchange and returns the workspace
// identity and bot token to persist.
func (c *Client) Exchange(ctx context.Context, code string) (*ports.OAuthResult, error) {
	resp, err := slack.GetOAuthV2ResponseContext(ctx, c.httpClient, c.clientID, c.clientSecret, code, "")
	if err != nil {
		return nil, fmt.Errorf("oauth exchange: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, errors.New("oauth exchange: empty access token")
	}
	return &ports.OAuthResult{
		TeamID:   resp.Team.ID,
		TeamName: resp.Team.Name,
		BotToken: resp.AccessToken,
	}, nil
}

var (
	_ ports.Deliverer      = (*Client)(nil)
	_ ports.OAuthExchanger = (*Client)(nil)
)
