package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "github.com/stockalert-pro/stockalert-slack-app/pkg/domainerrors"
)

// Installation is one Slack workspace connected to a StockAlert account.
// TeamID is the Slack team identifier and the tenant key everywhere else in
// the system. BotToken is the workspace-scoped token used for delivery;
// APIKey, WebhookSecret, and WebhookID describe the StockAlert side of the
// integration and are cleared together on disconnect.
type Installation struct {
	TeamID        string
	TeamName      string
	BotToken      string
	APIKey        string
	WebhookSecret string
	WebhookID     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewInstallation(teamID, teamName, botToken string, now time.Time) (*Installation, error) {
	if strings.TrimSpace(teamID) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "team ID cannot be empty")
	}
	if strings.TrimSpace(botToken) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "bot token cannot be empty")
	}
	return &Installation{
		TeamID:    teamID,
		TeamName:  teamName,
		BotToken:  botToken,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Connected reports whether the StockAlert integration is active for this
// workspace. The Slack install can outlive the integration.
func (i *Installation) Connected() bool {
	return i.APIKey != "" && i.WebhookSecret != ""
}

// Connect attaches StockAlert credentials to the installation.
func (i *Installation) Connect(apiKey, webhookSecret, webhookID string, now time.Time) error {
	if strings.TrimSpace(apiKey) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "API key cannot be empty")
	}
	if strings.TrimSpace(webhookSecret) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "webhook secret cannot be empty")
	}
	i.APIKey = apiKey
	i.WebhookSecret = webhookSecret
	i.WebhookID = webhookID
	i.UpdatedAt = now
	return nil
}

// Reauthorize refreshes the Slack credentials after a repeat OAuth flow.
// Integration fields are untouched; reinstalling the app must not sever a
// working StockAlert connection.
func (i *Installation) Reauthorize(teamName, botToken string, now time.Time) error {
	if strings.TrimSpace(botToken) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "bot token cannot be empty")
	}
	i.TeamName = teamName
	i.BotToken = botToken
	i.UpdatedAt = now
	return nil
}

// Disconnect clears integration credentials while keeping the Slack
// installation itself, so reconnecting does not require a reinstall.
func (i *Installation) Disconnect(now time.Time) error {
	if !i.Connected() {
		return dErrors.New(dErrors.CodeInvariantViolation, "installation is not connected")
	}
	i.APIKey = ""
	i.WebhookSecret = ""
	i.WebhookID = ""
	i.UpdatedAt = now
	return nil
}

// ChannelBinding maps a workspace to a Slack channel that receives alerts.
// At most one binding per team carries IsDefault; the store enforces the
// exclusivity transactionally.
type ChannelBinding struct {
	ID          uuid.UUID
	TeamID      string
	ChannelID   string
	ChannelName string
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewChannelBinding(teamID, channelID, channelName string, now time.Time) (*ChannelBinding, error) {
	if strings.TrimSpace(teamID) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "team ID cannot be empty")
	}
	if strings.TrimSpace(channelID) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "channel ID cannot be empty")
	}
	return &ChannelBinding{
		ID:          uuid.New(),
		TeamID:      teamID,
		ChannelID:   channelID,
		ChannelName: channelName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
