package slack

import (
	"fmt"
	"net/url"
	"strings"
)

// Command is a parsed slash command invocation. Parsing works on the raw
// body because signature verification must see the exact bytes first; the
// form is only decoded after the request is authenticated.
type Command struct {
	TeamID      string
	UserID      string
	ChannelID   string
	ChannelName string
	Command     string
	Text        string
	ResponseURL string
}

// ParseCommand decodes the form-encoded slash command body.
func ParseCommand(body []byte) (*Command, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse command body: %w", err)
	}
	cmd := &Command{
		TeamID:      values.Get("team_id"),
		UserID:      values.Get("user_id"),
		ChannelID:   values.Get("channel_id"),
		ChannelName: values.Get("channel_name"),
		Command:     values.Get("command"),
		Text:        strings.TrimSpace(values.Get("text")),
		ResponseURL: values.Get("response_url"),
	}
	if cmd.TeamID == "" {
		return nil, fmt.Errorf("command body missing team_id")
	}
	if cmd.UserID == "" {
		return nil, fmt.Errorf("command body missing user_id")
	}
	return cmd, nil
}

// Subcommand returns the first word of the command text, lowercased.
func (c *Command) Subcommand() string {
	fields := strings.Fields(c.Text)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
