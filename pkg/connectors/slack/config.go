package slack

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bturcanu/ingestbridge/pkg/config"
	"github.com/bturcanu/ingestbridge/pkg/connectors"
)

// ConfigPath is the base lookup path; org-specific settings live under
// ConfigPath + "/" + orgID.
const ConfigPath = "/services/connectors/slack/config"

const defaultMessageLimit = 50

// Settings is the resolved Slack configuration for one org.
type Settings struct {
	BotToken     string
	APIURL       string
	MessageLimit int
	// Public attaches no permissions to emitted records.
	Public bool
}

// LoadSettings resolves the org's settings, falling back to the global entry.
func LoadSettings(ctx context.Context, l config.Lookup, orgID string) (Settings, error) {
	raw, err := config.LookupScoped(ctx, l, ConfigPath, orgID)
	if err != nil {
		return Settings{}, fmt.Errorf("slack config lookup: %w", err)
	}
	if len(raw) == 0 {
		return Settings{}, fmt.Errorf("%w: no slack config for org %s", connectors.ErrConfigMissing, orgID)
	}
	return ParseSettings(raw)
}

// ParseSettings reads the keys botToken, apiUrl, messageLimit and public.
func ParseSettings(raw map[string]any) (Settings, error) {
	s := Settings{MessageLimit: defaultMessageLimit}

	s.BotToken, _ = raw["botToken"].(string)
	if s.BotToken == "" {
		return Settings{}, fmt.Errorf("%w: botToken is empty", connectors.ErrConfigMissing)
	}
	s.APIURL, _ = raw["apiUrl"].(string)

	switch v := raw["messageLimit"].(type) {
	case nil:
	case float64:
		s.MessageLimit = int(v)
	case int:
		s.MessageLimit = v
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("slack config: messageLimit %q: %w", v, err)
		}
		s.MessageLimit = n
	default:
		return Settings{}, fmt.Errorf("slack config: messageLimit has type %T", v)
	}
	if s.MessageLimit <= 0 {
		s.MessageLimit = defaultMessageLimit
	}

	switch v := raw["public"].(type) {
	case bool:
		s.Public = v
	case string:
		s.Public, _ = strconv.ParseBool(v)
	}
	return s, nil
}
