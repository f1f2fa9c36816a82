package slack

import (
	"context"
	"net/http"

	"github.com/rusq/slack"
	"golang.org/x/time/rate"
)

// API is the subset of the Slack Web API the connector calls. *slack.Client
// satisfies it.
type API interface {
	GetTeamInfoContext(ctx context.Context) (*slack.TeamInfo, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
}

// NewAPIFunc builds an API client from resolved settings.
type NewAPIFunc func(s Settings) API

// NewWebAPI returns a NewAPIFunc that builds rate-limited Slack Web API
// clients sharing httpClient. rps <= 0 disables limiting.
func NewWebAPI(httpClient *http.Client, rps float64) NewAPIFunc {
	return func(s Settings) API {
		opts := []slack.Option{slack.OptionHTTPClient(httpClient)}
		if s.APIURL != "" {
			opts = append(opts, slack.OptionAPIURL(s.APIURL))
		}
		api := slack.New(s.BotToken, opts...)
		if rps <= 0 {
			return api
		}
		return &limitedAPI{api: api, lim: rate.NewLimiter(rate.Limit(rps), 1)}
	}
}

// limitedAPI waits on a token bucket before every call. Slack tier-3 methods
// allow roughly 50 calls per minute per workspace.
type limitedAPI struct {
	api API
	lim *rate.Limiter
}

func (l *limitedAPI) GetTeamInfoContext(ctx context.Context) (*slack.TeamInfo, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.api.GetTeamInfoContext(ctx)
}

func (l *limitedAPI) GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, "", err
	}
	return l.api.GetConversationsContext(ctx, params)
}

func (l *limitedAPI) GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return l.api.GetConversationHistoryContext(ctx, params)
}
