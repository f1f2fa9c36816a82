// Package slack syncs Slack channels and their recent messages into records.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rusq/slack"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bturcanu/ingestbridge/pkg/config"
	"github.com/bturcanu/ingestbridge/pkg/connectors"
	"github.com/bturcanu/ingestbridge/pkg/metrics"
	"github.com/bturcanu/ingestbridge/pkg/sink"
	"github.com/bturcanu/ingestbridge/pkg/types"
)

// Name is the registry key of the connector.
const Name = "slack"

var channelTypes = []string{"public_channel", "private_channel"}

var errMessageNotFound = errors.New("message not found")

// Options tune a Connector. Zero values select production defaults.
type Options struct {
	NewAPI  NewAPIFunc
	Metrics *metrics.Metrics
	Now     func() time.Time
	NewID   func() string
}

// Connector implements connectors.Connector for Slack. It holds no per-org
// state; settings and the API client are resolved on every call.
type Connector struct {
	lookup  config.Lookup
	sink    sink.Sink
	logger  *slog.Logger
	newAPI  NewAPIFunc
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

var _ connectors.Connector = (*Connector)(nil)

func New(lookup config.Lookup, s sink.Sink, logger *slog.Logger, opts Options) *Connector {
	c := &Connector{
		lookup:  lookup,
		sink:    s,
		logger:  logger,
		newAPI:  opts.NewAPI,
		metrics: opts.Metrics,
		tracer:  otel.Tracer("github.com/bturcanu/ingestbridge/pkg/connectors/slack"),
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if c.newAPI == nil {
		c.newAPI = NewWebAPI(&http.Client{Timeout: 30 * time.Second}, 0)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

func (c *Connector) Name() string { return Name }

// ──────────────────────────────────────────────────────────────────────────────
// Sync
// ──────────────────────────────────────────────────────────────────────────────

// Sync lists the workspace's channels, fetches the most recent messages of
// each and hands every resulting record to the sink in one batch. A channel
// whose history cannot be fetched is reported and skipped; a listing failure
// aborts the pass. The returned report is never nil.
func (c *Connector) Sync(ctx context.Context, orgID string) (*connectors.SyncReport, error) {
	report := &connectors.SyncReport{
		RunID:     ulid.Make().String(),
		OrgID:     orgID,
		Connector: Name,
		StartedAt: c.now().UTC(),
	}
	ctx, span := c.tracer.Start(ctx, "slack.Sync", trace.WithAttributes(
		attribute.String("org_id", orgID),
		attribute.String("run_id", report.RunID),
	))
	defer span.End()
	log := c.logger.With("org_id", orgID, "run_id", report.RunID, "connector", Name)

	err := c.sync(ctx, log, report)
	report.FinishedAt = c.now().UTC()

	result := "ok"
	switch {
	case err != nil:
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorContext(ctx, "slack sync failed", "error", err)
	case len(report.Failures) > 0:
		result = "partial"
	}
	span.SetAttributes(attribute.Int("records", report.Records), attribute.Int("channels", report.Groups))
	c.metrics.SyncRun(ctx, Name, result)
	return report, err
}

func (c *Connector) sync(ctx context.Context, log *slog.Logger, report *connectors.SyncReport) error {
	if report.OrgID == "" {
		return &types.ValidationError{Field: "org_id", Reason: "required"}
	}
	settings, err := LoadSettings(ctx, c.lookup, report.OrgID)
	if err != nil {
		return err
	}
	api := c.newAPI(settings)

	c.logWorkspace(ctx, log, api)

	channels, _, err := api.GetConversationsContext(ctx, &slack.GetConversationsParameters{Types: channelTypes})
	if err != nil {
		return fmt.Errorf("%w: %w", connectors.ErrListChannels, err)
	}
	log.InfoContext(ctx, "fetched slack channels", "count", len(channels))

	n := &normalizer{orgID: report.OrgID, now: c.now, newID: c.newID}
	var (
		batch []types.RecordWithPermissions
		kinds = make(map[types.RecordKind]int)
	)
	add := func(r *types.Record) {
		batch = append(batch, types.RecordWithPermissions{Record: r, Permissions: permissionsFor(report.OrgID, settings)})
		kinds[r.Kind]++
	}

	for _, ch := range channels {
		if ch.ID == "" {
			report.Skipped++
			c.metrics.Skipped(ctx, Name, "no_channel_id")
			continue
		}
		report.Groups++
		add(n.channelRecord(ch))

		msgs, err := c.history(ctx, api, ch.ID, settings.MessageLimit)
		if err != nil {
			log.ErrorContext(ctx, "fetch channel messages failed", "channel_id", ch.ID, "channel", ch.Name, "error", err)
			report.Failures = append(report.Failures, connectors.GroupFailure{GroupID: ch.ID, Error: err.Error()})
			c.metrics.GroupFailure(ctx, Name)
			continue
		}
		for _, m := range msgs {
			rec, reason := n.messageRecord(ch.ID, m)
			if reason != "" {
				report.Skipped++
				c.metrics.Skipped(ctx, Name, string(reason))
				continue
			}
			add(rec)
		}
	}

	report.Records = len(batch)
	if len(batch) == 0 {
		log.WarnContext(ctx, "no channels or messages to sync")
		return nil
	}

	if err := types.ValidateBatch(batch); err != nil {
		return fmt.Errorf("slack batch: %w", err)
	}
	if err := c.sink.OnNewRecords(ctx, batch); err != nil {
		return fmt.Errorf("%w: %w", connectors.ErrSink, err)
	}
	for kind, count := range kinds {
		c.metrics.Records(ctx, Name, string(kind), count)
	}
	log.InfoContext(ctx, "slack records ingested", "records", len(batch), "channels", report.Groups, "skipped", report.Skipped)
	return nil
}

// logWorkspace logs the connected workspace. Failures are not fatal.
func (c *Connector) logWorkspace(ctx context.Context, log *slog.Logger, api API) {
	team, err := api.GetTeamInfoContext(ctx)
	if err != nil {
		log.WarnContext(ctx, "could not fetch workspace info", "error", err)
		return
	}
	log.InfoContext(ctx, "connected to slack workspace", "team_id", team.ID, "team", team.Name)
}

func (c *Connector) history(ctx context.Context, api API, channelID string, limit int) ([]slack.Message, error) {
	resp, err := api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", connectors.ErrFetchMessages, channelID, err)
	}
	if !resp.Ok {
		return nil, fmt.Errorf("%w: %s: %s", connectors.ErrFetchMessages, channelID, resp.Error)
	}
	return resp.Messages, nil
}

// permissionsFor returns the org-wide read grant, or an empty list for orgs
// configured as public.
func permissionsFor(orgID string, s Settings) []types.Permission {
	if s.Public {
		return []types.Permission{}
	}
	return []types.Permission{types.OrgRead(orgID)}
}

// ──────────────────────────────────────────────────────────────────────────────
// Content retrieval
// ──────────────────────────────────────────────────────────────────────────────

// StreamRecord returns live content for a record emitted by Sync. Channel
// records yield a one-line description; message records are re-fetched from
// Slack by channel and timestamp. Lookup failures produce a readable
// placeholder body with Err wrapping connectors.ErrContentUnavailable.
func (c *Connector) StreamRecord(ctx context.Context, rec *types.Record) *connectors.Content {
	if rec == nil {
		return connectors.TextContent(types.MimePlainText, "", fmt.Errorf("%w: nil record", connectors.ErrContentUnavailable))
	}
	ctx, span := c.tracer.Start(ctx, "slack.StreamRecord", trace.WithAttributes(
		attribute.String("org_id", rec.OrgID),
		attribute.String("external_id", rec.ExternalID),
	))
	defer span.End()
	log := c.logger.With("org_id", rec.OrgID, "external_id", rec.ExternalID)

	settings, err := LoadSettings(ctx, c.lookup, rec.OrgID)
	if err != nil {
		span.RecordError(err)
		log.ErrorContext(ctx, "stream record init failed", "error", err)
		return connectors.TextContent(types.MimePlainText, "", err)
	}

	channelID, ts, ok := splitExternalID(rec.ExternalID)
	if !ok {
		return connectors.TextContent(types.MimePlainText, "Slack Channel: "+rec.Name+"\n", nil)
	}

	text, err := c.fetchMessage(ctx, c.newAPI(settings), channelID, ts)
	if err != nil {
		span.RecordError(err)
		log.ErrorContext(ctx, "fetch slack message failed", "error", err)
		return connectors.TextContent(types.MimePlainText,
			"Could not fetch message content: "+err.Error(),
			fmt.Errorf("%w: %w", connectors.ErrContentUnavailable, err))
	}
	return connectors.TextContent(types.MimePlainText, text, nil)
}

func (c *Connector) fetchMessage(ctx context.Context, api API, channelID, ts string) (string, error) {
	resp, err := api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Latest:    ts,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		return "", err
	}
	if !resp.Ok {
		return "", errors.New(resp.Error)
	}
	// History returns the newest message at or before ts, which is an older
	// message when the target was deleted.
	if len(resp.Messages) == 0 || resp.Messages[0].Timestamp != ts {
		return "", errMessageNotFound
	}
	return resp.Messages[0].Text, nil
}
