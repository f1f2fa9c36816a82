package slack

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rusq/slack"

	"github.com/bturcanu/ingestbridge/pkg/types"
)

const (
	ConnectorName = "SLACK"

	nameSummaryRunes = 100
	systemUser       = "system"
	unknownChannel   = "Unknown"
)

// Message subtypes that carry user content. Any other non-empty subtype
// (joins, topic changes, bot housekeeping) is dropped.
var allowedSubtypes = map[string]bool{
	"file_share":       true,
	"thread_broadcast": true,
}

type skipReason string

const (
	skipSubtype      skipReason = "subtype"
	skipEmpty        skipReason = "empty"
	skipNoTimestamp  skipReason = "no_timestamp"
	skipBadTimestamp skipReason = "bad_timestamp"
)

// normalizer turns Slack channels and messages into records for one org and
// one pass.
type normalizer struct {
	orgID string
	now   func() time.Time
	newID func() string
}

func (n *normalizer) channelRecord(ch slack.Channel) *types.Record {
	name := ch.Name
	if name == "" {
		name = unknownChannel
	}
	now := types.EpochMillis(n.now())
	return &types.Record{
		ID:              n.newID(),
		OrgID:           n.orgID,
		Name:            name,
		Kind:            types.KindContainer,
		GroupType:       types.GroupSlackChannel,
		Origin:          types.OriginConnector,
		ConnectorName:   ConnectorName,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		SourceCreatedAt: int64(ch.Created) * 1000,
		ExternalID:      ch.ID,
		ExternalGroupID: ch.ID,
		MimeType:        types.MimeFolder,
		WebURL:          channelWebURL(ch.ID),
		IndexingStatus:  types.IndexingCompleted,
	}
}

// messageRecord returns the record for m or the reason it produced none.
func (n *normalizer) messageRecord(channelID string, m slack.Message) (*types.Record, skipReason) {
	if reason := qualify(m); reason != "" {
		return nil, reason
	}
	created, err := tsMillis(m.Timestamp)
	if err != nil {
		return nil, skipBadTimestamp
	}

	id := n.newID()
	now := types.EpochMillis(n.now())
	return &types.Record{
		ID:              id,
		OrgID:           n.orgID,
		Name:            displayName(m.User, m.Text),
		Kind:            types.KindMessage,
		GroupType:       types.GroupSlackChannel,
		Origin:          types.OriginConnector,
		ConnectorName:   ConnectorName,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		SourceCreatedAt: created,
		ExternalID:      messageExternalID(channelID, m.Timestamp),
		ExternalGroupID: channelID,
		MimeType:        types.MimePlainText,
		WebURL:          messageWebURL(channelID, m.Timestamp),
		IndexingStatus:  types.IndexingNotStarted,
		Content:         m.Text,
		VirtualRecordID: id,
	}, ""
}

func qualify(m slack.Message) skipReason {
	if m.SubType != "" && !allowedSubtypes[m.SubType] {
		return skipSubtype
	}
	if m.Text == "" && len(m.Files) == 0 {
		return skipEmpty
	}
	if m.Timestamp == "" {
		return skipNoTimestamp
	}
	return ""
}

// displayName is "Message from {user}: " followed by the first 100 runes of
// text with newlines flattened, and "..." when text was longer.
func displayName(user, text string) string {
	if user == "" {
		user = systemUser
	}
	truncated := utf8.RuneCountInString(text) > nameSummaryRunes
	summary := text
	if truncated {
		summary = string([]rune(text)[:nameSummaryRunes])
	}
	summary = strings.ReplaceAll(summary, "\n", " ")
	if truncated {
		summary += "..."
	}
	return "Message from " + user + ": " + summary
}

func messageExternalID(channelID, ts string) string {
	return channelID + ":" + ts
}

// splitExternalID reports the channel and timestamp of a message external id.
// Channel records have no ':' and return ok == false.
func splitExternalID(externalID string) (channelID, ts string, ok bool) {
	return strings.Cut(externalID, ":")
}

func channelWebURL(channelID string) string {
	return "https://slack.com/app_redirect?channel=" + channelID
}

func messageWebURL(channelID, ts string) string {
	return "https://slack.com/archives/" + channelID + "/p" + strings.ReplaceAll(ts, ".", "")
}

// tsMillis converts a Slack "seconds.micros" timestamp to epoch milliseconds,
// truncating toward zero.
func tsMillis(ts string) (int64, error) {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return 0, err
	}
	return int64(f * 1000), nil
}
