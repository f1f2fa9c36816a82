// Package archive writes an immutable JSON bundle of every record batch to
// object storage.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bturcanu/ingestbridge/pkg/canonical"
	"github.com/bturcanu/ingestbridge/pkg/types"
)

type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// Bundle is the archived form of the records one org received in one batch.
type Bundle struct {
	OrgID       string                        `json:"org_id"`
	CreatedAt   time.Time                     `json:"created_at"`
	RecordCount int                           `json:"record_count"`
	Digest      string                        `json:"digest"`
	Records     []types.RecordWithPermissions `json:"records"`
}

type Archiver struct {
	uploader Uploader
	logger   *slog.Logger
	now      func() time.Time
}

func New(uploader Uploader, logger *slog.Logger) *Archiver {
	return &Archiver{uploader: uploader, logger: logger, now: time.Now}
}

// OnNewRecords uploads one bundle per org present in the batch.
func (a *Archiver) OnNewRecords(ctx context.Context, batch []types.RecordWithPermissions) error {
	for _, orgID := range orgOrder(batch) {
		if _, err := a.ArchiveOrg(ctx, orgID, batch); err != nil {
			return err
		}
	}
	return nil
}

// ArchiveOrg uploads the records of batch owned by orgID and returns the object
// key. The key embeds the digest of the records so identical content maps to
// the same object.
func (a *Archiver) ArchiveOrg(ctx context.Context, orgID string, batch []types.RecordWithPermissions) (string, error) {
	var records []types.RecordWithPermissions
	for _, item := range batch {
		if item.Record != nil && item.Record.OrgID == orgID {
			records = append(records, item)
		}
	}
	if len(records) == 0 {
		return "", nil
	}

	_, digest, err := canonical.MarshalDigest(records)
	if err != nil {
		return "", fmt.Errorf("archive digest: %w", err)
	}

	now := a.now().UTC()
	body, err := canonical.Marshal(Bundle{
		OrgID:       orgID,
		CreatedAt:   now,
		RecordCount: len(records),
		Digest:      digest,
		Records:     records,
	})
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}

	key := fmt.Sprintf("records/%s/%04d/%02d/%02d/%s.json", orgID, now.Year(), now.Month(), now.Day(), digest)
	if err := a.uploader.Upload(ctx, key, body); err != nil {
		return "", err
	}
	a.logger.InfoContext(ctx, "archived record bundle", "org_id", orgID, "key", key, "count", len(records))
	return key, nil
}

func orgOrder(batch []types.RecordWithPermissions) []string {
	seen := make(map[string]bool)
	var orgs []string
	for _, item := range batch {
		if item.Record == nil || seen[item.Record.OrgID] {
			continue
		}
		seen[item.Record.OrgID] = true
		orgs = append(orgs, item.Record.OrgID)
	}
	return orgs
}
