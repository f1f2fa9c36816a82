package archive

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bturcanu/ingestbridge/pkg/types"
)

type fakeUploader struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, key string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.bodies = append(f.bodies, body)
	return nil
}

func rec(id, org, ext string) types.RecordWithPermissions {
	return types.RecordWithPermissions{
		Record: &types.Record{
			ID: id, OrgID: org, Kind: types.KindMessage, ExternalID: ext,
			IndexingStatus: types.IndexingNotStarted,
		},
		Permissions: []types.Permission{types.OrgRead(org)},
	}
}

func fixedArchiver(up Uploader) *Archiver {
	a := New(up, slog.Default())
	a.now = func() time.Time { return time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestArchiveOrgBuildsBundle(t *testing.T) {
	up := &fakeUploader{}
	a := fixedArchiver(up)

	batch := []types.RecordWithPermissions{rec("r1", "org1", "C1:1"), rec("r2", "org1", "C1:2")}
	key, err := a.ArchiveOrg(context.Background(), "org1", batch)
	if err != nil {
		t.Fatalf("archive org: %v", err)
	}
	if !strings.HasPrefix(key, "records/org1/2026/03/07/") || !strings.HasSuffix(key, ".json") {
		t.Fatalf("unexpected key %s", key)
	}

	var b Bundle
	if err := json.Unmarshal(up.bodies[0], &b); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if b.RecordCount != 2 || len(b.Records) != 2 || b.OrgID != "org1" {
		t.Fatalf("unexpected bundle %+v", b)
	}
	if !strings.Contains(key, b.Digest) {
		t.Fatalf("key %s does not embed digest %s", key, b.Digest)
	}
}

func TestArchiveOrgSameContentSameKey(t *testing.T) {
	up := &fakeUploader{}
	a := fixedArchiver(up)
	batch := []types.RecordWithPermissions{rec("r1", "org1", "C1:1")}

	k1, _ := a.ArchiveOrg(context.Background(), "org1", batch)
	k2, _ := a.ArchiveOrg(context.Background(), "org1", batch)
	if k1 != k2 {
		t.Fatalf("expected identical keys, got %s and %s", k1, k2)
	}
}

func TestOnNewRecordsSplitsByOrg(t *testing.T) {
	up := &fakeUploader{}
	a := fixedArchiver(up)

	batch := []types.RecordWithPermissions{rec("r1", "org1", "C1:1"), rec("r2", "org2", "C2:1"), rec("r3", "org1", "C1:2")}
	if err := a.OnNewRecords(context.Background(), batch); err != nil {
		t.Fatalf("on new records: %v", err)
	}
	if len(up.keys) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(up.keys))
	}
	if !strings.HasPrefix(up.keys[0], "records/org1/") || !strings.HasPrefix(up.keys[1], "records/org2/") {
		t.Fatalf("unexpected keys %v", up.keys)
	}
}

func TestOnNewRecordsUploadError(t *testing.T) {
	up := &fakeUploader{err: errors.New("bucket gone")}
	err := fixedArchiver(up).OnNewRecords(context.Background(), []types.RecordWithPermissions{rec("r1", "org1", "C1:1")})
	if err == nil || !strings.Contains(err.Error(), "bucket gone") {
		t.Fatalf("expected upload error, got %v", err)
	}
}
