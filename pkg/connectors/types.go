// Package connectors defines the contract for record connectors and a
// registry that routes requests to them by name.
package connectors

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/bturcanu/ingestbridge/pkg/types"
)

// Connector pulls data from an external system and hands normalized records
// to a sink.
type Connector interface {
	// Name returns the registry key, e.g. "slack".
	Name() string

	// Sync runs one full pass for orgID. Failures that abort the pass are
	// returned; failures confined to one group are reported in SyncReport.
	Sync(ctx context.Context, orgID string) (*SyncReport, error)

	// StreamRecord re-fetches live content for a previously emitted record.
	// It never returns nil and Body always terminates.
	StreamRecord(ctx context.Context, rec *types.Record) *Content
}

// SyncReport summarizes one sync pass.
type SyncReport struct {
	RunID      string         `json:"run_id"`
	OrgID      string         `json:"org_id"`
	Connector  string         `json:"connector"`
	Groups     int            `json:"groups"`
	Records    int            `json:"records"`
	Skipped    int            `json:"skipped"`
	Failures   []GroupFailure `json:"failures,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// GroupFailure records a group (channel) whose contents could not be fetched.
type GroupFailure struct {
	GroupID string `json:"group_id"`
	Error   string `json:"error"`
}

// Content is the result of StreamRecord. Err is set when the body is a
// placeholder produced because the lookup failed.
type Content struct {
	MimeType string
	Body     io.ReadCloser
	Err      error
}

// TextContent wraps s as a Content body.
func TextContent(mimeType, s string, err error) *Content {
	return &Content{
		MimeType: mimeType,
		Body:     io.NopCloser(strings.NewReader(s)),
		Err:      err,
	}
}
