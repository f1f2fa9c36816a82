// Package types defines the canonical record schema shared by connectors and sinks.
package types

import (
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Enumerations
// ──────────────────────────────────────────────────────────────────────────────

// RecordKind is the tagged variant over record shapes.
type RecordKind string

const (
	KindContainer RecordKind = "CONTAINER"
	KindMessage   RecordKind = "MESSAGE"
	KindOther     RecordKind = "OTHER"
)

type GroupType string

const GroupSlackChannel GroupType = "SLACK_CHANNEL"

type Origin string

const OriginConnector Origin = "CONNECTOR"

type IndexingStatus string

const (
	IndexingNotStarted IndexingStatus = "NOT_STARTED"
	IndexingInProgress IndexingStatus = "IN_PROGRESS"
	IndexingCompleted  IndexingStatus = "COMPLETED"
	IndexingFailed     IndexingStatus = "FAILED"
)

const (
	MimeFolder    = "text/directory"
	MimePlainText = "text/plain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Record: a normalized document or container unit
// ──────────────────────────────────────────────────────────────────────────────

type Record struct {
	// Identity
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`

	// Classification
	Kind          RecordKind `json:"kind"`
	GroupType     GroupType  `json:"group_type"`
	Origin        Origin     `json:"origin"`
	ConnectorName string     `json:"connector_name"`
	Version       int        `json:"version"`

	// Timestamps, epoch milliseconds
	CreatedAt       int64 `json:"created_at"`
	UpdatedAt       int64 `json:"updated_at"`
	SourceCreatedAt int64 `json:"source_created_at"`
	SourceUpdatedAt int64 `json:"source_updated_at,omitempty"`

	// Source system identifiers
	ExternalID      string `json:"external_id"`
	ExternalGroupID string `json:"external_group_id,omitempty"`

	// Rendering and indexing
	MimeType       string         `json:"mime_type"`
	WebURL         string         `json:"web_url,omitempty"`
	IndexingStatus IndexingStatus `json:"indexing_status"`

	Content         string `json:"content,omitempty"`
	VirtualRecordID string `json:"virtual_record_id,omitempty"`
}

// Validate enforces the invariants a record must satisfy before a sink sees it.
func (r *Record) Validate() error {
	if r.OrgID == "" {
		return &ValidationError{Field: "org_id", Reason: "required"}
	}
	if r.ExternalID == "" {
		return &ValidationError{Field: "external_id", Reason: "required"}
	}
	switch r.Kind {
	case KindContainer, KindMessage, KindOther:
	default:
		return &ValidationError{Field: "kind", Reason: "unknown kind " + string(r.Kind)}
	}
	return nil
}

// IsContainer reports whether the record groups other records rather than
// carrying content of its own.
func (r *Record) IsContainer() bool {
	return r.Kind == KindContainer
}

// EpochMillis converts t to the millisecond timestamps used on records.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// ──────────────────────────────────────────────────────────────────────────────
// Permission: an access grant attached to a record batch
// ──────────────────────────────────────────────────────────────────────────────

type PermissionType string

const (
	PermissionRead  PermissionType = "READ"
	PermissionWrite PermissionType = "WRITE"
	PermissionOwner PermissionType = "OWNER"
)

type EntityType string

const (
	EntityOrg   EntityType = "ORG"
	EntityGroup EntityType = "GROUP"
	EntityUser  EntityType = "USER"
)

// Permission is a value type; copies are never mutated after construction.
type Permission struct {
	Type       PermissionType `json:"type"`
	EntityType EntityType     `json:"entity_type"`
	ExternalID string         `json:"external_id"`
}

// OrgRead grants read access to every member of orgID.
func OrgRead(orgID string) Permission {
	return Permission{Type: PermissionRead, EntityType: EntityOrg, ExternalID: orgID}
}

// RecordWithPermissions is the unit handed to a sink. An empty Permissions
// slice means no restriction beyond the record itself (public), not "no access".
type RecordWithPermissions struct {
	Record      *Record      `json:"record"`
	Permissions []Permission `json:"permissions"`
}

// ValidateBatch checks every record of a batch and returns the first failure.
func ValidateBatch(batch []RecordWithPermissions) error {
	for i := range batch {
		if batch[i].Record == nil {
			return &ValidationError{Field: "record", Reason: "required"}
		}
		if err := batch[i].Record.Validate(); err != nil {
			return err
		}
	}
	return nil
}
