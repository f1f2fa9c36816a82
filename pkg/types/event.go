package types

import (
	"errors"
	"fmt"
)

var ErrUnsupportedKind = errors.New("unsupported record kind")

// RecordEvent is the wire shape of a record as published to downstream
// indexing consumers.
type RecordEvent struct {
	RecordID                    string `json:"recordId"`
	OrgID                       string `json:"orgId"`
	RecordName                  string `json:"recordName"`
	RecordType                  string `json:"recordType"`
	ExternalRecordID            string `json:"externalRecordId"`
	Version                     int    `json:"version"`
	Origin                      string `json:"origin"`
	ConnectorName               string `json:"connectorName"`
	MimeType                    string `json:"mimeType"`
	WebURL                      string `json:"webUrl"`
	CreatedAtTimestamp          int64  `json:"createdAtTimestamp"`
	UpdatedAtTimestamp          int64  `json:"updatedAtTimestamp"`
	SourceCreatedAtTimestamp    int64  `json:"sourceCreatedAtTimestamp"`
	SourceLastModifiedTimestamp int64  `json:"sourceLastModifiedTimestamp"`
	ExternalGroupID             string `json:"externalGroupId"`

	// Message only.
	VirtualRecordID string `json:"virtualRecordId,omitempty"`

	// Container only.
	RecordGroupType string `json:"recordGroupType,omitempty"`
	IndexingStatus  string `json:"indexingStatus,omitempty"`
}

// EncodeEvent maps a record to its event payload. The mapping is selected by
// the record kind.
func EncodeEvent(r *Record) (*RecordEvent, error) {
	if r == nil {
		return nil, fmt.Errorf("encode event: %w", &ValidationError{Field: "record", Reason: "required"})
	}
	switch r.Kind {
	case KindMessage:
		ev := baseEvent(r)
		ev.VirtualRecordID = r.VirtualRecordID
		return ev, nil
	case KindContainer:
		ev := baseEvent(r)
		ev.RecordGroupType = string(r.GroupType)
		ev.IndexingStatus = string(r.IndexingStatus)
		return ev, nil
	default:
		return nil, fmt.Errorf("encode event %s: %w %q", r.ID, ErrUnsupportedKind, r.Kind)
	}
}

func baseEvent(r *Record) *RecordEvent {
	return &RecordEvent{
		RecordID:                    r.ID,
		OrgID:                       r.OrgID,
		RecordName:                  r.Name,
		RecordType:                  string(r.Kind),
		ExternalRecordID:            r.ExternalID,
		Version:                     r.Version,
		Origin:                      string(r.Origin),
		ConnectorName:               r.ConnectorName,
		MimeType:                    r.MimeType,
		WebURL:                      r.WebURL,
		CreatedAtTimestamp:          r.CreatedAt,
		UpdatedAtTimestamp:          r.UpdatedAt,
		SourceCreatedAtTimestamp:    r.SourceCreatedAt,
		SourceLastModifiedTimestamp: r.SourceUpdatedAt,
		ExternalGroupID:             r.ExternalGroupID,
	}
}
