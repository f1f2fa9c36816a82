// Package pg persists record batches and their permissions in Postgres.
package pg

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/bturcanu/ingestbridge/pkg/types"
)

//go:embed schema.sql
var schema string

// Store writes records through database/sql. In production the *sql.DB is
// opened from the service's pgxpool via pgx/v5/stdlib.
type Store struct {
	db *sql.DB
}

// NewStore creates a record store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables used by the store and the config lookup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("pg.EnsureSchema: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Write path
// ──────────────────────────────────────────────────────────────────────────────

const insertRecord = `
	INSERT INTO records (
		id, org_id, name, kind, group_type, origin, connector_name, version,
		created_at, updated_at, source_created_at, source_updated_at,
		external_id, external_group_id, mime_type, web_url,
		indexing_status, content, virtual_record_id
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,
		$9,$10,$11,$12,
		$13,$14,$15,$16,
		$17,$18,$19
	)`

const insertPermission = `
	INSERT INTO record_permissions (record_id, perm_type, entity_type, external_id)
	VALUES ($1,$2,$3,$4)
	ON CONFLICT DO NOTHING`

// OnNewRecords inserts every record and permission of batch in a single
// transaction.
func (s *Store) OnNewRecords(ctx context.Context, batch []types.RecordWithPermissions) error {
	if len(batch) == 0 {
		return nil
	}
	if err := types.ValidateBatch(batch); err != nil {
		return fmt.Errorf("pg.OnNewRecords: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pg.OnNewRecords begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range batch {
		r := item.Record
		_, err := tx.ExecContext(ctx, insertRecord,
			r.ID, r.OrgID, r.Name, string(r.Kind), string(r.GroupType), string(r.Origin), r.ConnectorName, r.Version,
			r.CreatedAt, r.UpdatedAt, r.SourceCreatedAt, r.SourceUpdatedAt,
			r.ExternalID, r.ExternalGroupID, r.MimeType, r.WebURL,
			string(r.IndexingStatus), r.Content, r.VirtualRecordID,
		)
		if err != nil {
			return fmt.Errorf("pg.OnNewRecords insert record %s: %w", r.ID, err)
		}
		for _, p := range item.Permissions {
			if _, err := tx.ExecContext(ctx, insertPermission, r.ID, string(p.Type), string(p.EntityType), p.ExternalID); err != nil {
				return fmt.Errorf("pg.OnNewRecords insert permission %s: %w", r.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pg.OnNewRecords commit: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Read path
// ──────────────────────────────────────────────────────────────────────────────

// GetRecord returns the record with id owned by orgID, or nil if none exists.
func (s *Store) GetRecord(ctx context.Context, orgID, id string) (*types.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, kind, group_type, origin, connector_name, version,
		       created_at, updated_at, source_created_at, source_updated_at,
		       external_id, external_group_id, mime_type, web_url,
		       indexing_status, content, virtual_record_id
		FROM records WHERE id = $1 AND org_id = $2`, id, orgID)

	var (
		r                                     types.Record
		kind, groupType, origin, indexingStat string
	)
	err := row.Scan(
		&r.ID, &r.OrgID, &r.Name, &kind, &groupType, &origin, &r.ConnectorName, &r.Version,
		&r.CreatedAt, &r.UpdatedAt, &r.SourceCreatedAt, &r.SourceUpdatedAt,
		&r.ExternalID, &r.ExternalGroupID, &r.MimeType, &r.WebURL,
		&indexingStat, &r.Content, &r.VirtualRecordID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pg.GetRecord: %w", err)
	}
	r.Kind = types.RecordKind(kind)
	r.GroupType = types.GroupType(groupType)
	r.Origin = types.Origin(origin)
	r.IndexingStatus = types.IndexingStatus(indexingStat)
	return &r, nil
}

// GetPermissions returns the permissions attached to a record.
func (s *Store) GetPermissions(ctx context.Context, recordID string) ([]types.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT perm_type, entity_type, external_id
		FROM record_permissions WHERE record_id = $1
		ORDER BY entity_type, external_id`, recordID)
	if err != nil {
		return nil, fmt.Errorf("pg.GetPermissions: %w", err)
	}
	defer rows.Close()

	var perms []types.Permission
	for rows.Next() {
		var pt, et string
		var p types.Permission
		if err := rows.Scan(&pt, &et, &p.ExternalID); err != nil {
			return nil, fmt.Errorf("pg.GetPermissions scan: %w", err)
		}
		p.Type = types.PermissionType(pt)
		p.EntityType = types.EntityType(et)
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pg.GetPermissions iteration: %w", err)
	}
	return perms, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
