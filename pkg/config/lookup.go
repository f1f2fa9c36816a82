package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
)

// Lookup resolves connector settings stored under hierarchical paths such as
// "/services/connectors/slack/config/{org}". Get returns nil, nil when nothing
// is stored at path.
type Lookup interface {
	Get(ctx context.Context, path string) (map[string]any, error)
}

// Store is a Lookup that can also be written.
type Store interface {
	Lookup
	Put(ctx context.Context, path string, v map[string]any) error
}

// LookupScoped returns the settings stored at base/orgID, falling back to base.
func LookupScoped(ctx context.Context, l Lookup, base, orgID string) (map[string]any, error) {
	base = strings.TrimRight(base, "/")
	if orgID != "" {
		v, err := l.Get(ctx, base+"/"+orgID)
		if err != nil {
			return nil, err
		}
		if len(v) > 0 {
			return v, nil
		}
	}
	return l.Get(ctx, base)
}

// ──────────────────────────────────────────────────────────────────────────────
// In-memory lookup
// ──────────────────────────────────────────────────────────────────────────────

// StaticLookup is a mutex-guarded in-memory Lookup.
type StaticLookup struct {
	mu     sync.RWMutex
	values map[string]map[string]any
}

func NewStaticLookup() *StaticLookup {
	return &StaticLookup{values: make(map[string]map[string]any)}
}

// Set stores a copy of v at path.
func (s *StaticLookup) Set(path string, v map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[path] = maps.Clone(v)
}

// Put is Set with the Store signature.
func (s *StaticLookup) Put(_ context.Context, path string, v map[string]any) error {
	s.Set(path, v)
	return nil
}

func (s *StaticLookup) Get(_ context.Context, path string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[path]
	if !ok {
		return nil, nil
	}
	return maps.Clone(v), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Postgres lookup
// ──────────────────────────────────────────────────────────────────────────────

// PGLookup reads JSON documents from the connector_configs table.
type PGLookup struct {
	db *sql.DB
}

func NewPGLookup(db *sql.DB) *PGLookup {
	return &PGLookup{db: db}
}

func (p *PGLookup) Get(ctx context.Context, path string) (map[string]any, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM connector_configs WHERE path = $1`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config.PGLookup get %s: %w", path, err)
	}
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("config.PGLookup decode %s: %w", path, err)
	}
	return v, nil
}

// Put upserts the document stored at path.
func (p *PGLookup) Put(ctx context.Context, path string, v map[string]any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("config.PGLookup encode %s: %w", path, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO connector_configs (path, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		path, raw)
	if err != nil {
		return fmt.Errorf("config.PGLookup put %s: %w", path, err)
	}
	return nil
}
