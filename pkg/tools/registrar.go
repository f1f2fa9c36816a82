package tools

import (
	"context"
	"log/slog"

	"github.com/bturcanu/ingestbridge/pkg/metrics"
)

// Registrar wraps descriptors as remote tools and maintains a registry.
type Registrar struct {
	reg     *Registry
	exec    Executor
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRegistrar(reg *Registry, exec Executor, logger *slog.Logger, m *metrics.Metrics) *Registrar {
	return &Registrar{reg: reg, exec: exec, logger: logger, metrics: m}
}

func (r *Registrar) Registry() *Registry { return r.reg }

// RegisterRemote wraps each descriptor as a tool executing as userID and
// inserts it if its key is free. Invalid descriptors are logged and skipped.
// It returns the number of tools inserted.
func (r *Registrar) RegisterRemote(ctx context.Context, descs []Descriptor, userID string) int {
	n := 0
	for _, d := range descs {
		app, action, err := ParseName(d.Name)
		if err != nil {
			r.logger.WarnContext(ctx, "skipping tool descriptor", "name", d.Name, "error", err)
			continue
		}
		t := &Tool{
			App:         app,
			Action:      action,
			Description: d.Description,
			Provider:    d.Provider,
			Parameters:  d.Parameters,
			userID:      userID,
			exec:        r.exec,
		}
		if !r.reg.Register(t) {
			r.logger.DebugContext(ctx, "tool already registered", "tool", t.Key())
			continue
		}
		n++
	}
	r.metrics.ToolsRegistered(ctx, n)
	r.logger.InfoContext(ctx, "registered remote tools", "count", n, "submitted", len(descs))
	return n
}

// UnregisterApps removes every tool belonging to one of apps and returns how
// many were removed.
func (r *Registrar) UnregisterApps(ctx context.Context, apps []string) int {
	removed := r.reg.RemoveApps(apps)
	r.metrics.ToolsRegistered(ctx, -len(removed))
	r.logger.InfoContext(ctx, "unregistered tools", "apps", apps, "count", len(removed))
	return len(removed)
}
