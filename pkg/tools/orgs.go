package tools

import (
	"log/slog"
	"sync"

	"github.com/bturcanu/ingestbridge/pkg/metrics"
)

// OrgRegistrars keeps one Registrar per org. Tools registered by one org are
// never visible to, executable by, or removable by another.
type OrgRegistrars struct {
	mu      sync.Mutex
	byOrg   map[string]*Registrar
	exec    Executor
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewOrgRegistrars(exec Executor, logger *slog.Logger, m *metrics.Metrics) *OrgRegistrars {
	return &OrgRegistrars{
		byOrg:   make(map[string]*Registrar),
		exec:    exec,
		logger:  logger,
		metrics: m,
	}
}

// For returns the org's registrar, creating an empty one on first use.
func (o *OrgRegistrars) For(orgID string) *Registrar {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.byOrg[orgID]
	if !ok {
		r = NewRegistrar(NewRegistry(), o.exec, o.logger.With("org_id", orgID), o.metrics)
		o.byOrg[orgID] = r
	}
	return r
}

// Lookup returns the org's registrar without creating one.
func (o *OrgRegistrars) Lookup(orgID string) (*Registrar, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.byOrg[orgID]
	return r, ok
}

// OrgUser is the identity a tool executes as when userID is submitted by a
// caller authenticated as orgID. The org prefix keeps one org from acting as
// another org's users on the backend.
func OrgUser(orgID, userID string) string {
	return orgID + ":" + userID
}
