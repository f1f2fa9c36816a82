package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bturcanu/ingestbridge/pkg/auth"
	"github.com/bturcanu/ingestbridge/pkg/config"
	"github.com/bturcanu/ingestbridge/pkg/connectors"
	"github.com/bturcanu/ingestbridge/pkg/tools"
	"github.com/bturcanu/ingestbridge/pkg/types"
)

const (
	maxBodyBytes    = 1 << 20 // 1 MB
	maxRateLimiters = 10_000

	requestTimeout = 30 * time.Second
	syncTimeout    = 5 * time.Minute
)

// ──────────────────────────────────────────────────────────────────────────────
// Ingestor handler
// ──────────────────────────────────────────────────────────────────────────────

type Ingestor struct {
	log          *slog.Logger
	connectors   ingestorConnectors
	records      ingestorRecords
	configStore  config.Store
	configs      map[string]connectorConfig
	tools        *tools.OrgRegistrars
	ready        func(context.Context) error
	rateLimiters map[string]*rate.Limiter
	rlOrder      []string
	rlMu         sync.Mutex
	perOrgLimit  int
}

// connectorConfig says where a connector's org settings live and how to
// check a submitted document before it is stored.
type connectorConfig struct {
	path     string
	validate func(map[string]any) error
}

type ingestorConnectors interface {
	Get(name string) (connectors.Connector, error)
}

type ingestorRecords interface {
	GetRecord(ctx context.Context, orgID, id string) (*types.Record, error)
	GetPermissions(ctx context.Context, recordID string) ([]types.Permission, error)
}

// Routes builds the public router. keys resolves API keys to orgs.
func (in *Ingestor) Routes(keys *auth.KeyStore) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(auth.APIKeyAuth(keys))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if in.ready != nil {
			if err := in.ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT READY"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// A full pass walks every channel; it gets a longer budget.
	r.With(middleware.Timeout(syncTimeout)).Post("/v1/connectors/{name}/sync", in.HandleSync)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Put("/v1/connectors/{name}/config", in.HandleSetConfig)
		r.Get("/v1/records/{id}/content", in.HandleRecordContent)
		r.Get("/v1/records/{id}/permissions", in.HandleRecordPermissions)
		r.Get("/v1/tools", in.HandleListTools)
		r.Post("/v1/tools/register", in.HandleRegisterTools)
		r.Post("/v1/tools/unregister", in.HandleUnregisterTools)
		r.Post("/v1/tools/{key}/execute", in.HandleExecuteTool)
	})
	return r
}

// HandleSync is POST /v1/connectors/{name}/sync
func (in *Ingestor) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := auth.OrgFromContext(ctx)
	if !in.allowRate(orgID) {
		types.ErrRateLimited().WriteJSON(w)
		return
	}

	name := chi.URLParam(r, "name")
	conn, err := in.connectors.Get(name)
	if err != nil {
		types.ErrNotFound("connector not found").WriteJSON(w)
		return
	}

	report, err := conn.Sync(ctx, orgID)
	if err != nil {
		in.log.ErrorContext(ctx, "sync failed", "connector", name, "org_id", orgID, "error", err)
		switch {
		case errors.Is(err, connectors.ErrConfigMissing):
			types.ErrConfigMissingAPI(name).WriteJSON(w)
		case errors.Is(err, connectors.ErrListChannels):
			types.ErrUpstream(name, "listing failed").WriteJSON(w)
		default:
			types.ErrInternal("sync failed").WriteJSON(w)
		}
		return
	}

	writeJSON(ctx, in.log, w, http.StatusOK, report)
}

// HandleSetConfig is PUT /v1/connectors/{name}/config. The document is stored
// for the caller's org only and is never read back over the API.
func (in *Ingestor) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := auth.OrgFromContext(ctx)
	name := chi.URLParam(r, "name")

	cc, ok := in.configs[name]
	if !ok || in.configStore == nil {
		types.ErrNotFound("connector not found").WriteJSON(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || doc == nil {
		types.ErrBadRequest("body must be a JSON object").WriteJSON(w)
		return
	}
	if cc.validate != nil {
		if err := cc.validate(doc); err != nil {
			types.ErrValidation(err).WriteJSON(w)
			return
		}
	}

	if err := in.configStore.Put(ctx, cc.path+"/"+orgID, doc); err != nil {
		in.log.ErrorContext(ctx, "store connector config failed", "connector", name, "org_id", orgID, "error", err)
		types.ErrInternal("failed to store config").WriteJSON(w)
		return
	}
	in.log.InfoContext(ctx, "connector config updated", "connector", name, "org_id", orgID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRecordContent is GET /v1/records/{id}/content. The record must belong
// to the caller's org. When live content cannot be fetched the placeholder
// body is still returned and the reason is carried in a header.
func (in *Ingestor) HandleRecordContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := auth.OrgFromContext(ctx)
	if !in.allowRate(orgID) {
		types.ErrRateLimited().WriteJSON(w)
		return
	}

	rec, ok := in.orgRecord(w, r)
	if !ok {
		return
	}
	id := rec.ID

	conn, err := in.connectors.Get(strings.ToLower(rec.ConnectorName))
	if err != nil {
		in.log.ErrorContext(ctx, "no connector for record", "record_id", id, "connector", rec.ConnectorName)
		types.ErrNotFound("connector not found").WriteJSON(w)
		return
	}

	content := conn.StreamRecord(ctx, rec)
	defer content.Body.Close()

	if content.Err != nil {
		in.log.WarnContext(ctx, "record content unavailable", "record_id", id, "error", content.Err)
		w.Header().Set(types.HeaderContentError, content.Err.Error())
	}
	w.Header().Set("Content-Type", content.MimeType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content.Body); err != nil {
		in.log.ErrorContext(ctx, "content copy failed", "record_id", id, "error", err)
	}
}

// HandleRecordPermissions is GET /v1/records/{id}/permissions. An empty list
// means the record is public.
func (in *Ingestor) HandleRecordPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, ok := in.orgRecord(w, r)
	if !ok {
		return
	}

	perms, err := in.records.GetPermissions(ctx, rec.ID)
	if err != nil {
		in.log.ErrorContext(ctx, "get permissions failed", "record_id", rec.ID, "error", err)
		types.ErrInternal("failed to retrieve permissions").WriteJSON(w)
		return
	}
	if perms == nil {
		perms = []types.Permission{}
	}
	writeJSON(ctx, in.log, w, http.StatusOK, types.RecordWithPermissions{Record: rec, Permissions: perms})
}

// orgRecord loads the {id} record of the caller's org, writing the error
// response itself when there is none.
func (in *Ingestor) orgRecord(w http.ResponseWriter, r *http.Request) (*types.Record, bool) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		types.ErrBadRequest("invalid record id format").WriteJSON(w)
		return nil, false
	}

	rec, err := in.records.GetRecord(ctx, auth.OrgFromContext(ctx), id)
	if err != nil {
		in.log.ErrorContext(ctx, "get record failed", "record_id", id, "error", err)
		types.ErrInternal("failed to retrieve record").WriteJSON(w)
		return nil, false
	}
	if rec == nil {
		types.ErrNotFound("record not found").WriteJSON(w)
		return nil, false
	}
	return rec, true
}

// HandleListTools is GET /v1/tools. Only the caller's org tools are listed.
func (in *Ingestor) HandleListTools(w http.ResponseWriter, r *http.Request) {
	list := []*tools.Tool{}
	if reg, ok := in.tools.Lookup(auth.OrgFromContext(r.Context())); ok {
		list = reg.Registry().List()
	}
	writeJSON(r.Context(), in.log, w, http.StatusOK, tools.ListResponse{Tools: list})
}

// HandleRegisterTools is POST /v1/tools/register. The submitted user id is
// scoped to the caller's org before tools are bound to it.
func (in *Ingestor) HandleRegisterTools(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := auth.OrgFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req tools.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		types.ErrBadRequest("invalid JSON body").WriteJSON(w)
		return
	}
	if req.UserID == "" {
		types.ErrValidation(&types.ValidationError{Field: "user_id", Reason: "required"}).WriteJSON(w)
		return
	}
	if len(req.Tools) == 0 {
		types.ErrValidation(&types.ValidationError{Field: "tools", Reason: "must not be empty"}).WriteJSON(w)
		return
	}

	reg := in.tools.For(orgID)
	n := reg.RegisterRemote(ctx, req.Tools, tools.OrgUser(orgID, req.UserID))
	writeJSON(ctx, in.log, w, http.StatusOK, tools.RegisterResponse{
		Registered: n,
		Keys:       reg.Registry().Keys(),
	})
}

// HandleUnregisterTools is POST /v1/tools/unregister
func (in *Ingestor) HandleUnregisterTools(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req tools.UnregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		types.ErrBadRequest("invalid JSON body").WriteJSON(w)
		return
	}
	if len(req.Apps) == 0 {
		types.ErrValidation(&types.ValidationError{Field: "apps", Reason: "must not be empty"}).WriteJSON(w)
		return
	}

	n := 0
	if reg, ok := in.tools.Lookup(auth.OrgFromContext(ctx)); ok {
		n = reg.UnregisterApps(ctx, req.Apps)
	}
	writeJSON(ctx, in.log, w, http.StatusOK, tools.UnregisterResponse{Removed: n})
}

// HandleExecuteTool is POST /v1/tools/{key}/execute. A failed execution is
// answered with 502 and the structured error body.
func (in *Ingestor) HandleExecuteTool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := auth.OrgFromContext(ctx)
	if !in.allowRate(orgID) {
		types.ErrRateLimited().WriteJSON(w)
		return
	}

	key := chi.URLParam(r, "key")
	var tool *tools.Tool
	if reg, found := in.tools.Lookup(orgID); found {
		tool, _ = reg.Registry().Get(key)
	}
	if tool == nil {
		types.ErrNotFound("tool not found").WriteJSON(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req tools.ExecuteToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		types.ErrBadRequest("invalid JSON body").WriteJSON(w)
		return
	}

	res := tool.Run(ctx, req.Params)
	status := http.StatusOK
	if res.Failed() {
		in.log.WarnContext(ctx, "tool execution failed", "tool", key, "org_id", orgID, "error", res.Err.Message)
		status = http.StatusBadGateway
	}
	writeJSON(ctx, in.log, w, status, res)
}

func writeJSON(ctx context.Context, log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.ErrorContext(ctx, "response encode failed", "error", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Rate limiting (bounded map with eviction)
// ──────────────────────────────────────────────────────────────────────────────

func (in *Ingestor) allowRate(orgID string) bool {
	in.rlMu.Lock()
	defer in.rlMu.Unlock()

	if in.rateLimiters == nil {
		in.rateLimiters = make(map[string]*rate.Limiter)
	}

	lim, ok := in.rateLimiters[orgID]
	if ok {
		// Move to end of LRU order.
		for i, k := range in.rlOrder {
			if k == orgID {
				in.rlOrder = append(in.rlOrder[:i], in.rlOrder[i+1:]...)
				break
			}
		}
		in.rlOrder = append(in.rlOrder, orgID)
		return lim.Allow()
	}

	if len(in.rateLimiters) >= maxRateLimiters {
		oldest := in.rlOrder[0]
		in.rlOrder = in.rlOrder[1:]
		delete(in.rateLimiters, oldest)
	}

	lim = rate.NewLimiter(rate.Limit(in.perOrgLimit), in.perOrgLimit*2)
	in.rateLimiters[orgID] = lim
	in.rlOrder = append(in.rlOrder, orgID)
	return lim.Allow()
}
