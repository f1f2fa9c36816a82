package tools

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// Tool is a registered proxy for one remote action.
type Tool struct {
	App         string          `json:"app"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Provider    string          `json:"provider,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`

	userID string
	exec   Executor
}

func (t *Tool) Key() string { return Key(t.App, t.Action) }

// Run executes the tool on the remote backend on behalf of the user it was
// registered for.
func (t *Tool) Run(ctx context.Context, params json.RawMessage) Result {
	return t.exec.Execute(ctx, t.userID, t.Key(), params)
}

// Registry holds tools keyed by "app.action". Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register inserts t unless its key is already present. It reports whether t
// was inserted; existing entries are never replaced.
func (r *Registry) Register(t *Tool) bool {
	key := t.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[key]; ok {
		return false
	}
	r.tools[key] = t
	return true
}

func (r *Registry) Get(key string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[key]
	return t, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.tools))
	for k := range r.tools {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// List returns the registered tools ordered by key.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Tool) int { return cmp.Compare(a.Key(), b.Key()) })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// RemoveApps deletes every tool whose app (the key text before the first '.')
// is listed and returns the removed keys in sorted order.
func (r *Registry) RemoveApps(apps []string) []string {
	if len(apps) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for key := range r.tools {
		if slices.Contains(apps, appOf(key)) {
			delete(r.tools, key)
			removed = append(removed, key)
		}
	}
	slices.Sort(removed)
	return removed
}
