package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func mustKeys(t *testing.T, raw string) *KeyStore {
	t.Helper()
	ks, err := ParseKeyStore(raw)
	if err != nil {
		t.Fatalf("parse keys: %v", err)
	}
	return ks
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	handler := APIKeyAuth(mustKeys(t, "org1:sk-abc"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if org := OrgFromContext(r.Context()); org != "org1" {
			t.Errorf("expected org1, got %q", org)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/tools", nil)
	req.Header.Set("X-API-Key", "sk-abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestAPIKeyAuth_Rejects(t *testing.T) {
	handler := APIKeyAuth(mustKeys(t, "org1:sk-abc"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	for name, key := range map[string]string{"invalid": "bad-key", "missing": ""} {
		req := httptest.NewRequest("GET", "/v1/tools", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, rr.Code)
		}
	}
}

func TestAPIKeyAuth_SkipsProbes(t *testing.T) {
	handler := APIKeyAuth(NewKeyStore())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest("GET", path, nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected 200 for %s, got %d", path, rr.Code)
		}
	}
}

func TestAPIKeyAuth_BearerToken(t *testing.T) {
	handler := APIKeyAuth(mustKeys(t, "org1:sk-abc"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if org := OrgFromContext(r.Context()); org != "org1" {
			t.Errorf("expected org1, got %q", org)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/tools", nil)
	req.Header.Set("Authorization", "Bearer sk-abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestWithOrg(t *testing.T) {
	if got := OrgFromContext(WithOrg(context.Background(), "org9")); got != "org9" {
		t.Errorf("OrgFromContext = %q", got)
	}
	if got := OrgFromContext(context.Background()); got != "" {
		t.Errorf("expected empty org, got %q", got)
	}
}
