package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 1 << 20

// HandlerConfig controls bearer verification. With neither field set every
// request is accepted.
type HandlerConfig struct {
	// Token is a shared bearer token.
	Token string
	// JWTSecret verifies HS256 tokens whose subject must equal user_id.
	JWTSecret string
	Logger    *slog.Logger
}

// Handler serves the backend side of the execute contract on top of exec.
func Handler(exec Executor, cfg HandlerConfig) http.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		bearer, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req ExecRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if !authorized(cfg, bearer, req.UserID) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if req.Action == "" {
			http.Error(w, "action is required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		res := exec.Execute(ctx, req.UserID, req.Action, req.Params)

		resp := ExecResponse{Success: !res.Failed()}
		if res.Failed() {
			resp.Error = res.Err.Message
		} else {
			resp.Result = res.Value
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error("encode response failed", "error", err)
		}
	}
}

func authorized(cfg HandlerConfig, bearer, userID string) bool {
	switch {
	case cfg.JWTSecret != "":
		sub, err := VerifyJWT(bearer, cfg.JWTSecret)
		return err == nil && sub == userID
	case cfg.Token != "":
		return bearer == cfg.Token
	default:
		return true
	}
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, userID, action string, params json.RawMessage) Result

func (f ExecutorFunc) Execute(ctx context.Context, userID, action string, params json.RawMessage) Result {
	return f(ctx, userID, action, params)
}
