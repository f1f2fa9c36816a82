// Tool-backend-stub is a local stand-in for the remote tool execution
// endpoint. It echoes every call back; actions ending in ".fail" fail.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bturcanu/ingestbridge/pkg/config"
	"github.com/bturcanu/ingestbridge/pkg/tools"
)

func echo(_ context.Context, userID, action string, params json.RawMessage) tools.Result {
	if strings.HasSuffix(action, ".fail") {
		return tools.Fail("simulated failure", action)
	}
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	output, err := json.Marshal(map[string]any{
		"tool":   action,
		"user":   userID,
		"params": params,
		"mock":   true,
	})
	if err != nil {
		return tools.Fail(err.Error(), action)
	}
	return tools.OK(output)
}

func newRouter(cfg tools.HandlerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post(tools.ExecutePath, tools.Handler(tools.ExecutorFunc(echo), cfg))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	addr := config.EnvOr("TOOL_BACKEND_STUB_ADDR", ":3001")

	handler := newRouter(tools.HandlerConfig{
		Token:     os.Getenv("TOOL_BACKEND_TOKEN"),
		JWTSecret: os.Getenv("TOOL_BACKEND_JWT_SECRET"),
		Logger:    log,
	})

	log.Info("tool-backend-stub starting", "addr", addr)
	if err := http.ListenAndServe(addr, handler); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
