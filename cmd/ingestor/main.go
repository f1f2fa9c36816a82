// Ingestor runs connector sync passes, serves live record content, and
// proxies registered tools to the remote execution backend.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bturcanu/ingestbridge/pkg/auth"
	"github.com/bturcanu/ingestbridge/pkg/config"
	"github.com/bturcanu/ingestbridge/pkg/connectors"
	slackconn "github.com/bturcanu/ingestbridge/pkg/connectors/slack"
	"github.com/bturcanu/ingestbridge/pkg/metrics"
	ibOtel "github.com/bturcanu/ingestbridge/pkg/otel"
	"github.com/bturcanu/ingestbridge/pkg/sink"
	"github.com/bturcanu/ingestbridge/pkg/sink/archive"
	"github.com/bturcanu/ingestbridge/pkg/sink/broker"
	"github.com/bturcanu/ingestbridge/pkg/sink/pg"
	"github.com/bturcanu/ingestbridge/pkg/tools"
)

const toolTokenTTL = 5 * time.Minute

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	// ── OpenTelemetry ────────────────────────────────────────────────────
	promReg := ibOtel.NewRegistry()
	otelShutdown, err := ibOtel.Setup(ctx, ibOtel.Config{
		ServiceName:  cfg.OTelServiceName,
		OTLPEndpoint: cfg.OTelEndpoint,
		Registry:     promReg,
	})
	if err != nil {
		log.Error("otel setup failed", "error", err)
	} else {
		defer otelShutdown(context.Background()) //nolint:errcheck // best-effort shutdown
	}
	m, err := metrics.Global()
	if err != nil {
		log.Error("metrics setup failed", "error", err)
		os.Exit(1)
	}

	// ── Postgres ─────────────────────────────────────────────────────────
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN())
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	store := pg.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Error("schema setup failed", "error", err)
		os.Exit(1)
	}

	var configStore config.Store = config.NewPGLookup(db)
	if cfg.ConfigSource == "env" {
		configStore = envLookup(cfg)
	}

	// ── Sinks ────────────────────────────────────────────────────────────
	fanout := sink.NewFanout().Add("postgres", store)

	if cfg.NSQDAddr != "" {
		producer, err := nsq.NewProducer(cfg.NSQDAddr, nsq.NewConfig())
		if err != nil {
			log.Error("nsq producer init failed", "error", err)
			os.Exit(1)
		}
		producer.SetLogger(slog.NewLogLogger(log.Handler(), slog.LevelWarn), nsq.LogLevelWarning)
		defer producer.Stop()
		fanout.Add("nsq", broker.NewPublisher(producer, cfg.RecordsTopic, log))
	}

	if cfg.ArchiveEndpoint != "" {
		uploader, err := archive.NewMinioUploader(archive.MinioConfig{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			Secure:    cfg.ArchiveSecure,
		})
		if err != nil {
			log.Error("archive init failed", "error", err)
			os.Exit(1)
		}
		if err := uploader.EnsureBucket(ctx); err != nil {
			log.Warn("archive bucket check failed", "bucket", cfg.ArchiveBucket, "error", err)
		}
		fanout.Add("archive", archive.New(uploader, log))
	}

	// ── Connectors ───────────────────────────────────────────────────────
	connectorReg := connectors.NewRegistry()
	connectorReg.Register(slackconn.New(configStore, fanout, log, slackconn.Options{
		NewAPI:  slackconn.NewWebAPI(&http.Client{Timeout: 30 * time.Second}, cfg.SlackRequestsPerSec),
		Metrics: m,
	}))

	// ── Tools ────────────────────────────────────────────────────────────
	var tokens tools.TokenSource = tools.StaticToken(cfg.ToolBackendToken)
	if cfg.ToolBackendJWTSecret != "" {
		signer, err := tools.NewJWTSigner(cfg.ToolBackendJWTSecret, toolTokenTTL)
		if err != nil {
			log.Error("tool token signer init failed", "error", err)
			os.Exit(1)
		}
		tokens = signer
	}
	proxy := tools.NewProxy(cfg.ToolBackendURL, tokens, log)
	proxy.SetTimeout(cfg.ToolBackendTimeout)
	proxy.SetMetrics(m)
	orgTools := tools.NewOrgRegistrars(proxy, log, m)

	keyStore, err := auth.ParseKeyStore(cfg.APIKeys)
	if err != nil {
		log.Error("api keys invalid", "error", err)
		os.Exit(1)
	}
	if keyStore.Len() == 0 {
		log.Warn("no API keys configured; every request will be rejected")
	}

	in := &Ingestor{
		log:         log,
		connectors:  connectorReg,
		records:     store,
		configStore: configStore,
		configs:     connectorConfigs(),
		tools:       orgTools,
		ready:       store.Ping,
		perOrgLimit: cfg.RateLimitPerOrg,
	}

	// ── Metrics (internal) ───────────────────────────────────────────────
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	go func() {
		log.Info("metrics server starting", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	// ── Server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           in.Routes(keyStore),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      6 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("ingestor starting", "addr", cfg.Addr, "connectors", connectorReg.Names(), "sinks", fanout.Len())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down ingestor")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutCtx); err != nil {
		log.Error("metrics server shutdown error", "error", err)
	}
}

func connectorConfigs() map[string]connectorConfig {
	return map[string]connectorConfig{
		slackconn.Name: {
			path: slackconn.ConfigPath,
			validate: func(doc map[string]any) error {
				_, err := slackconn.ParseSettings(doc)
				return err
			},
		},
	}
}

// envLookup serves the Slack settings from the process environment as the
// global connector config.
func envLookup(cfg *config.Config) *config.StaticLookup {
	l := config.NewStaticLookup()
	settings := map[string]any{
		"botToken":     cfg.SlackBotToken,
		"messageLimit": cfg.SlackMessageLimit,
	}
	if cfg.SlackAPIURL != "" {
		settings["apiUrl"] = cfg.SlackAPIURL
	}
	l.Set(slackconn.ConfigPath, settings)
	return l
}
