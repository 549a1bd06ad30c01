// Valet Daemon
//
// HTTP server for the valet command core: intent parsing, policy-gated
// execution, and pending-action confirmation.
//
// Usage:
//
//	go run ./cmd/valetd                        # Default :8080, in-memory store
//	go run ./cmd/valetd --addr :9090           # Custom port
//	go run ./cmd/valetd --redis-addr :6379     # Redis-backed store
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valet-assistant/valet-core/eventbus"
	"github.com/valet-assistant/valet-core/httpapi"
	"github.com/valet-assistant/valet-core/valet/audit"
	"github.com/valet-assistant/valet-core/valet/config"
	"github.com/valet-assistant/valet-core/valet/executor"
	"github.com/valet-assistant/valet-core/valet/observability"
	"github.com/valet-assistant/valet-core/valet/pending"
	"github.com/valet-assistant/valet-core/valet/policy"
	"github.com/valet-assistant/valet-core/valet/profile"
	"github.com/valet-assistant/valet-core/valet/provider"
	"github.com/valet-assistant/valet-core/valet/ratelimit"
	"github.com/valet-assistant/valet-core/valet/router"
	"github.com/valet-assistant/valet-core/valet/session"
	"github.com/valet-assistant/valet-core/valet/store"
)

// stdLogger implements the package Logger interfaces using standard
// library log.
type stdLogger struct{}

func (l *stdLogger) Debug(msg string, keysAndValues ...any) {
	log.Printf("[DEBUG] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Info(msg string, keysAndValues ...any) {
	log.Printf("[INFO] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Warn(msg string, keysAndValues ...any) {
	log.Printf("[WARN] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Error(msg string, keysAndValues ...any) {
	log.Printf("[ERROR] %s %v", msg, keysAndValues)
}

var rootCmd = &cobra.Command{
	Use:   "valetd",
	Short: "Valet command core daemon",
	Long: `valetd serves the valet assistant's command core over HTTP:
transcripts in, policy-gated actions out. Side effects are staged behind
one-time confirmation tokens and executed at most once.`,
	RunE: runServe,
}

func main() {
	cobra.OnInitialize(initConfig)
	addFlags()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("VALET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addFlags() {
	flags := rootCmd.Flags()
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("base-path", "/v1", "API base path")
	flags.String("config", "", "core config file (YAML)")
	flags.String("rules", "", "policy rules file (YAML); empty fails closed")
	flags.String("profiles", "", "profile catalog file (YAML); empty uses built-ins")
	flags.String("redis-addr", "", "Redis address; empty uses the in-memory store")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database number")
	flags.String("audit-dir", "", "SQLite audit directory; empty keeps the log in memory")
	flags.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces; empty disables tracing")
	flags.String("default-repo", "org/repo", "repository used for bare PR numbers")
	for _, name := range []string{
		"addr", "base-path", "config", "rules", "profiles",
		"redis-addr", "redis-password", "redis-db",
		"audit-dir", "otlp-endpoint", "default-repo",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := &stdLogger{}

	cfg, err := loadCoreConfig(viper.GetString("config"))
	if err != nil {
		return err
	}
	config.SetCoreConfig(cfg)
	logger.Info("valetd_starting", "addr", viper.GetString("addr"))

	// Keyed store: Redis when configured, in-memory otherwise.
	var kv store.KeyValue
	if redisAddr := viper.GetString("redis-addr"); redisAddr != "" {
		kv = store.NewRedis(redisAddr, viper.GetString("redis-password"), viper.GetInt("redis-db"), "valet")
		logger.Info("store_configured", "backend", "redis", "addr", redisAddr)
	} else {
		kv = store.NewMemory()
		logger.Info("store_configured", "backend", "memory")
	}

	// Audit sink: SQLite when a directory is given.
	var sink audit.Sink = audit.NewMemorySink()
	if dir := viper.GetString("audit-dir"); dir != "" {
		sqliteSink, err := audit.OpenSQLite(dir)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer sqliteSink.Close()
		sink = sqliteSink
		logger.Info("audit_configured", "backend", "sqlite", "dir", dir)
	}

	// Policy rules: absent file fails closed.
	rules := policy.FailClosed()
	if path := viper.GetString("rules"); path != "" {
		rules, err = policy.LoadRules(path)
		if err != nil {
			return err
		}
		logger.Info("policy_rules_loaded", "path", path, "rules", len(rules.Rules))
	} else {
		logger.Warn("no_policy_rules", "effect", "fail_closed")
	}

	profiles := profile.NewRegistry()
	if path := viper.GetString("profiles"); path != "" {
		profiles, err = profile.LoadCatalog(path)
		if err != nil {
			return err
		}
	}

	// Provider boundary: fixture-backed reads and executors.
	fixture := provider.NewFixture()
	registry := executor.NewRegistry()
	if err := provider.RegisterExecutors(registry, fixture); err != nil {
		return err
	}

	gate := policy.NewGate(rules, provider.NewFactsAdapter(fixture), sink, logger)

	pendings := pending.NewStore(kv, cfg.PendingActionTTL(), logger)
	stopSweep := pendings.StartSweep(pending.SweepConfig{Interval: cfg.SweepInterval()})
	defer stopSweep()

	bus := eventbus.NewInMemoryBus(30 * time.Second)
	bus.AddMiddleware(eventbus.NewLoggingMiddleware(cfg.LogLevel))
	bus.AddMiddleware(eventbus.NewCircuitBreakerMiddleware(5, 30*time.Second, []string{
		"CommandReceived", "CommandProcessed",
	}))
	if err := bus.RegisterHandler("GetPendingCount", func(ctx context.Context, _ eventbus.Message) (any, error) {
		return pendings.Count(ctx)
	}); err != nil {
		return err
	}

	if endpoint := viper.GetString("otlp-endpoint"); endpoint != "" {
		shutdown, err := observability.InitTracer("valetd", endpoint)
		if err != nil {
			return fmt.Errorf("failed to init tracer: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
		logger.Info("tracing_configured", "endpoint", endpoint)
	}

	rtr := router.New(router.Config{
		DefaultRepo:                        viper.GetString("default-repo"),
		IdempotencyTTL:                     cfg.IdempotencyTTL(),
		RequireConfirmationForIrreversible: cfg.RequireConfirmationForIrreversible,
	}, router.Deps{
		Profiles: profiles,
		Gate:     gate,
		Pendings: pendings,
		Sessions: session.NewStore(kv, cfg.SessionTTL()),
		Store:    kv,
		Invoker:  registry,
		Reader:   fixture,
		Sink:     sink,
		Bus:      bus,
		Limiter: ratelimit.NewLimiter(&ratelimit.Config{
			RequestsPerMinute: cfg.RequestsPerMinute,
			RequestsPerHour:   cfg.RequestsPerHour,
		}),
		Logger: logger,
	})

	apiHandler, err := httpapi.New(httpapi.Config{
		Router:   rtr,
		Pendings: pendings,
		BasePath: viper.GetString("base-path"),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", apiHandler)

	srv := &http.Server{Addr: viper.GetString("addr"), Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("valetd_ready", "addr", srv.Addr)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal_received", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("valetd_stopped")
	return nil
}

// loadCoreConfig merges an optional YAML file over the defaults.
func loadCoreConfig(path string) (*config.CoreConfig, error) {
	if path == "" {
		return config.DefaultCoreConfig(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read core config: %w", err)
	}
	return config.CoreConfigFromMap(v.AllSettings()), nil
}
