// Malsmug Sandbox — consumer очереди файлов на динамический анализ.
//
// Consumer:
//   - Получает файлы из RabbitMQ (MessagePack)
//   - Записывает по копии сэмпла на каждый bait website
//   - Запускает sandbox engine для каждой копии и не ждёт его
//
// Использование:
//
//	malsmug-sandbox [--samples-dir DIR] [--sandbox-runtime BIN] [--sandbox-lib FILE]
//	                [--config-dir DIR] [--http-addr ADDR] [--db-url DSN]
//	malsmug-sandbox dispatches ANALYSIS_ID [--json] [--db-url DSN]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/Malsmug/internal/cli"
	"github.com/shaiso/Malsmug/internal/config"
	"github.com/shaiso/Malsmug/internal/mq"
	"github.com/shaiso/Malsmug/internal/repo"
	"github.com/shaiso/Malsmug/internal/samples"
	"github.com/shaiso/Malsmug/internal/telemetry"
	"github.com/shaiso/Malsmug/internal/worker"
)

// version задаётся через ldflags при сборке.
var version = "dev"

type options struct {
	samplesDir     string
	sandboxRuntime string
	sandboxLib     string
	configDir      string
	httpAddr       string
	dbURL          string
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:           "malsmug-sandbox",
		Short:         "Malsmug sandbox consumer: fans out files from RabbitMQ to the sandbox engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.samplesDir, "samples-dir", "./samples", "Directory for sample replicas")
	flags.StringVar(&opts.sandboxRuntime, "sandbox-runtime", "node", "Executable that runs the sandbox engine")
	flags.StringVar(&opts.sandboxLib, "sandbox-lib", "/sandbox/lib/app.js", "Sandbox engine script passed to the runtime (empty to run the runtime directly)")
	flags.StringVar(&opts.configDir, "config-dir", "./config", "Directory with rabbitmq.yaml, also passed to the sandbox engine")
	flags.StringVar(&opts.httpAddr, "http-addr", envOr("SANDBOX_HTTP_ADDR", ":8083"), "Address for /healthz and /metrics")
	rootCmd.PersistentFlags().StringVar(&opts.dbURL, "db-url", os.Getenv("DB_URL"), "Postgres DSN for the dispatch journal (optional)")

	rootCmd.AddCommand(cli.NewDispatchesCmd(
		func(ctx context.Context) (cli.DispatchLister, func(), error) {
			return openJournal(ctx, opts.dbURL)
		},
		cli.NewOutput,
	))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting malsmug-sandbox",
		"version", version,
		"samples_dir", opts.samplesDir,
		"sandbox_runtime", opts.sandboxRuntime,
		"sandbox_lib", opts.sandboxLib,
		"config_dir", opts.configDir,
	)

	// Конфигурация брокера — без неё работать нельзя
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	if err := samples.EnsureDir(opts.samplesDir); err != nil {
		logger.Error("failed to prepare samples dir", "error", err)
		return err
	}

	// Журнал запусков (опционально)
	var journal worker.Journal
	if opts.dbURL != "" {
		pool, err := repo.NewPool(ctx, opts.dbURL)
		if err != nil {
			logger.Warn("database not available, running without dispatch journal", "error", err)
		} else {
			defer pool.Close()
			dispatchRepo := repo.NewDispatchRepo(pool)
			if err := dispatchRepo.EnsureSchema(ctx); err != nil {
				logger.Warn("failed to create journal schema, running without dispatch journal", "error", err)
			} else {
				journal = dispatchRepo
				logger.Info("dispatch journal enabled")
			}
		}
	}

	w := worker.New(worker.Config{
		Namer:  samples.NewNamer(opts.samplesDir),
		Writer: samples.NewWriter(),
		Executor: worker.NewProcessExecutor(worker.ExecutorConfig{
			Runtime:   opts.sandboxRuntime,
			Lib:       opts.sandboxLib,
			ConfigDir: opts.configDir,
		}),
		Journal: journal,
		Logger:  logger,
	})

	queue := cfg.Queues.CoreFilesQueue
	manager := mq.NewManager(mq.ManagerConfig{
		Dialer: mq.AMQPDialer{
			URL:   cfg.URL(),
			Vhost: cfg.Connection.Vhost,
			Name:  "malsmug-sandbox",
		},
		Topology: mq.Topology{
			Exchange: cfg.Exchanges.MainExchange.Name,
			Queue:    queue.Name,
		},
		Handler: w.Handler(),
		Logger:  logger,
	})

	server := startHTTP(opts.httpAddr, logger)

	logger.Info("start consuming from RabbitMQ", "addr", cfg.Addr(), "queue", queue.Name)
	runErr := manager.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	switch {
	case errors.Is(runErr, mq.ErrChannelClosed):
		logger.Info("channel closed, bye")
		return nil
	case errors.Is(runErr, context.Canceled):
		logger.Info("malsmug-sandbox stopped")
		return nil
	default:
		logger.Error("consumer stopped", "error", runErr)
		return runErr
	}
}

// startHTTP поднимает /healthz и /metrics.
func startHTTP(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	return server
}

// openJournal подключается к журналу запусков для служебных команд.
func openJournal(ctx context.Context, dsn string) (*repo.DispatchRepo, func(), error) {
	if dsn == "" {
		return nil, nil, errors.New("dispatch journal is not configured: set --db-url or DB_URL")
	}
	pool, err := repo.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return repo.NewDispatchRepo(pool), pool.Close, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
