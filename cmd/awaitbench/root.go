package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awaitable "github.com/Swind/go-awaitable"
	"github.com/Swind/go-awaitable/core"
	"github.com/Swind/go-awaitable/internal/bench"
	"github.com/Swind/go-awaitable/internal/config"
	"github.com/Swind/go-awaitable/internal/logging"
	obs "github.com/Swind/go-awaitable/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "awaitbench",
		Short:         "Drive simulated load through an awaitable worker pool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	bindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Submit the configured calls and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, cfg)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	return rootCmd
}

// bindFlags declares one flag per config key. Defaults shown in help come
// from config.Default(); only flags set explicitly override the file.
func bindFlags(fs *flag.FlagSet) {
	d := config.Default()
	fs.String("pool.id", d.Pool.ID, "pool ID used in logs and metrics")
	fs.Int("pool.workers", d.Pool.Workers, "worker count (0 = min(32, NumCPU+4))")
	fs.String("pool.name_prefix", d.Pool.NamePrefix, "worker name prefix (default: pool ID)")
	fs.Bool("metrics.enabled", d.Metrics.Enabled, "serve Prometheus metrics")
	fs.String("metrics.namespace", d.Metrics.Namespace, "Prometheus namespace")
	fs.String("metrics.listen", d.Metrics.Listen, "metrics listen address")
	fs.Duration("metrics.poll_interval", d.Metrics.PollInterval, "pool snapshot interval")
	fs.String("log.level", d.Log.Level, "debug, info, warn or error")
	fs.String("log.format", d.Log.Format, "text or json")
	fs.String("log.file", d.Log.File, "log file, rotated by size (default: stderr)")
	fs.Int("bench.calls", d.Bench.Calls, "number of calls to submit")
	fs.Float64("bench.rate", d.Bench.Rate, "max submissions per second (0 = unlimited)")
	fs.Duration("bench.work", d.Bench.Work, "simulated work per call")
	fs.Int("bench.fail_every", d.Bench.FailEvery, "fail every n-th call (0 = never)")
	fs.Duration("bench.shutdown_timeout", d.Bench.ShutdownTimeout, "graceful shutdown timeout")
	fs.Duration("bench.linger", d.Bench.Linger, "keep the metrics endpoint up this long after the run")
}

func run(ctx context.Context, cmd *cobra.Command, cfg config.Config) (err error) {
	slogger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	logger := core.NewSlogLogger(slogger)

	poolCfg := cfg.PoolConfig()
	poolCfg.Logger = logger
	poolCfg.Scheduler = &core.TaskSchedulerConfig{
		PanicHandler:        &core.DefaultPanicHandler{Logger: logger},
		RejectedTaskHandler: &core.DefaultRejectedTaskHandler{Logger: logger},
	}

	var reg *prom.Registry
	if cfg.Metrics.Enabled {
		reg = prom.NewRegistry()
		exporter, err := obs.NewMetricsExporter(cfg.Metrics.Namespace, reg, obs.ExporterOptions{})
		if err != nil {
			return fmt.Errorf("create metrics exporter: %w", err)
		}
		poolCfg.Scheduler.Metrics = exporter
	}

	d, err := awaitable.New(awaitable.FromConfig(poolCfg))
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := d.Shutdown(cfg.Bench.ShutdownTimeout); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}()

	if reg != nil {
		stopMetrics, err := serveMetrics(ctx, cfg.Metrics, reg, d, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	res, err := bench.Run(ctx, d, cfg.Bench, logger)
	if printErr := res.Print(cmd.OutOrStdout()); printErr != nil {
		return printErr
	}
	if err != nil {
		return err
	}

	if reg != nil && cfg.Bench.Linger > 0 {
		logger.Info("lingering for metrics scrape", core.F("listen", cfg.Metrics.Listen), core.F("for", cfg.Bench.Linger))
		select {
		case <-time.After(cfg.Bench.Linger):
		case <-ctx.Done():
		}
	}
	return nil
}

func serveMetrics(ctx context.Context, cfg config.MetricsConfig, reg *prom.Registry, d *awaitable.Decorator, logger core.Logger) (func(), error) {
	poller, err := obs.NewSnapshotPoller(cfg.Namespace, reg, cfg.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("create snapshot poller: %w", err)
	}
	if provider, ok := d.Pool().(obs.PoolSnapshotProvider); ok {
		poller.AddPool(d.Pool().ID(), provider)
	}
	poller.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", core.F("listen", cfg.Listen), core.F("error", err))
		}
	}()
	logger.Info("serving metrics", core.F("listen", cfg.Listen))

	return func() {
		poller.CollectOnce()
		poller.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}
