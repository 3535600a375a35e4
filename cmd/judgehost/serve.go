package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/judgehost/pkg/events"
	"github.com/cuemby/judgehost/pkg/fetcher"
	"github.com/cuemby/judgehost/pkg/host"
	"github.com/cuemby/judgehost/pkg/imagecache"
	"github.com/cuemby/judgehost/pkg/metrics"
	"github.com/cuemby/judgehost/pkg/orchestrator"
	"github.com/cuemby/judgehost/pkg/queue"
	"github.com/cuemby/judgehost/pkg/registry"
	"github.com/cuemby/judgehost/pkg/reporter"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the judge host: accept queued jobs and evaluate them",
	Long: `serve starts the Job Queue, Evaluation Orchestrator, and Result
Reporter, loads the Problem Registry from its data directory, and begins
draining the queue as jobs are enqueued.

Jobs are admitted with "judgehost submit"; this process has no REST
surface of its own (out of scope — see the Non-goals in the spec this
was built from).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("data-dir", envOr("JUDGEHOST_DATA_DIR", "./judgehost-data"), "Data directory for the problem registry store (and, by default, extracted problem packages)")
	serveCmd.Flags().String("containerd-socket", envOr("JUDGEHOST_CONTAINERD_SOCKET", runtime.DefaultSocketPath), "containerd socket path")
	serveCmd.Flags().String("metrics-addr", envOr("JUDGEHOST_METRICS_ADDR", "127.0.0.1:9090"), "Address for the Prometheus metrics / health endpoints")

	serveCmd.Flags().Int("max-workers", envIntOr("JUDGEHOST_MAX_WORKERS", 4), "Maximum concurrent evaluations")
	serveCmd.Flags().Int("max-queue-size", envIntOr("JUDGEHOST_MAX_QUEUE_SIZE", 1000), "Maximum queued+running jobs")
	serveCmd.Flags().Bool("rate-limit-enabled", envBoolOr("JUDGEHOST_RATE_LIMIT_ENABLED", true), "Enable per-team submission rate limiting")
	serveCmd.Flags().Int("rate-limit-per-team", envIntOr("JUDGEHOST_RATE_LIMIT_PER_TEAM", 10), "Max submissions per team per sliding 60s window")

	serveCmd.Flags().Int("container-max-memory-mb", envIntOr("JUDGEHOST_CONTAINER_MAX_MEMORY_MB", 0), "Hard cap on a container's memory limit, in MB (0 disables)")
	serveCmd.Flags().Float64("container-max-cpu-cores", envFloatOr("JUDGEHOST_CONTAINER_MAX_CPU_CORES", 0), "Hard cap on a container's CPU limit, in cores (0 disables)")
	serveCmd.Flags().Int("default-timeout-seconds", envIntOr("JUDGEHOST_DEFAULT_TIMEOUT_SECONDS", 0), "Default evaluation timeout in seconds (0 keeps the §4.4/§5 default)")

	serveCmd.Flags().String("problems-dir", envOr("JUDGEHOST_PROBLEMS_DIR", ""), "Directory under which extracted problem packages are kept, at <dir>/problems/<problem_id> (defaults to --data-dir)")
	serveCmd.Flags().String("submissions-dir", envOr("JUDGEHOST_SUBMISSIONS_DIR", "submissions"), "Submission workspace directory")
	serveCmd.Flags().String("results-dir", envOr("JUDGEHOST_RESULTS_DIR", "results"), "Evaluation results directory")

	serveCmd.Flags().String("domserver-url", envOr("DOMSERVER_URL", ""), "Result Reporter base URL (empty disables reporting)")
	serveCmd.Flags().String("domserver-host", envOr("DOMSERVER_JUDGEHOST_ID", hostnameOr("judgehost-1")), "This judgehost's identifier, used in the report POST path")
	serveCmd.Flags().Bool("domserver-retry-enabled", envBoolOr("DOMSERVER_RETRY_ENABLED", false), "Retry result POSTs on transient failures")
}

func hostnameOr(fallback string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fallback
	}
	return h
}

func runServe(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	socketPath, _ := cmd.Flags().GetString("containerd-socket")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	maxWorkers, _ := cmd.Flags().GetInt("max-workers")
	maxQueueSize, _ := cmd.Flags().GetInt("max-queue-size")
	rateLimitEnabled, _ := cmd.Flags().GetBool("rate-limit-enabled")
	rateLimitPerTeam, _ := cmd.Flags().GetInt("rate-limit-per-team")

	defaultTimeoutSeconds, _ := cmd.Flags().GetInt("default-timeout-seconds")
	problemsDir, _ := cmd.Flags().GetString("problems-dir")
	submissionsDir, _ := cmd.Flags().GetString("submissions-dir")
	resultsDir, _ := cmd.Flags().GetString("results-dir")
	maxMemoryMB, _ := cmd.Flags().GetInt("container-max-memory-mb")
	maxCPUCores, _ := cmd.Flags().GetFloat64("container-max-cpu-cores")

	domserverURL, _ := cmd.Flags().GetString("domserver-url")
	domserverHost, _ := cmd.Flags().GetString("domserver-host")
	domserverRetry, _ := cmd.Flags().GetBool("domserver-retry-enabled")

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	fmt.Println("Starting judgehost...")
	fmt.Printf("  Data Directory: %s\n", dataDir)
	fmt.Printf("  Containerd Socket: %s\n", socketPath)
	fmt.Printf("  Max Workers: %d\n", maxWorkers)

	rt, err := runtime.NewContainerdRuntime(socketPath)
	if err != nil {
		return fmt.Errorf("connect to containerd: %w", err)
	}
	defer rt.Close()

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	if problemsDir == "" {
		problemsDir = dataDir
	}
	f := fetcher.New(fetchTimeout())
	reg := registry.New(store, f, imagecache.New(), rt, problemsDir)
	if err := reg.Load(cmd.Context()); err != nil {
		return fmt.Errorf("load problem registry: %w", err)
	}
	fmt.Printf("✓ Problem registry loaded: %d problem(s)\n", len(reg.List()))

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	q := queue.New(queue.Config{
		MaxSize:          maxQueueSize,
		MaxWorkers:       maxWorkers,
		RateLimitEnabled: rateLimitEnabled,
		RateLimitPerTeam: rateLimitPerTeam,
		AutoProcess:      true,
	}, broker)

	var rep orchestrator.Reporter
	if domserverURL != "" {
		repCfg := reporter.DefaultConfig()
		repCfg.BaseURL = domserverURL
		repCfg.Host = domserverHost
		repCfg.RetryEnabled = domserverRetry
		rep = reporter.New(repCfg)
	}

	oCfg := orchestrator.DefaultConfig()
	oCfg.SubmissionsDir = submissionsDir
	oCfg.ResultsDir = resultsDir
	if defaultTimeoutSeconds > 0 {
		oCfg.DefaultTimeout = time.Duration(defaultTimeoutSeconds) * time.Second
	}
	oCfg.MaxMemoryMB = maxMemoryMB
	oCfg.MaxCPUCores = maxCPUCores
	o := orchestrator.New(oCfg, reg, rt, f, broker, rep)

	h := host.New(q, o, broker)
	h.Start()
	defer h.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("runtime", true, "connected")
	metrics.RegisterComponent("storage", true, "ready")
	metrics.RegisterComponent("queue", true, "ready")

	collector := metrics.NewCollector(q)
	collector.Start()
	defer collector.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
	fmt.Printf("✓ Health endpoints: http://%s/{health,ready,live}\n", metricsAddr)
	fmt.Println()
	fmt.Println("judgehost is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	fmt.Println("✓ Shutdown complete")
	return nil
}

func fetchTimeout() time.Duration {
	return envDurationSecondsOr("JUDGEHOST_FETCH_TIMEOUT_SECONDS", 30*time.Second)
}
