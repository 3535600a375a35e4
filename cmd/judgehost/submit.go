package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/judgehost/pkg/events"
	"github.com/cuemby/judgehost/pkg/fetcher"
	"github.com/cuemby/judgehost/pkg/imagecache"
	"github.com/cuemby/judgehost/pkg/orchestrator"
	"github.com/cuemby/judgehost/pkg/registry"
	"github.com/cuemby/judgehost/pkg/reporter"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/storage"
	"github.com/cuemby/judgehost/pkg/types"
)

var submitCmd = &cobra.Command{
	Use:   "submit PROBLEM_ID SUBMISSION_ARCHIVE",
	Short: "Run one submission through the Evaluation Orchestrator and print the result",
	Long: `submit drives a single submission through the full evaluation
pipeline (§4.4) synchronously against this problem registry's data
directory, without going through the Job Queue or a running "serve"
process, and prints the resulting Evaluation as JSON.

This is the judgehost equivalent of a one-off local run: useful for
testing a problem package or debugging a submission outside of a queue.
A running "serve" process drains the queue continuously instead.`,
	Args: cobra.ExactArgs(2),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().String("data-dir", envOr("JUDGEHOST_DATA_DIR", "./judgehost-data"), "Data directory for the problem registry")
	submitCmd.Flags().String("containerd-socket", envOr("JUDGEHOST_CONTAINERD_SOCKET", runtime.DefaultSocketPath), "containerd socket path")
	submitCmd.Flags().String("submission-id", "", "Submission ID (defaults to a generated value)")
	submitCmd.Flags().String("team-id", "", "Team ID")
	submitCmd.Flags().String("user-id", "", "User ID")
	submitCmd.Flags().String("submissions-dir", envOr("JUDGEHOST_SUBMISSIONS_DIR", "submissions"), "Submission workspace directory")
	submitCmd.Flags().String("results-dir", envOr("JUDGEHOST_RESULTS_DIR", "results"), "Evaluation results directory")
	submitCmd.Flags().Int("default-timeout-seconds", envIntOr("JUDGEHOST_DEFAULT_TIMEOUT_SECONDS", 0), "Evaluation timeout in seconds (0 keeps the default)")
	submitCmd.Flags().Int("container-max-memory-mb", envIntOr("JUDGEHOST_CONTAINER_MAX_MEMORY_MB", 0), "Hard cap on a container's memory limit, in MB (0 disables)")
	submitCmd.Flags().Float64("container-max-cpu-cores", envFloatOr("JUDGEHOST_CONTAINER_MAX_CPU_CORES", 0), "Hard cap on a container's CPU limit, in cores (0 disables)")
	submitCmd.Flags().String("domserver-url", envOr("DOMSERVER_URL", ""), "Result Reporter base URL (empty disables reporting)")
	submitCmd.Flags().String("domserver-host", envOr("DOMSERVER_JUDGEHOST_ID", hostnameOr("judgehost-1")), "This judgehost's identifier, used in the report POST path")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	problemID := args[0]
	archivePath := args[1]

	dataDir, _ := cmd.Flags().GetString("data-dir")
	socketPath, _ := cmd.Flags().GetString("containerd-socket")
	submissionID, _ := cmd.Flags().GetString("submission-id")
	teamID, _ := cmd.Flags().GetString("team-id")
	userID, _ := cmd.Flags().GetString("user-id")
	submissionsDir, _ := cmd.Flags().GetString("submissions-dir")
	resultsDir, _ := cmd.Flags().GetString("results-dir")
	defaultTimeoutSeconds, _ := cmd.Flags().GetInt("default-timeout-seconds")
	maxMemoryMB, _ := cmd.Flags().GetInt("container-max-memory-mb")
	maxCPUCores, _ := cmd.Flags().GetFloat64("container-max-cpu-cores")
	domserverURL, _ := cmd.Flags().GetString("domserver-url")
	domserverHost, _ := cmd.Flags().GetString("domserver-host")

	if submissionID == "" {
		submissionID = fmt.Sprintf("submit-%s-%d", problemID, os.Getpid())
	}

	archiveData, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("read submission archive: %w", err)
	}

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

	f := fetcher.New(fetchTimeout())
	reg := registry.New(store, f, imagecache.New(), rt, dataDir)
	ctx := context.Background()
	if err := reg.Load(ctx); err != nil {
		return fmt.Errorf("load problem registry: %w", err)
	}
	if _, err := reg.Get(problemID); err != nil {
		return fmt.Errorf("problem %q is not registered: %w (run \"judgehost ingest\" first)", problemID, err)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	var rep orchestrator.Reporter
	if domserverURL != "" {
		repCfg := reporter.DefaultConfig()
		repCfg.BaseURL = domserverURL
		repCfg.Host = domserverHost
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

	job := &types.Job{
		JobID:        submissionID,
		SubmissionID: submissionID,
		ProblemID:    problemID,
		TeamID:       teamID,
		State:        types.JobRunning,
		EnqueuedAt:   time.Now(),
		Submission: &types.SubmissionRequest{
			SubmissionID: submissionID,
			ProblemID:    problemID,
			TeamID:       teamID,
			UserID:       userID,
			Source:       types.SourceData,
			ArchiveData:  archiveData,
		},
	}

	fmt.Fprintf(os.Stderr, "Evaluating submission %q against problem %q...\n", submissionID, problemID)

	eval, err := o.Run(ctx, job)
	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluation failed: %v\n", err)
		if eval == nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(eval)
}
