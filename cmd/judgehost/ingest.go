package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuemby/judgehost/pkg/fetcher"
	"github.com/cuemby/judgehost/pkg/imagecache"
	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/registry"
	"github.com/cuemby/judgehost/pkg/retry"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/storage"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest PROBLEM_ID",
	Short: "Register or update a problem package in the registry",
	Long: `ingest fetches a problem package (from a URL or a local archive),
validates its config.json, builds its container images, and records it in
the problem registry (§4.1).

Retries on a transient fetch failure per PACKAGE_FETCH_RETRIES /
PACKAGE_FETCH_RETRY_DELAY_MS.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("data-dir", envOr("JUDGEHOST_DATA_DIR", "./judgehost-data"), "Data directory for the problem registry")
	ingestCmd.Flags().String("containerd-socket", envOr("JUDGEHOST_CONTAINERD_SOCKET", runtime.DefaultSocketPath), "containerd socket path")
	ingestCmd.Flags().String("archive-url", "", "URL (or local path) of the problem package archive")
	ingestCmd.Flags().String("archive-file", "", "Local archive file to ingest (alternative to --archive-url)")
	ingestCmd.Flags().String("checksum", "", "Expected SHA-256 of the archive (hex)")
	ingestCmd.Flags().Bool("force-rebuild", false, "Rebuild images even if the archive checksum is unchanged")
}

func runIngest(cmd *cobra.Command, args []string) error {
	problemID := args[0]
	dataDir, _ := cmd.Flags().GetString("data-dir")
	socketPath, _ := cmd.Flags().GetString("containerd-socket")
	archiveURL, _ := cmd.Flags().GetString("archive-url")
	archiveFile, _ := cmd.Flags().GetString("archive-file")
	checksum, _ := cmd.Flags().GetString("checksum")
	forceRebuild, _ := cmd.Flags().GetBool("force-rebuild")

	if archiveURL == "" && archiveFile == "" {
		return fmt.Errorf("one of --archive-url or --archive-file is required")
	}

	var archiveData []byte
	if archiveFile != "" {
		data, err := os.ReadFile(archiveFile)
		if err != nil {
			return fmt.Errorf("read archive file: %w", err)
		}
		archiveData = data
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
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

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = envIntOr("PACKAGE_FETCH_RETRIES", retryCfg.MaxAttempts)
	retryCfg.InitialDelay = envDurationMillisOr("PACKAGE_FETCH_RETRY_DELAY_MS", retryCfg.InitialDelay)
	retryCfg.Retryable = isArchiveFetchRetryable

	fmt.Printf("Ingesting problem %q...\n", problemID)

	ctx := context.Background()
	req := registry.IngestRequest{
		ProblemID:    problemID,
		ArchiveURL:   archiveURL,
		ArchiveData:  archiveData,
		Checksum:     checksum,
		ForceRebuild: forceRebuild,
	}

	var result = struct{ ImageTags map[string]string }{}
	err = retry.Do(ctx, retryCfg, func() error {
		rec, ingestErr := reg.Ingest(ctx, req)
		if ingestErr != nil {
			return ingestErr
		}
		result.ImageTags = rec.ImageTags
		return nil
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("✓ Problem registered: %s\n", problemID)
	for key, tag := range result.ImageTags {
		fmt.Printf("  image %-20s %s\n", key, tag)
	}
	return nil
}

// isArchiveFetchRetryable matches §4.1's retry scope: only genuinely
// transient failures reaching the archive, never a validation error in
// the package itself.
func isArchiveFetchRetryable(err error) bool {
	if err == nil {
		return false
	}
	if je, ok := jherrors.As(err); ok {
		return je.Code.Retryable()
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection") ||
		strings.Contains(msg, "temporarily") ||
		strings.Contains(msg, "eof")
}
