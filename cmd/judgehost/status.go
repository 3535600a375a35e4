package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cuemby/judgehost/pkg/fetcher"
	"github.com/cuemby/judgehost/pkg/imagecache"
	"github.com/cuemby/judgehost/pkg/registry"
	"github.com/cuemby/judgehost/pkg/runtime"
	"github.com/cuemby/judgehost/pkg/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status [PROBLEM_ID]",
	Short: "Show the problems registered in the Problem Registry",
	Long: `status loads the Problem Registry from its data directory and lists
every registered problem, or, given a PROBLEM_ID, prints that problem's
record in detail (container specs, built image tags).

There is no running-queue status to show here: judgehost keeps no queue
state on disk (§4.3 is in-memory only), so this only reflects what
"judgehost ingest" has persisted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("data-dir", envOr("JUDGEHOST_DATA_DIR", "./judgehost-data"), "Data directory for the problem registry")
	statusCmd.Flags().String("containerd-socket", envOr("JUDGEHOST_CONTAINERD_SOCKET", runtime.DefaultSocketPath), "containerd socket path")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	socketPath, _ := cmd.Flags().GetString("containerd-socket")

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
	if err := reg.Load(context.Background()); err != nil {
		return fmt.Errorf("load problem registry: %w", err)
	}

	if len(args) == 1 {
		return printProblemDetail(reg, args[0])
	}
	return printProblemList(reg)
}

func printProblemList(reg *registry.Registry) error {
	records := reg.List()
	if len(records) == 0 {
		fmt.Println("No problems registered.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "PROBLEM ID\tCONTAINERS\tIMAGES\tREGISTERED")
	for _, record := range records {
		containers := 0
		if record.Config != nil {
			containers = len(record.Config.Containers)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n",
			record.ProblemID, containers, len(record.ImageTags), record.RegisteredAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func printProblemDetail(reg *registry.Registry, problemID string) error {
	record, err := reg.Get(problemID)
	if err != nil {
		return err
	}

	fmt.Printf("Problem: %s\n", record.ProblemID)
	fmt.Printf("Registered: %s\n", record.RegisteredAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Package directory: %s\n", record.PackageDir)

	if record.Config != nil {
		fmt.Printf("Containers (%d):\n", len(record.Config.Containers))
		for _, cs := range record.Config.Containers {
			fmt.Printf("  - %s (accepts_submission=%t, depends_on=%d)\n",
				cs.ContainerID, cs.AcceptsSubmission, len(cs.DependsOn))
		}
	}

	fmt.Printf("Images (%d):\n", len(record.ImageTags))
	for key, tag := range record.ImageTags {
		fmt.Printf("  %-24s %s\n", key, tag)
	}
	return nil
}
