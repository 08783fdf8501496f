package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ingestor/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ingestor/internal/adapters/driving/watch"
	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

var (
	watchStore    bool
	watchExisting bool
	watchSettle   time.Duration
	watchPatterns []string
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Ingest archives dropped into a directory",
	Long: `Watches a drop directory and ingests every archive written to it once
the file has stopped changing. Ingestions run one at a time and are spaced
by watch.min_interval. Stop with Ctrl+C to print the session totals.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchStore, "store", false, "persist every run in the results store")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also ingest archives already in the directory")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "time an archive must stay unchanged")
	watchCmd.Flags().StringSliceVar(&watchPatterns, "pattern", []string{watch.DefaultPattern}, "archive file name patterns")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if engineFactory == nil {
		return errors.New("ingestion service not configured")
	}

	var sink driven.RecordSink
	if watchStore {
		store, err := openRunStore()
		if err != nil {
			return err
		}
		defer store.Close()
		sink = store
	}

	svc, err := engineFactory(settings, sink)
	if err != nil {
		return err
	}

	session := memory.NewResultStore()
	defer session.Close()

	ctx := cmd.Context()
	w, err := watch.New(args[0], svc,
		watch.WithSettle(watchSettle),
		watch.WithMinInterval(watchInterval),
		watch.WithPatterns(watchPatterns...),
		watch.WithExisting(watchExisting),
		watch.WithResultFunc(func(path string, result *domain.IngestionResult, err error) {
			if result == nil {
				cmd.PrintErrf("%s: %v\n", filepath.Base(path), err)
				return
			}
			if err != nil {
				cmd.PrintErrf("%s: %v\n", filepath.Base(path), err)
			}
			if werr := session.Write(ctx, result); werr != nil {
				cmd.PrintErrf("%s: %v\n", filepath.Base(path), werr)
			}
			cmd.Printf("%s: %d records, %d failed entries (run %s)\n",
				filepath.Base(path), len(result.Records), len(result.Failed()), result.RunID)
		}),
	)
	if err != nil {
		return err
	}

	cmd.Printf("Watching %s for archives...\n", args[0])
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	records, failed := session.Totals()
	cmd.Printf("Session: %d archives, %d records, %d failed entries\n", len(session.List()), records, failed)
	return nil
}
