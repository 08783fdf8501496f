package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
	"github.com/custodia-labs/ingestor/internal/core/ports/driving"
	"github.com/custodia-labs/ingestor/internal/logger"
)

var (
	ingestJSON    bool
	ingestOut     string
	ingestWorkers int
	ingestTimeout time.Duration
	ingestStore   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [archive]",
	Short: "Extract canonical records from an archive",
	Long: `Extracts chats, calls and contacts from a forensic extraction archive.
Every entry is classified and processed independently; unreadable entries
are reported without stopping the run. Use "-" to read the archive from
standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	ingestCmd.Flags().StringVarP(&ingestOut, "out", "o", "", "write the JSON result to a file")
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 0, "concurrent entry workers (default from config)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 0, "per-entry extraction timeout (default from config)")
	ingestCmd.Flags().BoolVar(&ingestStore, "store", false, "persist the run in the results store")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if engineFactory == nil {
		return errors.New("ingestion service not configured")
	}

	s := settings
	if ingestWorkers > 0 {
		s.Workers = ingestWorkers
	}
	if ingestTimeout > 0 {
		s.EntryTimeout = ingestTimeout
	}

	var sink driven.RecordSink
	if ingestStore {
		if runStoreOpener == nil {
			return errors.New("results store not configured")
		}
		store, err := runStoreOpener()
		if err != nil {
			return fmt.Errorf("failed to open results store: %w", err)
		}
		defer store.Close()
		sink = store
	}

	svc, err := engineFactory(s, sink)
	if err != nil {
		return err
	}

	result, err := ingestWithProgress(cmd.Context(), cmd, svc, args[0])
	if result == nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	// The records are intact when only the sink failed; print them anyway.
	if err != nil {
		logger.Warn("%v", err)
	}

	if ingestOut != "" {
		f, ferr := os.Create(ingestOut)
		if ferr != nil {
			return fmt.Errorf("failed to create output file: %w", ferr)
		}
		werr := writeJSON(f, result)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return werr
		}
		cmd.Printf("Result written to %s\n", ingestOut)
	}

	if ingestJSON {
		if jerr := writeJSON(cmd.OutOrStdout(), result); jerr != nil {
			return jerr
		}
	} else if ingestOut == "" {
		writeResultText(cmd.OutOrStdout(), result)
	}

	return err
}

// ingestWithProgress runs the ingestion while displaying progress updates.
func ingestWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	svc driving.IngestionService,
	path string,
) (*domain.IngestionResult, error) {
	type outcome struct {
		result *domain.IngestionResult
		err    error
	}

	// Start ingestion in goroutine
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		if path == "-" {
			o.result, o.err = svc.IngestStream(ctx, "stdin", cmd.InOrStdin())
		} else {
			o.result, o.err = svc.Ingest(ctx, path)
		}
		done <- o
	}()

	showProgress := !quiet && !ingestJSON
	out := cmd.ErrOrStderr()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastDone := 0
	for {
		select {
		case o := <-done:
			if showProgress && lastDone > 0 {
				fmt.Fprintln(out)
			}
			return o.result, o.err
		case <-ticker.C:
			status := svc.Status()
			if showProgress && status.Running && status.EntriesDone > lastDone {
				fmt.Fprintf(out, "\rProcessing... %d/%d entries", status.EntriesDone, status.EntriesTotal)
				lastDone = status.EntriesDone
			}
		}
	}
}
