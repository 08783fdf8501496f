package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

var runsJSON bool

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored ingestion runs",
	Long: `Lists the ingestion runs kept in the results store, newest first.
Runs are stored when ingest is called with --store or by watch mode.`,
	RunE: runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete [run-id]",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	runsCmd.PersistentFlags().BoolVar(&runsJSON, "json", false, "output as JSON")
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

func openRunStore() (driven.RunStore, error) {
	if runStoreOpener == nil {
		return nil, errors.New("results store not configured")
	}
	store, err := runStoreOpener()
	if err != nil {
		return nil, fmt.Errorf("failed to open results store: %w", err)
	}
	return store, nil
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if runsJSON {
		return writeJSON(cmd.OutOrStdout(), runs)
	}

	if len(runs) == 0 {
		cmd.Println("No runs stored.")
		return nil
	}

	st := newStyles()
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.ArchivePath,
			strconv.Itoa(r.RecordCount),
			strconv.Itoa(r.DuplicatesRemoved),
		})
	}
	cmd.Println(renderTable(st, []string{"RUN", "STARTED", "ARCHIVE", "RECORDS", "DUPLICATES"}, rows))
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.GetRun(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	if runsJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	writeResultText(cmd.OutOrStdout(), result)
	return nil
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	store, err := openRunStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	cmd.Printf("Run %s deleted.\n", args[0])
	return nil
}
