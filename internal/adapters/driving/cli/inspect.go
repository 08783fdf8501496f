package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driving"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [archive]",
	Short: "Classify entries and show detected schemas",
	Long: `Classifies every entry of an archive and runs schema detection on the
databases it finds, without extracting any records. Useful for checking
which tables a new app version maps to before a full ingestion.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(inspectCmd)
}

// inspectionView is the JSON shape of one inspected entry.
type inspectionView struct {
	Path     string                 `json:"path"`
	Size     int64                  `json:"size"`
	Kind     domain.ContentKind     `json:"kind"`
	Tables   []string               `json:"tables,omitempty"`
	Profiles []domain.SchemaProfile `json:"profiles,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	if engineFactory == nil {
		return errors.New("ingestion service not configured")
	}

	svc, err := engineFactory(settings, nil)
	if err != nil {
		return err
	}

	inspections, err := svc.Inspect(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("inspection failed: %w", err)
	}

	views := make([]inspectionView, 0, len(inspections))
	for _, in := range inspections {
		views = append(views, newInspectionView(in))
	}

	if inspectJSON {
		return writeJSON(cmd.OutOrStdout(), views)
	}
	return outputInspectTable(cmd, views)
}

func newInspectionView(in driving.EntryInspection) inspectionView {
	v := inspectionView{
		Path:     in.Entry.Path,
		Size:     in.Entry.Size,
		Kind:     in.Entry.Kind,
		Profiles: in.Profiles,
	}
	for _, t := range in.Tables {
		v.Tables = append(v.Tables, t.Name)
	}
	if in.Err != nil {
		v.Error = in.Err.Error()
	}
	return v
}

func outputInspectTable(cmd *cobra.Command, views []inspectionView) error {
	if len(views) == 0 {
		cmd.Println("Archive has no entries.")
		return nil
	}

	st := newStyles()
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		detail := v.Error
		if detail == "" {
			detail = profileSummary(v.Profiles)
		}
		if detail == "" && len(v.Tables) > 0 {
			detail = st.Muted.Render(fmt.Sprintf("%d tables, none matched", len(v.Tables)))
		}
		rows = append(rows, []string{v.Path, v.Kind.String(), strconv.FormatInt(v.Size, 10), detail})
	}

	cmd.Println(renderTable(st, []string{"ENTRY", "KIND", "SIZE", "PROFILES"}, rows))
	return nil
}

// profileSummary formats profiles as family=table(score).
func profileSummary(profiles []domain.SchemaProfile) string {
	parts := make([]string, 0, len(profiles))
	for _, p := range profiles {
		parts = append(parts, fmt.Sprintf("%s=%s(%.2f)", p.Family, p.TableName, p.ConfidenceScore))
	}
	return strings.Join(parts, " ")
}
