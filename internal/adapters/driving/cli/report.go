package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// renderTable draws a bordered table with a bold header row.
func renderTable(st *styles, headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.Header
			}
			return st.Cell
		}).
		String()
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeResultText prints the run summary followed by one row per entry.
func writeResultText(w io.Writer, result *domain.IngestionResult) {
	st := newStyles()
	counts := result.CountByStatus()

	fmt.Fprintln(w, st.Title.Render("Ingestion "+result.RunID))
	fmt.Fprintln(w, st.field("Archive", result.ArchivePath))
	fmt.Fprintln(w, st.field("Duration", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond).String()))
	fmt.Fprintln(w, st.field("Entries", fmt.Sprintf("%d (%d processed, %d skipped, %d failed)",
		len(result.Reports),
		counts[domain.StatusProcessed],
		counts[domain.StatusSkippedUnrecognized],
		counts[domain.StatusFailedCorrupt])))
	fmt.Fprintln(w, st.field("Records", fmt.Sprintf("%d chats, %d calls, %d contacts",
		len(result.ByFamily(domain.FamilyChat)),
		len(result.ByFamily(domain.FamilyCall)),
		len(result.ByFamily(domain.FamilyContact)))))
	fmt.Fprintln(w, st.field("Duplicates", strconv.Itoa(result.DuplicatesRemoved)))

	if len(result.Reports) == 0 {
		return
	}

	rows := make([][]string, 0, len(result.Reports))
	for _, rep := range result.Reports {
		rows = append(rows, []string{
			rep.EntryPath,
			rep.Kind.String(),
			st.Status(rep.Status),
			strconv.Itoa(rep.RecordCount),
			reportDetail(rep),
		})
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, renderTable(st, []string{"ENTRY", "KIND", "STATUS", "RECORDS", "DETAIL"}, rows))
}

// reportDetail summarises the error or the detected tables of an entry.
func reportDetail(rep domain.IngestionReport) string {
	if rep.ErrorDetail != "" {
		return rep.ErrorDetail
	}
	parts := make([]string, 0, len(rep.Profiles)+1)
	for _, p := range rep.Profiles {
		parts = append(parts, fmt.Sprintf("%s=%s", p.Family, p.TableName))
	}
	if rep.SkippedRows > 0 {
		parts = append(parts, fmt.Sprintf("%d rows skipped", rep.SkippedRows))
	}
	return strings.Join(parts, " ")
}
