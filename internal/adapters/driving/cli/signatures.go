package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/schema"
)

var (
	signaturesFamily string
	signaturesJSON   bool
)

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "List schema signatures",
	Long: `Lists the table signatures the schema detector matches against,
in priority order. Built-in signatures can be extended or replaced by
signatures.toml in the config directory or by detector.signature_files.`,
	RunE: runSignatures,
}

var signaturesCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a signature file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignaturesCheck,
}

func init() {
	signaturesCmd.Flags().StringVarP(&signaturesFamily, "family", "f", "", "only list one family (chat, call, contact)")
	signaturesCmd.Flags().BoolVar(&signaturesJSON, "json", false, "output signatures as JSON")
	signaturesCmd.AddCommand(signaturesCheckCmd)
	rootCmd.AddCommand(signaturesCmd)
}

func runSignatures(cmd *cobra.Command, _ []string) error {
	if signatures == nil {
		return errors.New("signature registry not configured")
	}

	sigs := signatures.Signatures()
	if signaturesFamily != "" {
		family := domain.RecordFamily(strings.ToLower(signaturesFamily))
		if !family.IsValid() {
			return fmt.Errorf("%w: unknown family %q", domain.ErrInvalidInput, signaturesFamily)
		}
		sigs = signatures.ForFamily(family)
	}

	if signaturesJSON {
		return writeJSON(cmd.OutOrStdout(), sigs)
	}

	if len(sigs) == 0 {
		cmd.Println("No signatures found.")
		return nil
	}

	st := newStyles()
	rows := make([][]string, 0, len(sigs))
	for i := range sigs {
		rows = append(rows, []string{
			sigs[i].Name,
			sigs[i].Family.String(),
			strconv.Itoa(sigs[i].Priority),
			tablesLabel(sigs[i].TablePatterns),
			fieldsLabel(sigs[i].Fields),
		})
	}
	cmd.Println(renderTable(st, []string{"NAME", "FAMILY", "PRIORITY", "TABLES", "FIELDS"}, rows))
	return nil
}

func runSignaturesCheck(cmd *cobra.Command, args []string) error {
	sigs, err := schema.LoadSignatures(args[0])
	if err != nil {
		return err
	}

	cmd.Printf("%s: %d signatures OK\n", args[0], len(sigs))
	for i := range sigs {
		cmd.Printf("  %s (%s, priority %d)\n", sigs[i].Name, sigs[i].Family, sigs[i].Priority)
	}
	return nil
}

func tablesLabel(patterns []string) string {
	if len(patterns) == 0 {
		return "*"
	}
	return strings.Join(patterns, ",")
}

// fieldsLabel lists canonical fields, marking required ones with '!'.
func fieldsLabel(fields []schema.FieldSpec) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		name := f.Canonical
		if f.Required {
			name += "!"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
}
