package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
	"github.com/custodia-labs/ingestor/internal/core/ports/driving"
	"github.com/custodia-labs/ingestor/internal/logger"
	"github.com/custodia-labs/ingestor/internal/schema"
)

// EngineFactory builds an ingestion service for one command invocation.
// sink may be nil.
type EngineFactory func(settings domain.IngestSettings, sink driven.RecordSink) (driving.IngestionService, error)

// Config holds the services the commands run against.
type Config struct {
	// Version is printed by the version command.
	Version string

	// Settings are the configured ingestion settings; flags override them.
	Settings domain.IngestSettings

	// NewEngine builds the ingestion engine.
	NewEngine EngineFactory

	// Signatures is the schema signature registry in use.
	Signatures *schema.Registry

	// OpenRunStore opens the persistent results store.
	OpenRunStore func() (driven.RunStore, error)

	// WatchInterval is the minimum spacing between watch-mode ingestions.
	WatchInterval time.Duration
}

var (
	version = "dev"
	verbose bool
	quiet   bool

	settings       = domain.DefaultIngestSettings()
	engineFactory  EngineFactory
	signatures     *schema.Registry
	runStoreOpener func() (driven.RunStore, error)
	watchInterval  = 2 * time.Second
)

var rootCmd = &cobra.Command{
	Use:   "ingestor",
	Short: "Ingest forensic extraction archives",
	Long: `Ingestor reads mobile forensic extraction archives, discovers the
databases and markup reports inside them, and converts chats, calls and
contacts into one canonical record set.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger.SetOutput(cmd.ErrOrStderr())
		logger.SetVerbose(verbose)
		logger.SetQuiet(quiet)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug and progress logs")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress warnings")
}

// Configure installs the services used by the commands.
// It must be called before Execute.
func Configure(cfg Config) {
	if cfg.Version != "" {
		version = cfg.Version
	}
	settings = cfg.Settings
	engineFactory = cfg.NewEngine
	signatures = cfg.Signatures
	runStoreOpener = cfg.OpenRunStore
	if cfg.WatchInterval > 0 {
		watchInterval = cfg.WatchInterval
	}
}

// Execute runs the root command until ctx is cancelled.
// Command output goes to stdout so reports can be piped.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}
