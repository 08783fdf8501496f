// Command ingestor converts forensic extraction archives into canonical
// chat, call and contact records.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/custodia-labs/ingestor/internal/adapters/driven/config/file"
	dbsqlite "github.com/custodia-labs/ingestor/internal/adapters/driven/database/sqlite"
	storesqlite "github.com/custodia-labs/ingestor/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ingestor/internal/adapters/driving/cli"
	"github.com/custodia-labs/ingestor/internal/archive"
	"github.com/custodia-labs/ingestor/internal/classifier"
	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
	"github.com/custodia-labs/ingestor/internal/core/ports/driving"
	"github.com/custodia-labs/ingestor/internal/core/services"
	"github.com/custodia-labs/ingestor/internal/extractors"
	"github.com/custodia-labs/ingestor/internal/markup"
	"github.com/custodia-labs/ingestor/internal/schema"
)

// version is set at build time
var version = "dev"

// defaultWatchInterval spaces watch-mode ingestions when not configured.
const defaultWatchInterval = 2 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// 1. Configuration: config.toml, .env and INGESTOR_* overrides
	store, err := file.NewConfigStore(os.Getenv("INGESTOR_HOME"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading configuration: %v\n", err)
		return err
	}

	settings, err := file.LoadSettings(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	interval, err := file.WatchInterval(store, defaultWatchInterval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	// 2. Schema signatures: built-ins plus configured files
	registry, err := schema.LoadRegistry(file.SignatureFiles(store)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading signatures: %v\n", err)
		return err
	}

	// 3. Commands
	dataDir := filepath.Join(store.Dir(), "data")
	cli.Configure(cli.Config{
		Version:    version,
		Settings:   settings,
		Signatures: registry,
		NewEngine: func(s domain.IngestSettings, sink driven.RecordSink) (driving.IngestionService, error) {
			engine, err := newEngine(s, registry, sink)
			if err != nil {
				return nil, err
			}
			return engine, nil
		},
		OpenRunStore: func() (driven.RunStore, error) {
			rs, err := storesqlite.NewStore(dataDir)
			if err != nil {
				return nil, err
			}
			return rs, nil
		},
		WatchInterval: interval,
	})

	return cli.Execute(ctx)
}

// newEngine wires the ingestion pipeline for one set of settings.
func newEngine(
	s domain.IngestSettings,
	registry *schema.Registry,
	sink driven.RecordSink,
) (*services.IngestionEngine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	cls, err := classifier.New(
		classifier.WithHeaderSize(s.HeaderBytes),
		classifier.WithDatabasePatterns(s.DatabasePatterns...),
		classifier.WithMarkupPatterns(s.MarkupPatterns...),
	)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	archives := archive.NewOpener(
		archive.WithMaxOpenStreams(s.MaxOpenStreams),
		archive.WithMaxSpoolBytes(s.MaxSpoolBytes),
		archive.WithTempDir(s.TempDir),
	)

	detector := schema.NewDetector(
		schema.WithRegistry(registry),
		schema.WithThreshold(s.DetectionThreshold),
		schema.WithTieBreak(s.TieBreak),
		schema.WithRowCountLimit(s.RowCountLimit),
	)

	decoder := extractors.NewDecoder()

	opts := []services.EngineOption{services.WithSettings(s)}
	if sink != nil {
		opts = append(opts, services.WithSink(sink))
	}

	return services.NewIngestionEngine(
		archives,
		cls,
		dbsqlite.NewOpener(),
		detector,
		extractors.NewDefaultRegistry(decoder),
		markup.New(markup.WithDecoder(decoder), markup.WithDetector(detector)),
		services.NewMerger(s.MergeTolerance),
		opts...,
	), nil
}
