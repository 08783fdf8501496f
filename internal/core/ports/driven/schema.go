package driven

import (
	"context"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// SchemaDetector locates chat, call and contact tables in a database.
type SchemaDetector interface {
	// Detect returns at most one profile per record family. A family whose
	// best table scores below threshold is simply absent.
	Detect(ctx context.Context, db Database) ([]domain.SchemaProfile, error)

	// DetectTables scores an already-read catalog.
	DetectTables(tables []domain.TableInfo) []domain.SchemaProfile
}
