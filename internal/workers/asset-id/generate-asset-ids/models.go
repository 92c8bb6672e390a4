package generateassetids

import (
	"context"

	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/assetid/engine"
	"assetid-workers/internal/common/aws"
	"assetid-workers/internal/common/database"
	"assetid-workers/internal/common/logger"
	"assetid-workers/internal/common/observability"
)

type Input struct {
	Project string            `json:"project"`
	Headers []string          `json:"headers"`
	Rows    [][]string        `json:"rows"`
	Mapping map[string]string `json:"mapping"`
	Levels  []string          `json:"levels,omitempty"`
	Policy  string            `json:"policy,omitempty"`
	Persist bool              `json:"persist,omitempty"`
	Index   bool              `json:"index,omitempty"`
}

// Output carries only the added columns; Rows[i] lines up with input row i.
type Output struct {
	RunID   string         `json:"runId"`
	Columns []string       `json:"columns"`
	Rows    [][]string     `json:"rows"`
	Report  []string       `json:"report"`
	Summary engine.Summary `json:"summary"`
	Indexed int            `json:"indexed,omitempty"`
}

// CodeTableRepository loads and saves the per-project code table.
type CodeTableRepository interface {
	Load(ctx context.Context, project string) (*codetable.CodeTable, bool, error)
	Save(ctx context.Context, project, runID string, table *codetable.CodeTable) error
}

// AssetIndex receives generated IDs for search.
type AssetIndex interface {
	IndexDocuments(ctx context.Context, docs []database.AssetDocument) (database.IndexStats, error)
}

// Notifier delivers run summaries.
type Notifier interface {
	Notify(ctx context.Context, summary aws.RunSummary) error
}

type ServiceDependencies struct {
	Logger   logger.Logger
	Engine   *engine.Engine
	Store    CodeTableRepository
	Indexer  AssetIndex
	Notifier Notifier
	// Observability is optional; a nil value records nothing.
	Observability *observability.Observability
}
