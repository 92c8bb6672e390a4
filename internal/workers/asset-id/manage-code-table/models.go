package managecodetable

import (
	"context"

	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/common/logger"
)

type Action string

const (
	ActionGet   Action = "get"
	ActionReset Action = "reset"
)

type Input struct {
	Project string `json:"project"`
	Action  Action `json:"action"`
	// Level limits the returned entries to one level; empty returns all.
	Level string `json:"level,omitempty"`
}

type Output struct {
	Found   bool              `json:"found"`
	Entries int               `json:"entries"`
	Codes   []codetable.Entry `json:"codes,omitempty"`
	Deleted bool              `json:"deleted,omitempty"`
}

// CodeTableStore is the slice of the Postgres store this worker needs.
type CodeTableStore interface {
	Load(ctx context.Context, project string) (*codetable.CodeTable, bool, error)
	Delete(ctx context.Context, project string) error
}

type ServiceDependencies struct {
	Logger logger.Logger
	Store  CodeTableStore
}
