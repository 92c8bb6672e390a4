package searchassetids

import (
	"context"

	"assetid-workers/internal/common/database"
	"assetid-workers/internal/common/logger"
)

type Input struct {
	Project    string     `json:"project"`
	Text       string     `json:"text,omitempty"`
	Building   string     `json:"building,omitempty"`
	Floor      string     `json:"floor,omitempty"`
	Prefix     string     `json:"assetIdPrefix,omitempty"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	From int `json:"from"`
	Size int `json:"size"`
}

type Output struct {
	Assets    []database.AssetDocument `json:"assets"`
	TotalHits int64                    `json:"totalHits"`
	Took      int64                    `json:"took"` // milliseconds
}

// AssetSearcher queries the asset ID index.
type AssetSearcher interface {
	Search(ctx context.Context, q database.AssetQuery) (*database.AssetSearchResult, error)
}

type ServiceDependencies struct {
	Logger   logger.Logger
	Searcher AssetSearcher
}
