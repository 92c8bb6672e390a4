package searchassetids

import (
	"context"
	"fmt"

	"assetid-workers/internal/common/database"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
)

type Service struct {
	deps   ServiceDependencies
	config *Config
	logger logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{deps: deps, config: config, logger: log}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if s.deps.Searcher == nil {
		return nil, errors.NewExternalServiceError("elasticsearch", fmt.Errorf("asset index is not configured"))
	}

	result, err := s.deps.Searcher.Search(ctx, database.AssetQuery{
		Project:  input.Project,
		Text:     input.Text,
		Building: input.Building,
		Floor:    input.Floor,
		Prefix:   input.Prefix,
		From:     input.Pagination.From,
		Size:     input.Pagination.Size,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewTimeoutError("elasticsearch", err)
		}
		return nil, err
	}

	s.logger.Debug("Asset search completed", map[string]interface{}{
		"project":   input.Project,
		"totalHits": result.TotalHits,
		"took":      result.Took,
	})

	return &Output{Assets: result.Assets, TotalHits: result.TotalHits, Took: result.Took}, nil
}
