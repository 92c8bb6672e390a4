package managecodetable

import (
	"context"
	"fmt"

	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
	"assetid-workers/internal/models"
)

type actionFunc func(s *Service, ctx context.Context, input *Input) (*Output, error)

var actions = map[Action]actionFunc{
	ActionGet:   (*Service).get,
	ActionReset: (*Service).reset,
}

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
	if s.deps.Store == nil {
		return nil, errors.NewDatabaseConnectionFailedError(fmt.Errorf("code table store is not configured"))
	}
	fn, ok := actions[input.Action]
	if !ok {
		return nil, errors.NewInputValidationError(fmt.Sprintf("unknown action %q", input.Action))
	}

	output, err := fn(s, ctx, input)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return nil, errors.NewTimeoutError("postgres", err)
	}
	return output, err
}

func (s *Service) get(ctx context.Context, input *Input) (*Output, error) {
	table, found, err := s.deps.Store.Load(ctx, input.Project)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Output{}, nil
	}

	output := &Output{Found: true, Entries: table.Len()}
	if input.Level != "" {
		output.Codes = table.Entries(models.Level(input.Level))
	} else {
		output.Codes = table.Snapshot().Entries
	}
	return output, nil
}

func (s *Service) reset(ctx context.Context, input *Input) (*Output, error) {
	table, found, err := s.deps.Store.Load(ctx, input.Project)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Output{}, nil
	}
	if err := s.deps.Store.Delete(ctx, input.Project); err != nil {
		return nil, err
	}

	s.logger.Warn("Code table reset", map[string]interface{}{
		"project": input.Project,
		"entries": table.Len(),
	})
	return &Output{Found: true, Entries: table.Len(), Deleted: true}, nil
}
