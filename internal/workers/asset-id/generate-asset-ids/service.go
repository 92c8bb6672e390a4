package generateassetids

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/assetid/engine"
	"assetid-workers/internal/assetid/mapping"
	"assetid-workers/internal/common/aws"
	"assetid-workers/internal/common/database"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
	"assetid-workers/internal/models"
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
	start := time.Now()
	ctx, span := s.deps.Observability.StartSpan(ctx, "job.generate-asset-ids", attribute.String("project", input.Project))
	defer span.End()

	output, err := s.execute(ctx, input)
	status := "completed"
	if err != nil {
		status = "failed"
		span.RecordError(err)
	}
	s.deps.Observability.RecordJobProcessed(ctx, status)
	s.deps.Observability.RecordJobDuration(ctx, time.Since(start), status)
	return output, err
}

func (s *Service) execute(ctx context.Context, input *Input) (*Output, error) {
	if s.deps.Engine == nil {
		return nil, errors.NewInputValidationError("asset ID engine is not configured")
	}
	if len(input.Rows) > s.config.MaxRows {
		return nil, errors.NewInputValidationError(fmt.Sprintf("%d rows exceed the limit of %d", len(input.Rows), s.config.MaxRows))
	}

	levels, err := parseLevels(input.Levels)
	if err != nil {
		return nil, err
	}

	persist := input.Persist && s.deps.Store != nil
	var seed *codetable.CodeTable
	if persist {
		table, found, err := s.deps.Store.Load(ctx, input.Project)
		if err != nil {
			return nil, err
		}
		fields := map[string]interface{}{"project": input.Project, "found": found}
		if found {
			seed = table
			fields["entries"] = seed.Len()
		}
		s.logger.Info("Loaded code table", fields)
	}

	result, err := s.deps.Engine.Generate(ctx, engine.Request{
		Dataset: models.Dataset{Headers: input.Headers, Rows: input.Rows},
		Mapping: mapping.FromStrings(input.Mapping),
		Levels:  levels,
		Policy:  models.Policy(input.Policy),
		Seed:    seed,
	})
	if err != nil {
		// A cancelled run is not saved; the next attempt starts again from the stored table.
		return nil, err
	}

	s.deps.Observability.RecordRows(ctx, "succeeded", result.Summary.Succeeded)
	s.deps.Observability.RecordRows(ctx, "failed", result.Summary.Failed)

	if persist {
		if err := s.deps.Store.Save(ctx, input.Project, result.RunID, result.Table); err != nil {
			return nil, err
		}
	}

	output := buildOutput(result)

	if input.Index && s.deps.Indexer != nil {
		stats, err := s.deps.Indexer.IndexDocuments(ctx, Documents(input.Project, result))
		if err != nil {
			return nil, err
		}
		output.Indexed = stats.Indexed
	}

	if s.deps.Notifier != nil {
		summary := aws.RunSummary{
			Project:   input.Project,
			RunID:     result.RunID,
			Total:     result.Summary.Total,
			Succeeded: result.Summary.Succeeded,
			Failed:    result.Summary.Failed,
			Cancelled: result.Summary.Cancelled,
			Warnings:  result.Summary.Warnings,
			AICalls:   result.Summary.AICalls,
			Duration:  result.Summary.Duration,
			Report:    output.Report,
		}
		if err := s.deps.Notifier.Notify(ctx, summary); err != nil {
			s.logger.Warn("Run summary notification failed", map[string]interface{}{
				"runId": result.RunID,
				"error": err.Error(),
			})
		}
	}

	return output, nil
}

func parseLevels(names []string) ([]models.Level, error) {
	if len(names) == 0 {
		return nil, nil
	}
	levels, err := models.ParseLevels(names)
	if err != nil {
		return nil, errors.NewInputValidationError(err.Error())
	}
	return levels, nil
}

func buildOutput(result *engine.Result) *Output {
	rows := make([][]string, len(result.Rows))
	for i, rr := range result.Rows {
		cells := make([]string, 0, len(result.Levels)+1)
		for _, l := range result.Levels {
			cells = append(cells, rr.IDs[l])
		}
		rows[i] = append(cells, engine.StatusCell(rr))
	}
	return &Output{
		RunID:   result.RunID,
		Columns: result.Columns(),
		Rows:    rows,
		Report:  engine.Report(result),
		Summary: result.Summary,
	}
}

// Documents converts successful rows into search documents keyed by their deepest ID.
func Documents(project string, result *engine.Result) []database.AssetDocument {
	now := time.Now().UTC()
	var docs []database.AssetDocument
	for _, rr := range result.Rows {
		if !rr.OK() || rr.ID.IsZero() {
			continue
		}
		ids := make(map[string]string, len(rr.IDs))
		for l, id := range rr.IDs {
			ids[string(l)] = id
		}
		docs = append(docs, database.AssetDocument{
			Project:     project,
			RunID:       result.RunID,
			Row:         rr.Record.SheetRow(),
			AssetID:     rr.ID.String(),
			IDs:         ids,
			Building:    rr.Record.Building,
			Floor:       rr.Record.Floor,
			Sublocation: rr.Record.Sublocation,
			Room:        rr.Record.Room,
			Equipment:   rr.Record.EquipmentName,
			System:      rr.Record.EquipmentSystem,
			IndexedAt:   now,
		})
	}
	return docs
}
