// Package engine runs asset ID generation over a dataset.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"assetid-workers/internal/assetid/abbreviation"
	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/assetid/hierarchy"
	"assetid-workers/internal/assetid/mapping"
	"assetid-workers/internal/assetid/normalize"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
	"assetid-workers/internal/common/metrics"
	"assetid-workers/internal/models"
)

// Dependencies are the collaborators of an Engine. Only Logger is required.
type Dependencies struct {
	Logger      logger.Logger
	Abbreviator abbreviation.Abbreviator
	// Equipment and Locations override the built-in vocabularies when set.
	Equipment *abbreviation.Vocabulary
	Locations *abbreviation.Vocabulary
	Tracer    trace.Tracer
}

// Request is one generation run.
type Request struct {
	Dataset models.Dataset
	Mapping models.FieldMapping
	// Levels and Policy fall back to the engine configuration when empty.
	Levels []models.Level
	Policy models.Policy
	// Seed is read but never modified.
	Seed *codetable.CodeTable
}

// Summary counts row outcomes.
type Summary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Warnings  int           `json:"warnings"`
	AICalls   int           `json:"aiCalls"`
	Duration  time.Duration `json:"duration"`
}

// Result is the outcome of a run. Rows has one entry per input row, in input order.
type Result struct {
	RunID    string                 `json:"runId"`
	Levels   []models.Level         `json:"levels"`
	Policy   models.Policy          `json:"policy"`
	Mapping  models.ResolvedMapping `json:"mapping"`
	Warnings []models.Warning       `json:"warnings,omitempty"`
	Rows     []models.RowResult     `json:"rows"`
	Table    *codetable.CodeTable   `json:"-"`
	Summary  Summary                `json:"summary"`
}

type Engine struct {
	config    *Config
	logger    logger.Logger
	mapper    *mapping.Mapper
	resolver  *abbreviation.Resolver
	builder   *hierarchy.Builder
	equipment *abbreviation.Vocabulary
	tracer    trace.Tracer
}

func New(deps Dependencies, cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	normalizer, err := normalize.New(cfg.Rules)
	if err != nil {
		return nil, err
	}

	equipment := abbreviation.DefaultEquipment()
	if deps.Equipment != nil {
		equipment = equipment.Merge(deps.Equipment)
	}
	locations := abbreviation.DefaultLocations()
	if deps.Locations != nil {
		locations = locations.Merge(deps.Locations)
	}

	resolver, err := abbreviation.NewResolver(abbreviation.Options{
		Vocabulary:  equipment,
		Abbreviator: deps.Abbreviator,
		Normalizer:  normalizer,
		Timeout:     cfg.AbbreviationTimeout,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	builder, err := hierarchy.New(hierarchy.Options{
		Normalizer:  normalizer,
		Locations:   locations,
		MaxSuffix:   cfg.MaxSuffix,
		MaxSequence: cfg.MaxSequence,
		Separator:   cfg.Separator,
	})
	if err != nil {
		return nil, err
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("assetid-workers/engine")
	}

	return &Engine{
		config:    cfg,
		logger:    log,
		mapper:    mapping.New(mapping.Options{AllowColumnReuse: cfg.AllowColumnReuse}),
		resolver:  resolver,
		builder:   builder,
		equipment: equipment,
		tracer:    tracer,
	}, nil
}

// Equipment is the merged equipment vocabulary the engine resolves against.
func (e *Engine) Equipment() *abbreviation.Vocabulary { return e.equipment }

// Generate assigns IDs row by row.
//
// An invalid mapping fails before any row is read and returns a nil Result. Row-level problems
// are recorded on the row and never stop the run. When ctx is cancelled the rows not yet
// processed are marked cancelled and the partial Result is returned with a GENERATION_CANCELLED
// error wrapping ctx.Err().
func (e *Engine) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	levels, policy, err := e.runSettings(req)
	if err != nil {
		return nil, err
	}

	resolved, mapWarnings, err := e.mapper.Resolve(req.Dataset.Headers, req.Mapping)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "assetid.generate", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("rows", len(req.Dataset.Rows)),
		attribute.String("policy", string(policy)),
	))
	defer span.End()

	table := codetable.New()
	if req.Seed != nil {
		table = req.Seed.Clone()
	}

	records := make([]models.AssetRecord, len(req.Dataset.Rows))
	for i, cells := range req.Dataset.Rows {
		records[i] = resolved.Record(i, cells)
	}

	result := &Result{
		RunID:    runID,
		Levels:   levels,
		Policy:   policy,
		Mapping:  resolved,
		Warnings: mapWarnings,
		Rows:     make([]models.RowResult, len(records)),
		Table:    table,
	}

	e.logger.Info("Starting asset ID generation", map[string]interface{}{
		"runId":  runID,
		"rows":   len(records),
		"levels": levels,
		"policy": policy,
	})

	deepest := models.Deepest(levels)
	session := e.resolver.NewSession()
	if deepest == models.LevelEquipment && e.config.PrefetchConcurrency > 1 {
		items := make([]abbreviation.Description, len(records))
		for i, rec := range records {
			items[i] = abbreviation.Description{Name: rec.EquipmentName, System: rec.EquipmentSystem}
		}
		if err := session.Prefetch(ctx, table, items, e.config.PrefetchConcurrency); err != nil {
			e.logger.Debug("Abbreviation prefetch stopped", map[string]interface{}{"runId": runID, "error": err.Error()})
		}
	}

	var cancelErr error
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			e.markCancelled(result, records, i)
			break
		}

		tx := table.Begin()
		row := e.processRow(ctx, tx, session, rec, levels, deepest, policy)

		if err := ctx.Err(); err != nil {
			e.logger.Debug("Discarding in-flight row", map[string]interface{}{
				"runId":  runID,
				"row":    rec.SheetRow(),
				"staged": tx.Staged(),
			})
			tx.Discard()
			cancelErr = err
			e.markCancelled(result, records, i)
			break
		}

		if row.OK() {
			tx.Commit()
		} else {
			tx.Discard()
			e.logger.Warn("Row failed", map[string]interface{}{
				"runId":     runID,
				"row":       rec.SheetRow(),
				"errorCode": row.ErrorCode,
				"error":     row.Error,
			})
		}
		result.Rows[i] = row
		metrics.RowsProcessed.WithLabelValues(string(row.Status)).Inc()
	}

	result.Summary = summarize(result, session.Calls(), time.Since(start))
	metrics.GenerationDuration.Observe(result.Summary.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("rows.succeeded", result.Summary.Succeeded),
		attribute.Int("rows.failed", result.Summary.Failed),
		attribute.Int("ai.calls", result.Summary.AICalls),
	)

	if cancelErr != nil {
		span.SetStatus(codes.Error, "cancelled")
		e.logger.Warn("Asset ID generation cancelled", map[string]interface{}{
			"runId":     runID,
			"processed": result.Summary.Succeeded + result.Summary.Failed,
		})
		return result, errors.NewGenerationCancelledError(result.Summary.Succeeded+result.Summary.Failed, cancelErr)
	}

	e.logger.Info("Asset ID generation completed", map[string]interface{}{
		"runId":     runID,
		"succeeded": result.Summary.Succeeded,
		"failed":    result.Summary.Failed,
		"aiCalls":   result.Summary.AICalls,
		"duration":  result.Summary.Duration.String(),
	})
	return result, nil
}

func (e *Engine) runSettings(req Request) ([]models.Level, models.Policy, error) {
	levels := e.config.Levels
	if len(req.Levels) > 0 {
		names := make([]string, len(req.Levels))
		for i, l := range req.Levels {
			names[i] = string(l)
		}
		parsed, err := models.ParseLevels(names)
		if err != nil {
			return nil, "", errors.NewInputValidationError(err.Error())
		}
		levels = parsed
	}
	if len(levels) == 0 {
		return nil, "", errors.NewInputValidationError("no level enabled")
	}

	policy := e.config.Policy
	if req.Policy != "" {
		policy = req.Policy
	}
	if !policy.Valid() {
		return nil, "", errors.NewInputValidationError(fmt.Sprintf("unknown policy %q", policy))
	}
	return levels, policy, nil
}

// processRow resolves every level down to deepest, staging table changes in tx.
func (e *Engine) processRow(ctx context.Context, tx *codetable.Txn, session *abbreviation.Session, rec models.AssetRecord, levels []models.Level, deepest models.Level, policy models.Policy) models.RowResult {
	row := models.RowResult{
		Index:  rec.Row,
		Record: rec,
		IDs:    make(map[models.Level]string, len(levels)),
	}
	enabled := make(map[models.Level]bool, len(levels))
	for _, l := range levels {
		enabled[l] = true
	}

	fail := func(err error) models.RowResult {
		row.Status = models.RowFailed
		row.IDs = nil
		row.ID = models.HierarchicalID{}
		if stdErr, ok := errors.AsStandard(err); ok {
			row.ErrorCode = string(stdErr.Code)
			row.Error = stdErr.Message
			if stdErr.Details != "" {
				row.Error += ": " + stdErr.Details
			}
		} else {
			row.ErrorCode = string(errors.ErrCodeInternal)
			row.Error = err.Error()
		}
		return row
	}

	id := e.builder.Root()
	for _, level := range models.Levels {
		if level.Depth() > deepest.Depth() {
			break
		}

		if level == models.LevelEquipment {
			if policy == models.PolicyStrict && normalize.Canonical(rec.EquipmentName) == "" && normalize.Canonical(rec.EquipmentSystem) == "" {
				return fail(errors.NewAttributeMissingError(string(models.FieldEquipmentName), string(level)))
			}
			res := session.Resolve(ctx, tx, rec.EquipmentName, rec.EquipmentSystem)
			metrics.AbbreviationLookups.WithLabelValues(string(res.Source)).Inc()
			row.Warnings = append(row.Warnings, withRow(res.Warnings, rec.Row)...)

			next, err := e.builder.BuildEquipment(tx, id, res)
			if err != nil {
				return fail(err)
			}
			id = next
		} else {
			field := models.LevelField(level)
			raw := rec.Attribute(field)
			if policy == models.PolicyStrict && normalize.Canonical(raw) == "" {
				return fail(errors.NewAttributeMissingError(string(field), string(level)))
			}
			code, warnings, err := e.builder.BuildLevel(tx, id, raw, level)
			row.Warnings = append(row.Warnings, withRow(warnings, rec.Row)...)
			if err != nil {
				return fail(err)
			}
			for _, w := range warnings {
				if w.Code == hierarchy.WarnCollision {
					metrics.CodeCollisions.WithLabelValues(string(level)).Inc()
				}
			}
			id = id.Extend(code)
		}

		if enabled[level] {
			row.IDs[level] = id.String()
		}
	}

	row.Status = models.RowOK
	row.ID = id
	return row
}

func (e *Engine) markCancelled(result *Result, records []models.AssetRecord, from int) {
	for i := from; i < len(records); i++ {
		result.Rows[i] = models.RowResult{
			Index:     i,
			Record:    records[i],
			Status:    models.RowCancelled,
			ErrorCode: string(errors.ErrCodeGenerationCancelled),
			Error:     "run cancelled before this row was committed",
		}
	}
	metrics.RowsProcessed.WithLabelValues(string(models.RowCancelled)).Add(float64(len(records) - from))
}

func withRow(ws []models.Warning, row int) []models.Warning {
	for i := range ws {
		ws[i].Row = row
	}
	return ws
}

func summarize(r *Result, aiCalls int, d time.Duration) Summary {
	s := Summary{Total: len(r.Rows), AICalls: aiCalls, Duration: d, Warnings: len(r.Warnings)}
	for _, row := range r.Rows {
		switch row.Status {
		case models.RowOK:
			s.Succeeded++
		case models.RowFailed:
			s.Failed++
		case models.RowCancelled:
			s.Cancelled++
		}
		s.Warnings += len(row.Warnings)
	}
	return s
}
