package validateequipmentdata

import (
	"context"
	"strings"

	"assetid-workers/internal/assetid/abbreviation"
	"assetid-workers/internal/assetid/mapping"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
	"assetid-workers/internal/models"
)

type Service struct {
	config     *Config
	logger     logger.Logger
	vocabulary *abbreviation.Vocabulary
	mapper     *mapping.Mapper
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	vocab := deps.Vocabulary
	if vocab == nil {
		vocab = abbreviation.DefaultEquipment()
	}
	return &Service{
		config:     config,
		logger:     log,
		vocabulary: vocab,
		mapper:     mapping.New(mapping.Options{}),
	}
}

// Execute checks equipment names and systems against the vocabulary.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	resolved, _, err := s.mapper.Resolve(input.Headers, mapping.FromStrings(input.Mapping))
	if err != nil {
		return nil, err
	}
	if !resolved.IsMapped(models.FieldEquipmentName) && !resolved.IsMapped(models.FieldEquipmentSystem) {
		return nil, errors.NewMappingInvalidError("neither equipment_name nor equipment_system is mapped")
	}

	records := make([]models.AssetRecord, len(input.Rows))
	for i, cells := range input.Rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.NewGenerationCancelledError(i, err)
			}
		}
		records[i] = resolved.Record(i, cells)
	}

	report := abbreviation.Validate(s.vocabulary, records)
	output := &Output{
		Valid:              report.Valid(),
		Findings:           report.Findings,
		NonStandardTypes:   report.NonStandardTypes,
		NonStandardSystems: report.NonStandardSystem,
		Report:             report.Lines(),
	}

	s.logger.Info("Equipment data validated", map[string]interface{}{
		"rows":     len(records),
		"findings": len(report.Findings),
	})

	if !output.Valid && s.config.FailOnNonStandard {
		return output, errors.NewBusinessRuleError("Non-standard equipment data", joinLimited(output.Report, 20))
	}
	return output, nil
}

func joinLimited(lines []string, n int) string {
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "; ")
}
