package generateassetids

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/assetid/engine"
	"assetid-workers/internal/common/aws"
	"assetid-workers/internal/common/config"
	"assetid-workers/internal/common/database"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
)

// ==========================
// Mock Dependencies
// ==========================

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context, project string) (*codetable.CodeTable, bool, error) {
	args := m.Called(ctx, project)
	table, _ := args.Get(0).(*codetable.CodeTable)
	return table, args.Bool(1), args.Error(2)
}

func (m *MockStore) Save(ctx context.Context, project, runID string, table *codetable.CodeTable) error {
	args := m.Called(ctx, project, runID, table)
	return args.Error(0)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexDocuments(ctx context.Context, docs []database.AssetDocument) (database.IndexStats, error) {
	args := m.Called(ctx, docs)
	return args.Get(0).(database.IndexStats), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, summary aws.RunSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "asset-onboarding",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_GenerateAssetIds",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

// ==========================
// Test Helpers
// ==========================

func createValidInput() *Input {
	return &Input{
		Project: "tower-a",
		Headers: []string{"Building", "Floor", "Sublocation", "Room", "Asset / Equipment", "Asset System"},
		Rows: [][]string{
			{"Compound Management Office", "Ground Floor", "Food Court", "Room 101", "Exhaust Fan", "HVAC"},
			{"Compound Management Office", "Ground Floor", "Food Court", "Room 101", "Exhaust Fan", "HVAC"},
			{"", "Ground Floor", "North", "Room 101", "Water Pump", "Plumbing"},
		},
		Mapping: map[string]string{
			"building":         "Building",
			"floor":            "Floor",
			"sublocation":      "Sublocation",
			"room":             "Room",
			"equipment_name":   "Asset / Equipment",
			"equipment_system": "Asset System",
		},
		Policy: "strict",
	}
}

func createValidConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 2,
		Timeout:       30 * time.Second,
		MaxRows:       100,
	}
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Dependencies{Logger: logger.NewTestLogger(t)}, nil)
	require.NoError(t, err)
	return e
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid configuration",
			opts:    HandlerOptions{CustomConfig: createValidConfig(), Logger: logger.NewTestLogger(t)},
			wantErr: false,
		},
		{
			name:    "invalid timeout",
			opts:    HandlerOptions{CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: -time.Second, MaxRows: 1}},
			wantErr: true,
			errMsg:  "timeout must be positive",
		},
		{
			name:    "invalid max rows",
			opts:    HandlerOptions{CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Second}},
			wantErr: true,
			errMsg:  "max_rows must be positive",
		},
		{
			name:    "default logger created when not provided",
			opts:    HandlerOptions{CustomConfig: createValidConfig()},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewHandler(tt.opts)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, handler)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, handler.service)
				assert.Equal(t, TaskType, handler.GetTaskType())
				assert.True(t, handler.IsEnabled())
			}
		})
	}
}

func TestHandler_ConfigFromAppConfig(t *testing.T) {
	appConfig := &config.Config{Workers: map[string]config.WorkerConfig{
		"generate-asset-ids": {Enabled: false, MaxJobsActive: 7, Timeout: 120000},
	}}

	cfg := createConfigFromAppConfig(appConfig, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 7, cfg.MaxJobsActive)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, DefaultConfig().MaxRows, cfg.MaxRows)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	handler, err := NewHandler(HandlerOptions{CustomConfig: createValidConfig(), Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	valid := func() map[string]interface{} {
		return map[string]interface{}{
			"project": "tower-a",
			"headers": []interface{}{"Building", "Floor"},
			"rows":    []interface{}{[]interface{}{"CMO", "GF"}},
			"mapping": map[string]interface{}{"building": "Building", "floor": "Floor"},
		}
	}

	tests := []struct {
		name     string
		mutate   func(map[string]interface{})
		wantErr  bool
		validate func(*testing.T, *Input)
	}{
		{
			name: "minimal input",
			validate: func(t *testing.T, input *Input) {
				assert.Equal(t, "tower-a", input.Project)
				assert.Equal(t, [][]string{{"CMO", "GF"}}, input.Rows)
				assert.Equal(t, "Building", input.Mapping["building"])
				assert.False(t, input.Persist)
			},
		},
		{
			name: "options and unrelated process variables",
			mutate: func(v map[string]interface{}) {
				v["levels"] = []interface{}{"location", "space"}
				v["policy"] = "lenient"
				v["persist"] = true
				v["index"] = true
				v["customerId"] = 42
			},
			validate: func(t *testing.T, input *Input) {
				assert.Equal(t, []string{"location", "space"}, input.Levels)
				assert.Equal(t, "lenient", input.Policy)
				assert.True(t, input.Persist)
				assert.True(t, input.Index)
			},
		},
		{name: "missing project", mutate: func(v map[string]interface{}) { delete(v, "project") }, wantErr: true},
		{name: "missing mapping", mutate: func(v map[string]interface{}) { delete(v, "mapping") }, wantErr: true},
		{name: "empty headers", mutate: func(v map[string]interface{}) { v["headers"] = []interface{}{} }, wantErr: true},
		{name: "unknown policy", mutate: func(v map[string]interface{}) { v["policy"] = "loose" }, wantErr: true},
		{name: "unknown level", mutate: func(v map[string]interface{}) { v["levels"] = []interface{}{"wing"} }, wantErr: true},
		{name: "numeric cell", mutate: func(v map[string]interface{}) { v["rows"] = []interface{}{[]interface{}{"CMO", 1}} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := valid()
			if tt.mutate != nil {
				tt.mutate(vars)
			}
			input, err := handler.parseInput(createMockJob(12345, vars))

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInputValidationFailed))
				return
			}
			require.NoError(t, err)
			tt.validate(t, input)
		})
	}
}

// ==========================
// Service Tests
// ==========================

func TestService_Execute(t *testing.T) {
	svc := NewService(ServiceDependencies{Engine: newTestEngine(t)}, createValidConfig())

	output, err := svc.Execute(context.Background(), createValidInput())
	require.NoError(t, err)

	assert.NotEmpty(t, output.RunID)
	assert.Equal(t, []string{"location_id", "space_id", "subspace_id", "equipment_id", "asset_id_status"}, output.Columns)
	require.Len(t, output.Rows, 3)
	assert.Equal(t, []string{"CMO-GF", "CMO-GF-FC", "CMO-GF-FC-R101", "CMO-GF-FC-R101-EXF-1", "ok"}, output.Rows[0])
	assert.Equal(t, "CMO-GF-FC-R101-EXF-2", output.Rows[1][3])
	assert.Equal(t, []string{"", "", "", "", "failed: ATTRIBUTE_MISSING"}, output.Rows[2])
	assert.Equal(t, 2, output.Summary.Succeeded)
	assert.Equal(t, 1, output.Summary.Failed)
	assert.NotEmpty(t, output.Report)
}

func TestService_Execute_PersistsIndexesAndNotifies(t *testing.T) {
	store := new(MockStore)
	indexer := new(MockIndexer)
	notifier := new(MockNotifier)

	store.On("Load", mock.Anything, "tower-a").Return(nil, false, nil)
	store.On("Save", mock.Anything, "tower-a", mock.AnythingOfType("string"), mock.AnythingOfType("*codetable.CodeTable")).Return(nil)
	indexer.On("IndexDocuments", mock.Anything, mock.MatchedBy(func(docs []database.AssetDocument) bool {
		return len(docs) == 2 && docs[0].AssetID == "CMO-GF-FC-R101-EXF-1" && docs[0].Row == 2
	})).Return(database.IndexStats{Indexed: 2}, nil)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(s aws.RunSummary) bool {
		return s.Project == "tower-a" && s.Succeeded == 2 && s.Failed == 1
	})).Return(fmt.Errorf("sns throttled"))

	svc := NewService(ServiceDependencies{
		Logger:   logger.NewTestLogger(t),
		Engine:   newTestEngine(t),
		Store:    store,
		Indexer:  indexer,
		Notifier: notifier,
	}, createValidConfig())

	input := createValidInput()
	input.Persist = true
	input.Index = true

	output, err := svc.Execute(context.Background(), input)
	require.NoError(t, err, "notification failures must not fail the job")
	assert.Equal(t, 2, output.Indexed)

	store.AssertExpectations(t)
	indexer.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestService_Execute_ReusesStoredTable(t *testing.T) {
	e := newTestEngine(t)
	row := func(sub string) []string { return []string{"CMO", "GF", sub, "R1", "Pump", "Plumbing"} }

	var saved *codetable.CodeTable
	firstStore := new(MockStore)
	firstStore.On("Load", mock.Anything, "tower-a").Return(nil, false, nil)
	firstStore.On("Save", mock.Anything, "tower-a", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(3).(*codetable.CodeTable) }).
		Return(nil)

	input := createValidInput()
	input.Persist = true
	input.Rows = [][]string{row("North")}
	first, err := NewService(ServiceDependencies{Engine: e, Store: firstStore}, createValidConfig()).Execute(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "CMO-GF-NORT", first.Rows[0][1])

	secondStore := new(MockStore)
	secondStore.On("Load", mock.Anything, "tower-a").Return(saved, true, nil)
	secondStore.On("Save", mock.Anything, "tower-a", mock.Anything, mock.Anything).Return(nil)

	input.Rows = [][]string{row("Northeast"), row("North")}
	second, err := NewService(ServiceDependencies{Engine: e, Store: secondStore}, createValidConfig()).Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "CMO-GF-NORT2", second.Rows[0][1])
	assert.Equal(t, "CMO-GF-NORT", second.Rows[1][1])
	secondStore.AssertExpectations(t)
}

func TestService_Execute_Errors(t *testing.T) {
	t.Run("load failure", func(t *testing.T) {
		store := new(MockStore)
		store.On("Load", mock.Anything, "tower-a").Return(nil, false, errors.NewCodeTableLoadFailedError("tower-a", fmt.Errorf("down")))

		input := createValidInput()
		input.Persist = true
		_, err := NewService(ServiceDependencies{Engine: newTestEngine(t), Store: store}, createValidConfig()).Execute(context.Background(), input)
		assert.True(t, errors.HasCode(err, errors.ErrCodeCodeTableLoadFailed))
	})

	t.Run("invalid mapping", func(t *testing.T) {
		input := createValidInput()
		input.Mapping = map[string]string{"building": "unmapped"}
		_, err := NewService(ServiceDependencies{Engine: newTestEngine(t)}, createValidConfig()).Execute(context.Background(), input)
		assert.True(t, errors.HasCode(err, errors.ErrCodeMappingInvalid))

		bpmn := errors.ConvertToBPMNError(mustStandard(t, err))
		assert.Equal(t, "MAPPING_INVALID", bpmn.Code)
		assert.Zero(t, bpmn.Retries)
	})

	t.Run("too many rows", func(t *testing.T) {
		cfg := createValidConfig()
		cfg.MaxRows = 1
		_, err := NewService(ServiceDependencies{Engine: newTestEngine(t)}, cfg).Execute(context.Background(), createValidInput())
		assert.True(t, errors.HasCode(err, errors.ErrCodeInputValidationFailed))
	})

	t.Run("cancelled run is not saved", func(t *testing.T) {
		store := new(MockStore)
		store.On("Load", mock.Anything, "tower-a").Return(nil, false, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		input := createValidInput()
		input.Persist = true
		_, err := NewService(ServiceDependencies{Engine: newTestEngine(t), Store: store}, createValidConfig()).Execute(ctx, input)
		assert.True(t, errors.HasCode(err, errors.ErrCodeGenerationCancelled))
		store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOutputVariables(t *testing.T) {
	vars := outputVariables(&Output{RunID: "run-1", Columns: []string{"location_id"}, Rows: [][]string{{"CMO-GF"}}})
	assert.Equal(t, "run-1", vars["assetIdRunId"])
	assert.Equal(t, [][]string{{"CMO-GF"}}, vars["assetIdRows"])
}

func mustStandard(t *testing.T, err error) *errors.StandardError {
	t.Helper()
	stdErr, ok := errors.AsStandard(err)
	require.True(t, ok)
	return stdErr
}
