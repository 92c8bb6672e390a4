package managecodetable

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
	"assetid-workers/internal/common/config"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
	"assetid-workers/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context, project string) (*codetable.CodeTable, bool, error) {
	args := m.Called(ctx, project)
	table, _ := args.Get(0).(*codetable.CodeTable)
	return table, args.Bool(1), args.Error(2)
}

func (m *MockStore) Delete(ctx context.Context, project string) error {
	return m.Called(ctx, project).Error(0)
}

func sampleTable(t *testing.T) *codetable.CodeTable {
	t.Helper()
	table, err := codetable.FromSnapshot(codetable.Snapshot{
		Version: codetable.SnapshotVersion,
		Entries: []codetable.Entry{
			{Level: models.LevelLocation, Key: "compound management office|ground floor", Raw: "Compound Management Office", Code: "CMO-GF", Source: models.SourceKnownTable},
			{Level: models.LevelSpace, Parent: "CMO-GF", Key: "food court", Raw: "Food Court", Code: "FC", Source: models.SourceKnownTable},
		},
	})
	require.NoError(t, err)
	return table
}

func createMockJob(variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:           7,
		Type:          TaskType,
		BpmnProcessId: "asset-maintenance",
		CustomHeaders: "{}",
		Retries:       3,
		Variables:     string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, store CodeTableStore) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Second},
		Logger:       logger.NewTestLogger(t),
		Dependencies: ServiceDependencies{Store: store},
	})
	require.NoError(t, err)
	return h
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, nil)

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
	}{
		{name: "get", variables: map[string]interface{}{"project": "tower-a", "action": "get"}},
		{name: "get one level", variables: map[string]interface{}{"project": "tower-a", "action": "get", "level": "space"}},
		{name: "reset", variables: map[string]interface{}{"project": "tower-a", "action": "reset"}},
		{name: "unknown action", variables: map[string]interface{}{"project": "tower-a", "action": "truncate"}, wantErr: true},
		{name: "unknown level", variables: map[string]interface{}{"project": "tower-a", "action": "get", "level": "wing"}, wantErr: true},
		{name: "missing project", variables: map[string]interface{}{"action": "get"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(tt.variables))
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeInputValidationFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "tower-a", input.Project)
		})
	}
}

func TestService_Get(t *testing.T) {
	store := new(MockStore)
	store.On("Load", mock.Anything, "tower-a").Return(sampleTable(t), true, nil)
	h := newTestHandler(t, store)

	output, err := h.Execute(context.Background(), &Input{Project: "tower-a", Action: ActionGet})
	require.NoError(t, err)
	assert.True(t, output.Found)
	assert.Equal(t, 2, output.Entries)
	assert.Len(t, output.Codes, 2)

	output, err = h.Execute(context.Background(), &Input{Project: "tower-a", Action: ActionGet, Level: "space"})
	require.NoError(t, err)
	require.Len(t, output.Codes, 1)
	assert.Equal(t, "FC", output.Codes[0].Code)

	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestService_GetMissingProject(t *testing.T) {
	store := new(MockStore)
	store.On("Load", mock.Anything, "tower-b").Return(nil, false, nil)

	output, err := newTestHandler(t, store).Execute(context.Background(), &Input{Project: "tower-b", Action: ActionGet})
	require.NoError(t, err)
	assert.False(t, output.Found)
	assert.Empty(t, output.Codes)
}

func TestService_Reset(t *testing.T) {
	store := new(MockStore)
	store.On("Load", mock.Anything, "tower-a").Return(sampleTable(t), true, nil)
	store.On("Delete", mock.Anything, "tower-a").Return(nil)

	output, err := newTestHandler(t, store).Execute(context.Background(), &Input{Project: "tower-a", Action: ActionReset})
	require.NoError(t, err)
	assert.True(t, output.Deleted)
	assert.Equal(t, 2, output.Entries)
	store.AssertExpectations(t)

	vars := outputVariables(output)
	assert.Equal(t, true, vars["codeTableDeleted"])
}

func TestService_ResetNothingStored(t *testing.T) {
	store := new(MockStore)
	store.On("Load", mock.Anything, "tower-b").Return(nil, false, nil)

	output, err := newTestHandler(t, store).Execute(context.Background(), &Input{Project: "tower-b", Action: ActionReset})
	require.NoError(t, err)
	assert.False(t, output.Deleted)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestService_Errors(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		_, err := newTestHandler(t, nil).Execute(context.Background(), &Input{Project: "p", Action: ActionGet})
		assert.True(t, errors.HasCode(err, errors.ErrCodeDatabaseConnectionFailed))
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := newTestHandler(t, new(MockStore)).Execute(context.Background(), &Input{Project: "p", Action: "drop"})
		assert.True(t, errors.HasCode(err, errors.ErrCodeInputValidationFailed))
	})

	t.Run("load failure", func(t *testing.T) {
		store := new(MockStore)
		store.On("Load", mock.Anything, "p").Return(nil, false, errors.NewCodeTableLoadFailedError("p", fmt.Errorf("connection reset")))

		_, err := newTestHandler(t, store).Execute(context.Background(), &Input{Project: "p", Action: ActionReset})
		assert.True(t, errors.HasCode(err, errors.ErrCodeCodeTableLoadFailed))
	})
}

func TestHandler_ConfigFromAppConfig(t *testing.T) {
	cfg := createConfigFromAppConfig(&config.Config{Workers: map[string]config.WorkerConfig{
		"manage-code-table": {Enabled: false, Timeout: 3000},
	}}, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, DefaultConfig().MaxJobsActive, cfg.MaxJobsActive)

	unlisted := createConfigFromAppConfig(&config.Config{}, nil)
	assert.True(t, unlisted.Enabled)
	assert.Equal(t, DefaultConfig().Timeout, unlisted.Timeout)
}
