package searchassetids

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

	"assetid-workers/internal/common/database"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, q database.AssetQuery) (*database.AssetSearchResult, error) {
	args := m.Called(ctx, q)
	result, _ := args.Get(0).(*database.AssetSearchResult)
	return result, args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:           key,
		Type:          TaskType,
		BpmnProcessId: "asset-lookup",
		ElementId:     "Activity_SearchAssetIds",
		CustomHeaders: "{}",
		Retries:       3,
		Variables:     string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, searcher AssetSearcher) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Second},
		Logger:       logger.NewTestLogger(t),
		Dependencies: ServiceDependencies{Searcher: searcher},
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
		{
			name: "full query",
			variables: map[string]interface{}{
				"project":       "tower-a",
				"assetIdPrefix": "CMO-GF",
				"pagination":    map[string]interface{}{"from": 20, "size": 20},
			},
		},
		{name: "missing project", variables: map[string]interface{}{"text": "fan"}, wantErr: true},
		{name: "empty project", variables: map[string]interface{}{"project": ""}, wantErr: true},
		{
			name: "page too large",
			variables: map[string]interface{}{
				"project":    "tower-a",
				"pagination": map[string]interface{}{"size": 1000},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeInputValidationFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "CMO-GF", input.Prefix)
			assert.Equal(t, Pagination{From: 20, Size: 20}, input.Pagination)
		})
	}
}

func TestService_Execute(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("Search", mock.Anything, database.AssetQuery{
		Project: "tower-a",
		Text:    "exhaust fan",
		Prefix:  "CMO-GF",
		Size:    10,
	}).Return(&database.AssetSearchResult{
		Assets:    []database.AssetDocument{{Project: "tower-a", AssetID: "CMO-GF-FC-R101-EXF-1"}},
		TotalHits: 1,
		Took:      2,
	}, nil)

	output, err := newTestHandler(t, searcher).Execute(context.Background(), &Input{
		Project:    "tower-a",
		Text:       "exhaust fan",
		Prefix:     "CMO-GF",
		Pagination: Pagination{Size: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), output.TotalHits)
	assert.Equal(t, "CMO-GF-FC-R101-EXF-1", output.Assets[0].AssetID)
	searcher.AssertExpectations(t)

	vars := outputVariables(output)
	assert.Equal(t, int64(1), vars["assetsTotalHits"])
}

func TestService_Execute_Errors(t *testing.T) {
	t.Run("no index configured", func(t *testing.T) {
		_, err := newTestHandler(t, nil).Execute(context.Background(), &Input{Project: "p"})
		assert.True(t, errors.HasCode(err, "EXTERNAL_SERVICE_ERROR"))
	})

	t.Run("search failure passes through", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("Search", mock.Anything, mock.Anything).
			Return(nil, errors.NewAssetIndexFailedError("asset-ids", fmt.Errorf("boom")))

		_, err := newTestHandler(t, searcher).Execute(context.Background(), &Input{Project: "p"})
		assert.True(t, errors.HasCode(err, errors.ErrCodeAssetIndexFailed))
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		searcher := new(MockSearcher)
		searcher.On("Search", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		_, err := newTestHandler(t, searcher).Execute(ctx, &Input{Project: "p"})
		assert.True(t, errors.HasCode(err, "TIMEOUT_ERROR"))
	})
}
