package abbreviation

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
	"assetid-workers/internal/models"
)

// ==========================
// Mock Abbreviator
// ==========================

type MockAbbreviator struct {
	mock.Mock
}

func (m *MockAbbreviator) Abbreviate(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

func newResolver(t *testing.T, ab Abbreviator, vocab *Vocabulary) *Resolver {
	t.Helper()
	r, err := NewResolver(Options{
		Vocabulary:  vocab,
		Abbreviator: ab,
		Timeout:     50 * time.Millisecond,
		Logger:      logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return r
}

func TestResolve_FallbackCalledOncePerDescription(t *testing.T) {
	ab := new(MockAbbreviator)
	ab.On("Abbreviate", mock.Anything, "VAV Box 12").Return("vav", nil).Once()

	vocab := DefaultEquipment().Merge(NewVocabulary(map[string]string{"Air Handler Unit 3": "AHU"}))
	session := newResolver(t, ab, vocab).NewSession()
	table := codetable.New()

	var codes []string
	for _, desc := range []string{"Air Handler Unit 3", "Air Handler Unit 3", "VAV Box 12"} {
		tx := table.Begin()
		res := session.Resolve(context.Background(), tx, desc, "")
		tx.Commit()
		codes = append(codes, res.Code)
	}

	assert.Equal(t, []string{"AHU", "AHU", "VAV"}, codes)
	assert.Equal(t, 1, session.Calls())
	ab.AssertExpectations(t)

	cached, ok := table.Abbreviation("VAV BOX 12")
	require.True(t, ok)
	assert.Equal(t, "VAV", cached.Code)
	assert.Equal(t, models.SourceFallbackAI, cached.Source)
}

func TestResolve_LookupOrder(t *testing.T) {
	ab := new(MockAbbreviator)
	session := newResolver(t, ab, nil).NewSession()
	tx := codetable.New().Begin()

	tests := []struct {
		name       string
		equipment  string
		system     string
		wantCode   string
		wantSource models.CodeSource
	}{
		{"name in vocabulary", "Exhaust Fan", "HVAC", "EXF", models.SourceKnownTable},
		{"name normalized before lookup", "  exhaust-FAN ", "", "EXF", models.SourceKnownTable},
		{"system when name unknown", "Roof Gizmo", "Fire Protection", "FPS", models.SourceKnownTable},
		{"system when name empty", "", "Plumbing", "PLB", models.SourceKnownTable},
		{"both empty", "", "  ", "EQP", models.SourcePlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := session.Resolve(context.Background(), tx, tt.equipment, tt.system)
			assert.Equal(t, tt.wantCode, res.Code)
			assert.Equal(t, tt.wantSource, res.Source)
		})
	}
	assert.Equal(t, 0, session.Calls())
	ab.AssertNotCalled(t, "Abbreviate", mock.Anything, mock.Anything)
}

func TestResolve_ServiceFailureDegrades(t *testing.T) {
	ab := new(MockAbbreviator)
	ab.On("Abbreviate", mock.Anything, "Chilled Beam Zone").Return("", stderrors.New("503 from provider")).Once()

	session := newResolver(t, ab, nil).NewSession()
	table := codetable.New()

	for i := 0; i < 2; i++ {
		tx := table.Begin()
		res := session.Resolve(context.Background(), tx, "Chilled Beam Zone", "")
		tx.Commit()

		assert.Equal(t, "CBZ", res.Code)
		assert.Equal(t, models.SourcePlaceholder, res.Source)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, string(errors.ErrCodeAbbreviationUnavailable), res.Warnings[0].Code)
	}

	assert.Equal(t, 1, session.Calls())
	_, cached := table.Abbreviation("CHILLED BEAM ZONE")
	assert.False(t, cached)
}

func TestResolve_TimeoutDegrades(t *testing.T) {
	slow := AbbreviatorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	session := newResolver(t, slow, nil).NewSession()
	res := session.Resolve(context.Background(), codetable.New().Begin(), "Heat Recovery Wheel", "")

	assert.Equal(t, "HRW", res.Code)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, string(errors.ErrCodeAbbreviationTimeout), res.Warnings[0].Code)
}

func TestResolve_TimeoutBoundsAbbreviatorIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	stubborn := AbbreviatorFunc(func(context.Context, string) (string, error) {
		<-release
		return "SLOW", nil
	})

	session := newResolver(t, stubborn, nil).NewSession()
	table := codetable.New()
	tx := table.Begin()

	start := time.Now()
	res := session.Resolve(context.Background(), tx, "Heat Recovery Wheel", "")
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, "HRW", res.Code)
	assert.Equal(t, models.SourcePlaceholder, res.Source)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, string(errors.ErrCodeAbbreviationTimeout), res.Warnings[0].Code)

	tx.Commit()
	_, cached := table.Abbreviation("HEAT RECOVERY WHEEL")
	assert.False(t, cached)
}

func TestResolve_EmptyAnswerDegrades(t *testing.T) {
	ab := AbbreviatorFunc(func(context.Context, string) (string, error) { return " ?! ", nil })

	session := newResolver(t, ab, nil).NewSession()
	res := session.Resolve(context.Background(), codetable.New().Begin(), "Boiler", "")

	assert.Equal(t, "BOIL", res.Code)
	assert.Equal(t, models.SourcePlaceholder, res.Source)
}

func TestResolve_NoAbbreviatorConfigured(t *testing.T) {
	session := newResolver(t, nil, nil).NewSession()
	res := session.Resolve(context.Background(), codetable.New().Begin(), "Dock Leveler", "")

	assert.Equal(t, "DL", res.Code)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, string(errors.ErrCodeAbbreviationUnavailable), res.Warnings[0].Code)
	assert.Equal(t, 0, session.Calls())
}

func TestResolve_AICodeIsNormalized(t *testing.T) {
	ab := AbbreviatorFunc(func(context.Context, string) (string, error) { return "vrf-unit\n", nil })

	session := newResolver(t, ab, nil).NewSession()
	res := session.Resolve(context.Background(), codetable.New().Begin(), "Variable Refrigerant Flow", "")

	assert.Equal(t, "VU", res.Code)
	assert.Equal(t, models.SourceFallbackAI, res.Source)
}

func TestResolve_SeededTableSkipsService(t *testing.T) {
	ab := new(MockAbbreviator)
	table := codetable.New()
	tx := table.Begin()
	tx.PutAbbreviation(codetable.Abbreviation{Key: "VAV BOX 12", Raw: "VAV Box 12", Code: "VAV", Source: models.SourceFallbackAI})
	tx.Commit()

	session := newResolver(t, ab, nil).NewSession()
	res := session.Resolve(context.Background(), table.Begin(), "vav box 12", "")

	assert.Equal(t, "VAV", res.Code)
	assert.Equal(t, 0, session.Calls())
}

func TestPrefetch_ConcurrentDistinctCalls(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	ab := AbbreviatorFunc(func(_ context.Context, text string) (string, error) {
		mu.Lock()
		seen[text]++
		mu.Unlock()
		return "X" + text[:1], nil
	})

	session := newResolver(t, ab, nil).NewSession()
	items := []Description{
		{Name: "Boiler"}, {Name: "boiler "}, {Name: "Dock Leveler"},
		{Name: "Exhaust Fan"}, {System: "Kitchen Hood"}, {},
	}
	require.NoError(t, session.Prefetch(context.Background(), codetable.New(), items, 3))

	assert.Equal(t, 3, session.Calls())
	assert.Equal(t, map[string]int{"Boiler": 1, "Dock Leveler": 1, "Kitchen Hood": 1}, seen)

	res := session.Resolve(context.Background(), codetable.New().Begin(), "BOILER", "")
	assert.Equal(t, "XB", res.Code)
	assert.Equal(t, 3, session.Calls())
}

func TestPrefetch_CancelledContext(t *testing.T) {
	ab := new(MockAbbreviator)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := newResolver(t, ab, nil).NewSession()
	err := session.Prefetch(ctx, nil, []Description{{Name: "Boiler"}}, 2)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, session.Calls())
}
