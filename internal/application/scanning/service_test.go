package scanning

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/prometheus"
	recognizer "github.com/turtacn/deckscan/internal/intelligence/card_recognizer"
	"github.com/turtacn/deckscan/internal/testutil"
	"github.com/turtacn/deckscan/pkg/errors"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

func newRecognizer(t *testing.T, entities ...string) *recognizer.Recognizer {
	t.Helper()
	r, err := recognizer.NewRecognizer(entities, []string{"Land"}, nil, recognizer.DefaultConfig(), nil)
	require.NoError(t, err)
	return r
}

func boltFragments() []scan.Fragment {
	return []scan.Fragment{
		{Box: scan.BoundingBox{10, 10, 200, 10, 200, 30, 10, 30}, Text: "Lightnng Bolt"},
		{Box: scan.BoundingBox{210, 40, 230, 40, 230, 55, 210, 55}, Text: "x4"},
		{Box: scan.BoundingBox{10, 400, 60, 400, 60, 420, 10, 420}, Text: "Land"},
	}
}

func TestService_NotReady(t *testing.T) {
	svc := NewService(nil, Config{}, nil, nil)
	assert.False(t, svc.Ready())

	_, err := svc.Scan(context.Background(), &ScanRequest{Fragments: boltFragments()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEngineNotReady))

	_, err = svc.ScanBatch(context.Background(), []*ScanRequest{{}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEngineNotReady))
}

func TestService_ScanFragments(t *testing.T) {
	logger := testutil.NewMockLogger()
	svc := NewService(newRecognizer(t, "Island", "Lightning Bolt"), Config{}, prometheus.NewNoopScanMetrics(), logger)

	res, err := svc.Scan(context.Background(), &ScanRequest{Fragments: boltFragments()})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ScanID)
	assert.Equal(t, 4, res.Cards)
	assert.Equal(t, "4 Lightning Bolt\n\n", res.Deck.String())
	assert.Nil(t, res.Resolutions)
	assert.Nil(t, res.Assignments)
	assert.False(t, res.CompletedAt.IsZero())
	assert.True(t, logger.HasMessage("info", "scan completed"))

	st := svc.Stats()
	assert.True(t, st.Ready)
	assert.Equal(t, int64(1), st.Scans)
	assert.Equal(t, 2, st.Entities)
}

func TestService_ScanDetailedKeepsID(t *testing.T) {
	svc := NewService(newRecognizer(t, "Island", "Lightning Bolt"), Config{}, nil, nil)

	res, err := svc.Scan(context.Background(), &ScanRequest{ID: "scan-1", Fragments: boltFragments(), Detailed: true})
	require.NoError(t, err)
	assert.Equal(t, "scan-1", res.ScanID)
	require.Len(t, res.Resolutions, 3)
	assert.Equal(t, recognizer.OutcomeEntity, res.Resolutions[0].Outcome)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "Lightning Bolt", res.Assignments[0].Card)
}

func TestService_ScanPayload(t *testing.T) {
	svc := NewService(newRecognizer(t, "Forest"), Config{}, nil, nil)

	res, err := svc.Scan(context.Background(), &ScanRequest{
		Format:  "fragments",
		Payload: []byte(`[{"box":[0,0],"text":"Forrest"},{"box":[50,5],"text":"x3"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Deck.Main.Count("Forest"))
}

func TestService_InputErrorsAreCountedAndWarned(t *testing.T) {
	logger := testutil.NewMockLogger()
	svc := NewService(newRecognizer(t, "Forest"), Config{}, nil, logger)

	_, err := svc.Scan(context.Background(), &ScanRequest{Fragments: []scan.Fragment{{Box: scan.BoundingBox{1, 2, 3}, Text: "Forest"}}})
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))

	_, err = svc.Scan(context.Background(), &ScanRequest{Format: "hocr", Payload: []byte("<html/>")})
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))

	_, err = svc.Scan(context.Background(), nil)
	assert.True(t, errors.IsInputError(err))

	assert.Equal(t, int64(2), svc.Stats().Failures)
	assert.Len(t, logger.Filter("scan rejected"), 2)
}

func TestService_ScanCancelled(t *testing.T) {
	svc := NewService(newRecognizer(t, "Forest"), Config{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Scan(ctx, &ScanRequest{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestService_ScanBatch(t *testing.T) {
	svc := NewService(newRecognizer(t, "Forest", "Island"), Config{Concurrency: 3, MaxBatch: 10}, nil, nil)

	reqs := make([]*ScanRequest, 0, 8)
	for i := 0; i < 7; i++ {
		reqs = append(reqs, &ScanRequest{
			ID:        fmt.Sprintf("scan-%d", i),
			Fragments: []scan.Fragment{{Box: scan.BoundingBox{0, 0}, Text: "Forest"}, {Box: scan.BoundingBox{50, 5}, Text: fmt.Sprintf("x%d", i+1)}},
		})
	}
	reqs = append(reqs, &ScanRequest{Fragments: []scan.Fragment{{Box: scan.BoundingBox{0}, Text: "Island"}}})

	items, err := svc.ScanBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, items, 8)

	for i := 0; i < 7; i++ {
		require.NotNil(t, items[i].Result, "item %d", i)
		assert.Equal(t, i, items[i].Index)
		assert.Equal(t, fmt.Sprintf("scan-%d", i), items[i].Result.ScanID)
		assert.Equal(t, i+1, items[i].Result.Deck.Main.Count("Forest"))
	}
	assert.Nil(t, items[7].Result)
	assert.NotEmpty(t, items[7].Error)
	assert.Equal(t, string(errors.ErrCodeInvalidInput), items[7].Code)
}

func TestService_ScanBatchLimits(t *testing.T) {
	svc := NewService(newRecognizer(t, "Forest"), Config{Concurrency: 2, MaxBatch: 2}, nil, nil)

	_, err := svc.ScanBatch(context.Background(), nil)
	assert.True(t, errors.IsInputError(err))

	_, err = svc.ScanBatch(context.Background(), []*ScanRequest{{}, {}, {}})
	assert.True(t, errors.IsInputError(err))
}

func TestService_SwapDuringScans(t *testing.T) {
	svc := NewService(newRecognizer(t, "Forest"), Config{}, nil, nil)
	before := svc.Stats().SwappedAt
	req := &ScanRequest{Fragments: []scan.Fragment{{Box: scan.BoundingBox{0, 0}, Text: "Forest"}}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				res, err := svc.Scan(context.Background(), req)
				if assert.NoError(t, err) {
					assert.Equal(t, 1, res.Deck.Main.Count("Forest"))
				}
			}
		}()
	}
	time.Sleep(time.Millisecond)
	svc.Swap(newRecognizer(t, "Forest", "Island", "Swamp"))
	wg.Wait()

	st := svc.Stats()
	assert.Equal(t, 3, st.Entities)
	assert.False(t, st.SwappedAt.Before(before))
	assert.Equal(t, int64(160), st.Scans)

	svc.Swap(nil)
	assert.Equal(t, 3, svc.Stats().Entities)
}
