package history_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/aqiguard/internal/aqi"
	"github.com/breatheroute/aqiguard/internal/history"
)

func evaluation(subject string, lat, lon float64, at time.Time) aqi.Evaluation {
	return aqi.Evaluation{
		SubjectID:       subject,
		Latitude:        lat,
		Longitude:       lon,
		RawAQI:          112,
		PersonalizedAQI: 137,
		Tier:            aqi.Classify(137),
		Pollutant:       aqi.PollutantPM25,
		EvaluatedAt:     at,
	}
}

func TestRecorder_AssignsIDAndTime(t *testing.T) {
	ctx := context.Background()
	rec := history.NewRecorder(history.NewInMemoryRepository())

	e := evaluation("usr_1", -23.55, -46.63, time.Time{})
	id, err := rec.Record(ctx, e)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := rec.ListBySubject(ctx, "usr_1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.False(t, got[0].EvaluatedAt.IsZero())
	assert.Equal(t, aqi.TierOrange, got[0].Tier)
}

func TestInMemoryRepository_RejectsMissingID(t *testing.T) {
	repo := history.NewInMemoryRepository()
	_, err := repo.Append(context.Background(), aqi.Evaluation{})
	assert.ErrorIs(t, err, history.ErrInvalidEvaluation)
}

func TestInMemoryRepository_ListBySubjectNewestFirst(t *testing.T) {
	ctx := context.Background()
	rec := history.NewRecorder(history.NewInMemoryRepository())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := rec.Record(ctx, evaluation("usr_1", 0, 0, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	_, err := rec.Record(ctx, evaluation("usr_2", 0, 0, base))
	require.NoError(t, err)

	got, err := rec.ListBySubject(ctx, "usr_1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, base.Add(4*time.Hour), got[0].EvaluatedAt)
	assert.Equal(t, base.Add(2*time.Hour), got[2].EvaluatedAt)

	none, err := rec.ListBySubject(ctx, "usr_missing", 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryRepository_ListNear(t *testing.T) {
	ctx := context.Background()
	rec := history.NewRecorder(history.NewInMemoryRepository())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Sé, São Paulo and a point roughly 1.1 km north of it.
	_, err := rec.Record(ctx, evaluation("usr_1", -23.5505, -46.6333, base))
	require.NoError(t, err)
	_, err = rec.Record(ctx, evaluation("", -23.5405, -46.6333, base.Add(time.Minute)))
	require.NoError(t, err)
	// Rio de Janeiro.
	_, err = rec.Record(ctx, evaluation("usr_2", -22.9068, -43.1729, base))
	require.NoError(t, err)

	near, err := rec.ListNear(ctx, -23.5505, -46.6333, 2000, 10)
	require.NoError(t, err)
	require.Len(t, near, 2)
	assert.Equal(t, "", near[0].SubjectID, "newest first")

	tight, err := rec.ListNear(ctx, -23.5505, -46.6333, 500, 10)
	require.NoError(t, err)
	assert.Len(t, tight, 1)
}

func TestInMemoryRepository_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	rec := history.NewRecorder(history.NewInMemoryRepository())

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			subject := fmt.Sprintf("usr_%d", i%4)
			_, err := rec.Record(ctx, evaluation(subject, 0, 0, time.Time{}))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		got, err := rec.ListBySubject(ctx, fmt.Sprintf("usr_%d", i), history.MaxListLimit)
		require.NoError(t, err)
		assert.Len(t, got, 50)
	}
}
