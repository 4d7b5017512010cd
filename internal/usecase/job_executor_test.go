package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/linkchecker-service/internal/adapter/memory"
	"github.com/user/linkchecker-service/internal/entity"
	"go.uber.org/zap"
)

type stubGeneration struct {
	stats *entity.GenerationStats
	err   error
	runs  int
}

func (s *stubGeneration) GenerateDataFeed(context.Context) (*entity.GenerationStats, error) {
	s.runs++
	return s.stats, s.err
}

func newTestExecutor(gen DataFeedGeneration) *JobExecutor {
	e := NewJobExecutor(memory.NewJobQueue(8), memory.NewJobResultRepo(), gen, newTestMetrics(), zap.NewNop())
	e.popTimeout = 20 * time.Millisecond
	return e
}

func TestJobExecutor_Succeeds(t *testing.T) {
	ctx := context.Background()
	gen := &stubGeneration{stats: &entity.GenerationStats{ReportedRows: 3, BrokenLinks: entity.LinksCount{External: 2}}}
	e := newTestExecutor(gen)

	id, err := e.Submit(ctx)
	require.NoError(t, err)
	queued, err := e.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.JobQueued, queued.State)

	res, err := e.ProcessNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, id, res.ID)
	assert.Equal(t, entity.JobSucceeded, res.State)
	assert.Equal(t, "2 broken links reported in 3 rows", res.Message)
	assert.NotNil(t, res.FinishedAt)

	latest, err := e.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.JobSucceeded, latest.State)
	assert.Equal(t, 1, gen.runs)
}

func TestJobExecutor_Fails(t *testing.T) {
	ctx := context.Background()
	e := newTestExecutor(&stubGeneration{err: errors.New("content repository is unavailable")})

	_, err := e.Submit(ctx)
	require.NoError(t, err)
	res, err := e.ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.JobFailed, res.State)
	assert.Contains(t, res.Message, "unavailable")
}

func TestJobExecutor_EmptyQueue(t *testing.T) {
	e := newTestExecutor(&stubGeneration{})

	res, err := e.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestJobExecutor_RunStopsOnCancel(t *testing.T) {
	gen := &stubGeneration{stats: &entity.GenerationStats{}}
	e := newTestExecutor(gen)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := e.Submit(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		res, err := e.Latest(context.Background())
		return err == nil && res.State == entity.JobSucceeded
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("executor did not stop")
	}
}
