package job

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/GoDocRAG/internal/data/store"
	"github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(buffer int) *Service {
	return InitJobService(ServiceConfig{
		JobChannel:        make(chan jobModel.Job, buffer),
		DispatcherChannel: make(chan bool, buffer),
		JobStore:          store.InitInMemoryJobStore(),
	})
}

func TestSubmit_QueuesAndSignals(t *testing.T) {
	s := newTestService(1)
	j := jobModel.Job{Id: "job-1", JobType: jobModel.JobTypeReindex, Status: jobModel.JobStatusRunning}

	require.NoError(t, s.Submit(context.Background(), j))

	queued := <-s.JobChannel
	assert.Equal(t, jobModel.JobStatusQueued, queued.Status)
	assert.True(t, <-s.DispatcherChannel)
	assert.Equal(t, int64(1), s.RequestCount)

	stored, found := s.Status(context.Background(), "job-1")
	require.True(t, found)
	assert.Equal(t, jobModel.JobStatusQueued, stored.Status)
}

func TestSubmit_FullQueueHonoursContext(t *testing.T) {
	s := newTestService(1)
	require.NoError(t, s.Submit(context.Background(), jobModel.Job{Id: "first"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Submit(ctx, jobModel.Job{Id: "second"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, found := s.Status(context.Background(), "second")
	assert.False(t, found, "a job that never reached the queue must not stay pollable")
}

func TestSaveState(t *testing.T) {
	s := newTestService(1)
	j := s.SaveState(context.Background(), jobModel.Job{Id: "job-2"}, jobModel.JobStatusComplete)

	assert.Equal(t, jobModel.JobStatusComplete, j.Status)
	stored, found := s.Status(context.Background(), "job-2")
	require.True(t, found)
	assert.Equal(t, jobModel.JobStatusComplete, stored.Status)
}

func TestStatus_NilService(t *testing.T) {
	var s *Service
	_, found := s.Status(context.Background(), "x")
	assert.False(t, found)
}
