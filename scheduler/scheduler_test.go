package scheduler_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/stupid-simple/assetpipe/scheduler"
)

type MockJob struct {
	mock.Mock
}

func (m *MockJob) Run() {
	m.Called()
}

func TestNewScheduler(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	assert.NotNil(t, s, "Scheduler should not be nil")
	assert.Empty(t, s.Jobs())
}

func TestScheduler_AddJob(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	mockJob := new(MockJob)

	err := s.AddJob("cleanup", "* * * * *", mockJob)
	assert.NoError(t, err, "Should add job without error")
	assert.Equal(t, []string{"cleanup"}, s.Jobs())

	// Test with invalid schedule.
	err = s.AddJob("cleanup", "invalid-schedule", mockJob)
	assert.Error(t, err, "Should return error with invalid schedule")
}

func TestScheduler_StartStop(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	mockJob := new(MockJob)
	mockJob.On("Run").Return()

	err := s.AddJob("prune", "@every 1h", mockJob)
	assert.NoError(t, err)

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	mockJob.AssertNotCalled(t, "Run")
}

func TestScheduler_RemoveJobs(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	err := s.AddJob("cleanup", "* * * * *", scheduler.JobFunc(func() {}))
	assert.NoError(t, err)

	err = s.AddJob("prune", "*/5 * * * *", scheduler.JobFunc(func() {}))
	assert.NoError(t, err)
	assert.Len(t, s.Jobs(), 2)

	s.RemoveJobs()
	assert.Empty(t, s.Jobs())

	err = s.AddJob("cleanup", "* * * * *", scheduler.JobFunc(func() {}))
	assert.NoError(t, err, "Should be able to add job again after removal")
}
