package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/internal/infrastructure/monitoring"
	"livegate/pkg/logger"
	"livegate/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecordingService counts calls and can be told to fail the first N
// start calls. Safe for the coordinator's background goroutines.
type fakeRecordingService struct {
	starts        atomic.Int64
	stops         atomic.Int64
	startFailures atomic.Int64
}

func (f *fakeRecordingService) Start(ctx context.Context, key domain.StreamKey, owner domain.UserID) (bool, error) {
	n := f.starts.Add(1)
	if n <= f.startFailures.Load() {
		return false, errors.New("recorder unavailable")
	}
	return true, nil
}

func (f *fakeRecordingService) Stop(ctx context.Context, key domain.StreamKey) (bool, error) {
	f.stops.Add(1)
	return true, nil
}

var _ ports.RecordingService = (*fakeRecordingService)(nil)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRecordingCoordinator_StartStop(t *testing.T) {
	svc := &fakeRecordingService{}
	rc := NewRecordingCoordinator(svc, fastRetry(), monitoring.NopCollector{}, logger.NewNop().Sugar())

	rc.Start("alice-stream", "alice")
	rc.Stop("alice-stream")
	rc.Wait()

	assert.Equal(t, int64(1), svc.starts.Load())
	assert.Equal(t, int64(1), svc.stops.Load())
}

func TestRecordingCoordinator_StartIdempotent(t *testing.T) {
	svc := &fakeRecordingService{}
	rc := NewRecordingCoordinator(svc, fastRetry(), monitoring.NopCollector{}, logger.NewNop().Sugar())

	rc.Start("alice-stream", "alice")
	rc.Start("alice-stream", "alice")
	rc.Start("alice-stream", "alice")
	rc.Wait()

	assert.Equal(t, int64(1), svc.starts.Load())
}

func TestRecordingCoordinator_StopWithoutStart(t *testing.T) {
	svc := &fakeRecordingService{}
	rc := NewRecordingCoordinator(svc, fastRetry(), monitoring.NopCollector{}, logger.NewNop().Sugar())

	rc.Stop("alice-stream")
	rc.Wait()

	assert.Zero(t, svc.stops.Load())
}

func TestRecordingCoordinator_RetriesTransientFailures(t *testing.T) {
	svc := &fakeRecordingService{}
	svc.startFailures.Store(2)
	rc := NewRecordingCoordinator(svc, fastRetry(), monitoring.NopCollector{}, logger.NewNop().Sugar())

	rc.Start("alice-stream", "alice")

	require.Eventually(t, func() bool {
		return svc.starts.Load() == 3
	}, time.Second, 5*time.Millisecond, "two failures then a success")
	rc.Wait()
}

func TestRecordingCoordinator_NilServiceIsNoop(t *testing.T) {
	rc := NewRecordingCoordinator(nil, fastRetry(), monitoring.NopCollector{}, logger.NewNop().Sugar())

	rc.Start("alice-stream", "alice")
	rc.Stop("alice-stream")
	rc.Wait()
}
