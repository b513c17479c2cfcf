package services

import (
	"context"
	"sync"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/pkg/circuitbreaker"
	"livegate/pkg/retry"

	"go.uber.org/zap"
)

// RecordingCoordinator drives the recording collaborator asynchronously.
// Failures are retried with backoff behind a circuit breaker; they degrade
// capability (no recording) but never fail or end the stream.
type RecordingCoordinator struct {
	svc     ports.RecordingService
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
	metrics ports.Collector
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	started map[domain.StreamKey]bool
	wg      sync.WaitGroup
}

func NewRecordingCoordinator(
	svc ports.RecordingService,
	retryCfg retry.Config,
	metrics ports.Collector,
	logger *zap.SugaredLogger,
) *RecordingCoordinator {
	rc := &RecordingCoordinator{
		svc:     svc,
		retry:   retryCfg,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		metrics: metrics,
		logger:  logger,
		started: make(map[domain.StreamKey]bool),
	}
	rc.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("recording circuit breaker state change", "from", from.String(), "to", to.String())
	})
	return rc
}

// Start kicks off recording for the key. Idempotent against an
// already-recording key.
func (rc *RecordingCoordinator) Start(key domain.StreamKey, owner domain.UserID) {
	if rc.svc == nil {
		return
	}

	rc.mu.Lock()
	if rc.started[key] {
		rc.mu.Unlock()
		return
	}
	rc.started[key] = true
	rc.mu.Unlock()

	rc.async(key, "start", func(ctx context.Context) error {
		_, err := rc.svc.Start(ctx, key, owner)
		return err
	})
}

// Stop ends recording for the key. No-op when Start was never issued.
func (rc *RecordingCoordinator) Stop(key domain.StreamKey) {
	if rc.svc == nil {
		return
	}

	rc.mu.Lock()
	if !rc.started[key] {
		rc.mu.Unlock()
		return
	}
	delete(rc.started, key)
	rc.mu.Unlock()

	rc.async(key, "stop", func(ctx context.Context) error {
		_, err := rc.svc.Stop(ctx, key)
		return err
	})
}

// Wait blocks until all in-flight recording calls finish. Used by shutdown
// and tests.
func (rc *RecordingCoordinator) Wait() {
	rc.wg.Wait()
}

func (rc *RecordingCoordinator) async(key domain.StreamKey, op string, fn func(ctx context.Context) error) {
	rc.wg.Add(1)
	go func() {
		defer rc.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := rc.breaker.Execute(func() error {
			return retry.Do(ctx, rc.retry, func() error {
				return fn(ctx)
			}, func(attempt int, err error) {
				rc.metrics.RecordRecordingRetry(key)
				rc.logger.Warnw("recording call retry",
					"op", op, "stream_key", key, "attempt", attempt, "error", err)
			})
		})
		if err != nil {
			rc.logger.Errorw("recording call failed, stream continues without recording",
				"op", op, "stream_key", key, "error", err)
		}
	}()
}
