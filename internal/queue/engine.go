package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/cuongbtq/review-queue/internal/storage"
)

// DefaultPollInterval is the wait between two poll cycles
const DefaultPollInterval = time.Second

// Config holds engine dependencies and settings. Zero values get defaults.
type Config struct {
	Store        storage.JobStore
	Logger       *slog.Logger
	PollInterval time.Duration
	Notifier     Notifier
	Metrics      Metrics
	Clock        func() time.Time
}

// Engine drives pending jobs through their registered processors.
//
// A single loop goroutine runs poll cycles while the engine is running. Jobs within
// a cycle are dispatched one after another in the order the store returns them.
type Engine struct {
	store        storage.JobStore
	registry     *Registry
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     Notifier
	metrics      Metrics
	now          func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	// cycleMu keeps poll cycles from overlapping across stop/start
	cycleMu sync.Mutex
}

// NewEngine creates a new engine in the idle state
func NewEngine(cfg *Config) *Engine {
	e := &Engine{
		store:        cfg.Store,
		registry:     NewRegistry(),
		logger:       cfg.Logger,
		pollInterval: cfg.PollInterval,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		now:          cfg.Clock,
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.pollInterval <= 0 {
		e.pollInterval = DefaultPollInterval
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}
	if e.now == nil {
		e.now = time.Now
	}

	return e
}

// Registry returns the engine's processor registry
func (e *Engine) Registry() *Registry {
	return e.registry
}

// RegisterProcessor registers p for jobType, replacing any previous processor
func (e *Engine) RegisterProcessor(jobType string, p Processor) {
	e.registry.Register(jobType, p)

	e.logger.Info("Processor registered",
		slog.String("job_type", jobType),
	)
}

// Enqueue persists a new pending job. It does not start the engine.
//
// payload is stored as JSON; json.RawMessage and []byte are stored verbatim.
func (e *Engine) Enqueue(ctx context.Context, jobType string, payload any) (domain.Job, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return domain.Job{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	job, err := e.store.CreateJob(ctx, jobType, raw)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to enqueue job: %w", err)
	}

	e.metrics.JobEnqueued(jobType)
	e.logger.Info("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("job_type", jobType),
	)

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, job); err != nil {
			// the job is persisted; the next poll cycle still finds it
			e.logger.Warn("Failed to notify engine of new job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return job, nil
}

// Start launches the poll loop. Calling Start on a running engine is a no-op.
//
// Cancelling ctx ends the loop and is passed to processors; Stop does neither.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}

	e.running = true
	stopChan := make(chan struct{})
	e.stopChan = stopChan

	e.wg.Add(1)
	go e.loop(ctx, stopChan)
}

// Stop signals the poll loop to exit after its current cycle. It does not wait
// and does not interrupt a running processor.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	close(e.stopChan)
	e.logger.Info("Queue engine stopping")
}

// Shutdown stops the engine and waits for the loop to exit or ctx to end
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Stop()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue engine shutdown: %w", ctx.Err())
	}
}

// Running reports whether a poll loop is active
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.running
}

// loop runs poll cycles until stopChan is closed or ctx is done
func (e *Engine) loop(ctx context.Context, stopChan chan struct{}) {
	defer e.wg.Done()
	defer e.markIdle(stopChan)

	e.logger.Info("Queue engine started",
		slog.Duration("poll_interval", e.pollInterval),
		slog.Any("job_types", e.registry.Types()),
	)

	for {
		select {
		case <-stopChan:
			e.logger.Info("Queue engine stopped")
			return
		case <-ctx.Done():
			e.logger.Info("Queue engine stopped - context canceled")
			return
		default:
		}

		e.pollCycle(ctx)

		if !e.wait(ctx, stopChan) {
			e.logger.Info("Queue engine stopped")
			return
		}
	}
}

// wait blocks for the poll interval or an early wake-up. It returns false when
// the loop should exit.
func (e *Engine) wait(ctx context.Context, stopChan chan struct{}) bool {
	timer := time.NewTimer(e.pollInterval)
	defer timer.Stop()

	var wake <-chan struct{}
	if e.notifier != nil {
		wake = e.notifier.Wake()
	}

	select {
	case <-stopChan:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-wake:
		e.logger.Debug("Queue engine woken early")
		return true
	}
}

// markIdle clears the running flag when the loop exits on its own, e.g. after
// ctx is canceled, so a later Start can launch a new loop.
func (e *Engine) markIdle(stopChan chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running && e.stopChan == stopChan {
		e.running = false
	}
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(p) > 0 && !json.Valid(p) {
			return nil, fmt.Errorf("payload is not valid JSON")
		}
		return p, nil
	case []byte:
		if len(p) > 0 && !json.Valid(p) {
			return nil, fmt.Errorf("payload is not valid JSON")
		}
		return json.RawMessage(p), nil
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		return raw, nil
	}
}
