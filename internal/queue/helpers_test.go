package queue

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/cuongbtq/review-queue/internal/storage/memory"
	amqp "github.com/rabbitmq/amqp091-go"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// faultyStore wraps the memory store and fails selected operations
type faultyStore struct {
	*memory.Store

	mu           sync.Mutex
	listErr      error
	updateErrFor map[domain.JobStatus]error

	// strictCtx makes UpdateJob fail on a done context, as a database driver would
	strictCtx atomic.Bool
	listCalls atomic.Int32
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:        memory.NewStore(),
		updateErrFor: make(map[domain.JobStatus]error),
	}
}

func (s *faultyStore) failList(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

func (s *faultyStore) failUpdateTo(status domain.JobStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErrFor[status] = err
}

func (s *faultyStore) ListJobsByStatus(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	s.listCalls.Add(1)

	s.mu.Lock()
	err := s.listErr
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return s.Store.ListJobsByStatus(ctx, status)
}

func (s *faultyStore) UpdateJob(ctx context.Context, jobID string, update domain.JobUpdate) (domain.Job, error) {
	if s.strictCtx.Load() {
		if err := ctx.Err(); err != nil {
			return domain.Job{}, err
		}
	}

	if update.Status != nil {
		s.mu.Lock()
		err := s.updateErrFor[*update.Status]
		s.mu.Unlock()

		if err != nil {
			return domain.Job{}, err
		}
	}
	return s.Store.UpdateJob(ctx, jobID, update)
}

// recordingMetrics counts metric events
type recordingMetrics struct {
	mu          sync.Mutex
	enqueued    map[string]int
	finished    map[domain.JobStatus]int
	storeErrors map[string]int
	cycles      int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		enqueued:    make(map[string]int),
		finished:    make(map[domain.JobStatus]int),
		storeErrors: make(map[string]int),
	}
}

func (m *recordingMetrics) JobEnqueued(jobType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued[jobType]++
}

func (m *recordingMetrics) JobFinished(_ string, status domain.JobStatus, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[status]++
}

func (m *recordingMetrics) StoreError(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeErrors[op]++
}

func (m *recordingMetrics) PollCycle(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
}

func (m *recordingMetrics) storeErrorCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storeErrors[op]
}

func (m *recordingMetrics) finishedCount(status domain.JobStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished[status]
}

// fakeAcknowledger records acks and nacks of deliveries
type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) counts() (acked, nacked int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acked), len(a.nacked)
}

// fakeBroker captures published bodies and hands out a delivery channel
type fakeBroker struct {
	mu         sync.Mutex
	published  [][]byte
	publishErr error
	consumeErr error
	deliveries chan amqp.Delivery
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{deliveries: make(chan amqp.Delivery, 8)}
}

func (b *fakeBroker) Publish(_ context.Context, body []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, body)
	return nil
}

func (b *fakeBroker) Consume(string) (<-chan amqp.Delivery, error) {
	if b.consumeErr != nil {
		return nil, b.consumeErr
	}
	return b.deliveries, nil
}

// failingNotifier always fails to notify and never wakes the engine
type failingNotifier struct {
	err error
}

func (n failingNotifier) Notify(context.Context, domain.Job) error { return n.err }
func (n failingNotifier) Wake() <-chan struct{}                   { return nil }
