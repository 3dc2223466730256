package queue

import (
	"context"

	"github.com/cuongbtq/review-queue/internal/domain"
)

// Notifier shortens the wait between poll cycles when new work is enqueued.
// Wake-ups never change which jobs a cycle dispatches or in what order.
type Notifier interface {
	// Notify is called by Enqueue after the job has been persisted
	Notify(ctx context.Context, job domain.Job) error

	// Wake delivers a value whenever the engine should poll early
	Wake() <-chan struct{}
}

// wakeSignal coalesces any number of signals into at most one pending wake-up
type wakeSignal chan struct{}

func newWakeSignal() wakeSignal {
	return make(wakeSignal, 1)
}

func (w wakeSignal) signal() {
	select {
	case w <- struct{}{}:
	default:
	}
}

// ChannelNotifier wakes an engine running in the same process
type ChannelNotifier struct {
	wake wakeSignal
}

// NewChannelNotifier creates a new in-process notifier
func NewChannelNotifier() *ChannelNotifier {
	return &ChannelNotifier{wake: newWakeSignal()}
}

// Notify signals the engine without blocking
func (n *ChannelNotifier) Notify(_ context.Context, _ domain.Job) error {
	n.wake.signal()
	return nil
}

// Wake returns the wake-up channel
func (n *ChannelNotifier) Wake() <-chan struct{} {
	return n.wake
}
