package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cuongbtq/review-queue/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker is the subset of the RabbitMQ client used for wake-up messages
type Broker interface {
	Publish(ctx context.Context, body []byte, contentType string) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// jobMessage is published for every enqueued job. It only carries identifiers;
// the job itself is always read back from the store.
type jobMessage struct {
	JobID   string `json:"job_id"`
	JobType string `json:"job_type,omitempty"`
}

// RabbitNotifier wakes engines in other processes through a RabbitMQ queue
type RabbitNotifier struct {
	broker      Broker
	consumerTag string
	logger      *slog.Logger
	wake        wakeSignal

	wg sync.WaitGroup
}

// NewRabbitNotifier creates a new RabbitMQ backed notifier
func NewRabbitNotifier(broker Broker, consumerTag string, logger *slog.Logger) *RabbitNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RabbitNotifier{
		broker:      broker,
		consumerTag: consumerTag,
		logger:      logger,
		wake:        newWakeSignal(),
	}
}

// Notify publishes the job id
func (n *RabbitNotifier) Notify(ctx context.Context, job domain.Job) error {
	body, err := json.Marshal(jobMessage{JobID: job.ID, JobType: job.Type})
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	if err := n.broker.Publish(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish job message: %w", err)
	}

	return nil
}

// Wake returns the wake-up channel
func (n *RabbitNotifier) Wake() <-chan struct{} {
	return n.wake
}

// Listen starts consuming job messages until ctx is done or the delivery channel closes
func (n *RabbitNotifier) Listen(ctx context.Context) error {
	deliveries, err := n.broker.Consume(n.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.dispatch(ctx, deliveries)
	}()

	n.logger.Info("Listening for job messages",
		slog.String("consumer_tag", n.consumerTag),
	)

	return nil
}

// Wait blocks until the listener goroutine has exited
func (n *RabbitNotifier) Wait() {
	n.wg.Wait()
}

func (n *RabbitNotifier) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Job message listener stopped - context canceled")
			return
		case msg, ok := <-deliveries:
			if !ok {
				n.logger.Warn("Job message channel closed")
				return
			}
			n.handleDelivery(msg)
		}
	}
}

func (n *RabbitNotifier) handleDelivery(msg amqp.Delivery) {
	var m jobMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		n.logger.Error("Failed to unmarshal job message",
			slog.String("error", err.Error()),
			slog.String("body", string(msg.Body)),
		)
		n.reject(msg)
		return
	}

	if _, err := uuid.Parse(m.JobID); err != nil {
		n.logger.Error("Job message has invalid job id",
			slog.String("job_id", m.JobID),
		)
		n.reject(msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		n.logger.Error("Failed to ack job message",
			slog.String("job_id", m.JobID),
			slog.String("error", err.Error()),
		)
	}

	n.logger.Debug("Job message received",
		slog.String("job_id", m.JobID),
		slog.String("job_type", m.JobType),
	)
	n.wake.signal()
}

// reject drops a message that can never be handled
func (n *RabbitNotifier) reject(msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		n.logger.Error("Failed to nack job message",
			slog.String("error", err.Error()),
		)
	}
}
