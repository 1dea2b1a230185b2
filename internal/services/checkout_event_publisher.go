package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/onlinebus/booking-gateway/internal/config"
	"github.com/onlinebus/booking-gateway/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// CheckoutEvent is the message streamed for every checkout transition
type CheckoutEvent struct {
	CheckoutID  string                  `json:"checkoutId"`
	TabID       string                  `json:"tabId"`
	Event       models.PaymentEventType `json:"event"`
	FromState   models.CheckoutState    `json:"fromState,omitempty"`
	State       models.CheckoutState    `json:"state"`
	OrderID     string                  `json:"orderId,omitempty"`
	PaymentID   string                  `json:"paymentId,omitempty"`
	AmountMinor int64                   `json:"amountMinor,omitempty"`
	SeatNumbers []string                `json:"seatNumbers,omitempty"`
	Error       string                  `json:"error,omitempty"`
	OccurredAt  time.Time               `json:"occurredAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	eventQueueSize    = 256
	eventWriteTimeout = 5 * time.Second
)

// CheckoutEventPublisher streams checkout transitions to Kafka.
// Publish only queues the event; a background writer delivers it, so a slow
// or unreachable broker never holds up a checkout. Events are dropped when
// the queue is full. A publisher built with Kafka disabled drops events.
type CheckoutEventPublisher struct {
	writer messageWriter
	logger *logrus.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan CheckoutEvent
	done   chan struct{}
}

// NewCheckoutEventPublisher creates the publisher from the Kafka config section
func NewCheckoutEventPublisher(cfg config.KafkaConfig, logger *logrus.Logger) *CheckoutEventPublisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return &CheckoutEventPublisher{logger: logger}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: eventWriteTimeout,
		MaxAttempts:  3,
	}
	return newCheckoutEventPublisher(writer, logger)
}

func newCheckoutEventPublisher(writer messageWriter, logger *logrus.Logger) *CheckoutEventPublisher {
	p := &CheckoutEventPublisher{
		writer: writer,
		logger: logger,
		queue:  make(chan CheckoutEvent, eventQueueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Enabled reports whether events reach a broker
func (p *CheckoutEventPublisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// Publish queues one event. It does not wait for the broker.
func (p *CheckoutEventPublisher) Publish(_ context.Context, event CheckoutEvent) error {
	if !p.Enabled() {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- event:
		return nil
	default:
		return fmt.Errorf("checkout event queue full, dropped %s for %s", event.Event, event.CheckoutID)
	}
}

// run delivers queued events keyed by checkout id so a checkout's events stay ordered
func (p *CheckoutEventPublisher) run() {
	defer close(p.done)
	for event := range p.queue {
		if err := p.write(event); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"checkout_id": event.CheckoutID,
				"event":       event.Event,
			}).Warn("Failed to publish checkout event")
			continue
		}
		p.logger.WithFields(logrus.Fields{
			"checkout_id": event.CheckoutID,
			"event":       event.Event,
			"state":       event.State,
		}).Debug("Checkout event published")
	}
}

func (p *CheckoutEventPublisher) write(event CheckoutEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode checkout event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventWriteTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CheckoutID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish checkout event: %w", err)
	}
	return nil
}

// Close delivers what is queued, then closes the writer
func (p *CheckoutEventPublisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}

// EnsureTopic creates the checkout topic when the broker does not have it yet
func EnsureTopic(ctx context.Context, cfg config.KafkaConfig, logger *logrus.Logger) error {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return nil
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.Topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create topic %s: %w", cfg.Topic, err)
	}

	logger.WithField("topic", cfg.Topic).Info("Kafka topic ready")
	return nil
}

func newCheckoutEvent(checkout *models.Checkout, from models.CheckoutState, event models.PaymentEventType) CheckoutEvent {
	e := CheckoutEvent{
		CheckoutID:  checkout.ID.String(),
		TabID:       checkout.TabID,
		Event:       event,
		FromState:   from,
		State:       checkout.State,
		OrderID:     checkout.OrderID(),
		PaymentID:   checkout.PaymentID,
		SeatNumbers: checkout.FailedSeats,
		Error:       checkout.Reason,
		OccurredAt:  time.Now().UTC(),
	}
	if checkout.Order != nil {
		e.AmountMinor = checkout.Order.AmountMinorUnits
	}
	return e
}
