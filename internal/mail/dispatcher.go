package mail

import (
	"context"
	"strings"
	"time"

	applog "finance-tracker/internal/log"
)

// Dispatcher is an in-process Queue: a buffered channel drained by a single
// background worker. There is no retry and no delivery guarantee.
type Dispatcher struct {
	sender  Sender
	jobs    chan Message
	logger  *applog.Logger
	timeout time.Duration
}

// NewDispatcher creates a Dispatcher holding up to buffer pending messages.
func NewDispatcher(sender Sender, buffer int, logger *applog.Logger) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	return &Dispatcher{
		sender:  sender,
		jobs:    make(chan Message, buffer),
		logger:  logger.WithComponent("mail"),
		timeout: 30 * time.Second,
	}
}

// Enqueue hands msg to the worker. When the buffer is full the message is
// dropped and logged.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) {
	select {
	case d.jobs <- msg:
	default:
		d.logger.ErrorContext(ctx, "Mail queue full, dropping message",
			"to", strings.Join(msg.To, ","),
			"subject", msg.Subject)
	}
}

// Run delivers queued messages until ctx is done, then flushes whatever is
// already buffered.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Mail dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.drain()
			d.logger.Info("Mail dispatcher stopped")
			return nil
		case msg := <-d.jobs:
			d.deliver(msg)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case msg := <-d.jobs:
			d.deliver(msg)
		default:
			return
		}
	}
}

// deliver runs detached from any request context; failures are swallowed.
func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("Mail delivery failed",
			"error", err,
			"to", strings.Join(msg.To, ","),
			"subject", msg.Subject)
		return
	}
	d.logger.Info("Mail delivered", "to", strings.Join(msg.To, ","), "subject", msg.Subject)
}
