package amqp

import (
	"context"
	"strings"
	"time"

	applog "finance-tracker/internal/log"
	"finance-tracker/internal/mail"
)

// Publisher is the publishing half of Client.
type Publisher interface {
	PublishMail(ctx context.Context, msg mail.Message) error
}

// MailQueue implements mail.Queue by publishing to the broker. Publishing
// runs in the background detached from the caller's cancellation; a
// failure is logged and the message is lost.
type MailQueue struct {
	pub     Publisher
	logger  *applog.Logger
	timeout time.Duration
}

// NewMailQueue wraps pub.
func NewMailQueue(pub Publisher, logger *applog.Logger) *MailQueue {
	return &MailQueue{pub: pub, logger: logger.WithComponent("mail"), timeout: publishTimeout}
}

// Enqueue publishes msg without waiting.
func (q *MailQueue) Enqueue(ctx context.Context, msg mail.Message) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, q.timeout)
		defer cancel()
		if err := q.pub.PublishMail(ctx, msg); err != nil {
			q.logger.ErrorContext(ctx, "Failed to queue mail",
				"error", err,
				"to", strings.Join(msg.To, ","),
				"subject", msg.Subject)
		}
	}()
}
