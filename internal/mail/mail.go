// Package mail delivers outbound notification email.
//
// Delivery is best-effort: a Queue accepts a message and returns at once,
// the caller never learns whether it arrived, and failures are only logged.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
)

// Message is a plain-text email.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Validate checks that the message has at least one well-formed recipient.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("mail: no recipients")
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("mail: invalid recipient %q: %w", to, err)
		}
	}
	return nil
}

// ToJSON encodes the message for queue transport.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes a queued message.
func MessageFromJSON(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode mail message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Queue accepts messages for asynchronous, best-effort delivery. Enqueue
// must not block on delivery and reports no outcome to the caller.
type Queue interface {
	Enqueue(ctx context.Context, msg Message)
}

// PasswordReset builds the reset-link email.
func PasswordReset(to, link string) Message {
	var b strings.Builder
	b.WriteString("Someone asked to reset the password for this account.\n\n")
	b.WriteString("Click here to reset your password: ")
	b.WriteString(link)
	b.WriteString("\n\nThe link expires in one hour. If you did not ask for this, ignore this email.\n")
	return Message{
		To:      []string{to},
		Subject: "Password Reset Request",
		Body:    b.String(),
	}
}
