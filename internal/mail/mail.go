package mail

import (
	"context"
	"errors"
)

var (
	ErrNoRecipient = errors.New("no recipient provided")
	ErrNoSender    = errors.New("no sender provided")
	// ErrHeaderInjection is returned when a header value carries a line break.
	ErrHeaderInjection = errors.New("header value contains line break")
)

// Message is a plain-text email.
type Message struct {
	From    string // optional, falls back to the mailer default
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message once. Implementations do not retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
