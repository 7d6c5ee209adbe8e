// Package mailer provides the external email-send capability consumed by
// the queue processor.
package mailer

import "context"

// Message is one outbound email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Sender delivers a single email. A false return without an error means the
// provider rejected the message; an error means the attempt itself failed.
// Either outcome marks the queue item failed (or retried).
type Sender interface {
	Send(ctx context.Context, msg Message) (bool, error)
}
