// Package notify delivers composed reports to recipients. Recipients are
// opaque strings resolved by the channel implementation.
package notify

import "github.com/cockroachdb/errors"

// ErrDelivery marks a per-recipient delivery failure. Failures are collected
// per recipient and never block delivery to the remaining recipients.
var ErrDelivery = errors.New("delivery failed")

// Channel sends one formatted message to one recipient.
type Channel interface {
	Deliver(recipient, text string) error
}
