// Package notify renders monitor results as Telegram-HTML messages and
// delivers them through the Telegram Bot API.
//
// Composition is pure (compose.go); delivery is asynchronous through a
// bounded worker pool (telegram.go). A failed delivery is logged and never
// blocks the check that produced it.
package notify

import "context"

// Kind identifies what a message is about, for logging and metrics.
type Kind string

const (
	KindNewEmployees   Kind = "new_employees"
	KindDailyDigest    Kind = "daily_digest"
	KindDataRefresh    Kind = "data_refresh"
	KindImmediateAlert Kind = "immediate_alert"
	KindTest           Kind = "test"
)

// Message is one rendered notification ready for delivery.
type Message struct {
	Kind Kind
	Text string
}

// Sender is the interface for notification channels. Implementations own
// their async delivery and retry logic.
type Sender interface {
	// Name returns the sender's identifier (e.g., "telegram").
	Name() string

	// Send enqueues a message for delivery.
	Send(ctx context.Context, msg Message) error

	// Start begins any background workers. Non-blocking.
	Start(ctx context.Context)
}
