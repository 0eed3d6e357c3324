// Package notify delivers account lifecycle messages off the request path.
package notify

import (
	"context"
	"time"
)

// Kind identifies which message a notification renders to
type Kind string

const (
	KindVerification      Kind = "verification"
	KindWelcome           Kind = "welcome"
	KindLogin             Kind = "login"
	KindSuspended         Kind = "suspended"
	KindPasswordReset     Kind = "password_reset"
	KindPasswordChanged   Kind = "password_changed"
	KindInactivityWarning Kind = "inactivity_warning"
	KindAccountDeleted    Kind = "account_deleted"
	KindSecurityAlert     Kind = "security_alert"
)

// Notification is one message to one recipient. Token carries the plaintext
// one-shot token for verification and reset links.
type Notification struct {
	Kind      Kind
	To        string
	Name      string
	Token     string
	ExpiresAt time.Time
	Details   map[string]string
}

// Sender delivers a single notification
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Enqueuer accepts notifications for asynchronous delivery
type Enqueuer interface {
	Enqueue(n Notification)
}
