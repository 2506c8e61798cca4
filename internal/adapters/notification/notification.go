// Package notification abstracts outbound customer messaging. Delivery
// mechanics live behind the Notifier interface; the service only decides
// what to send and reacts to failure with a retry hint.
package notification

import (
	"context"
	"log/slog"
)

// Kind distinguishes the message templates the service sends.
type Kind string

const (
	KindSlipCreated   Kind = "slip_created"
	KindOTP           Kind = "otp"
	KindReceipt       Kind = "receipt"
	KindSlipCancelled Kind = "slip_cancelled"
)

// Message is a channel-agnostic notification. Phone selects the destination;
// the concrete notifier picks SMS, push or anything else it supports.
type Message struct {
	Kind  Kind
	Phone string
	DRID  string
	Body  string
}

type Notifier interface {
	// Send dispatches the message. A returned error means the caller should
	// surface a retry hint to the customer; slip state never depends on it.
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the log instead of delivering them.
// Default for development and tests.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "notification dispatched",
		"kind", string(msg.Kind),
		"drid", msg.DRID,
		"phone_masked", maskPhone(msg.Phone),
	)
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(masked)-4:], phone[len(phone)-4:])
	return string(masked)
}
