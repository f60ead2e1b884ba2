// Package notification provides alert delivery to external channels
// (Telegram, webhooks) for risk events.
package notification

import (
	"context"
	"log"
	"sync"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level    AlertLevel `json:"level"`
	Title    string     `json:"title"`
	Message  string     `json:"message"`
	Contract string     `json:"contract,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s %s: %s", alert.Level, alert.Contract, alert.Title, alert.Message)
	return nil
}

// Throttled fans an alert out to multiple backends while suppressing
// repeats: the same (contract, title) pair is delivered at most once per
// minInterval. A stop-loss breach fires on every poll cycle until the desk
// reacts; without throttling that is one Telegram message per second.
type Throttled struct {
	backends    []Notifier
	minInterval time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewThrottled wraps the given backends with per-alert rate limiting.
func NewThrottled(minInterval time.Duration, backends ...Notifier) *Throttled {
	return &Throttled{
		backends:    backends,
		minInterval: minInterval,
		lastSent:    make(map[string]time.Time),
	}
}

// Send delivers the alert to every backend unless an identical alert was
// sent within minInterval. Backend errors are logged, not returned: alert
// delivery must never stall the monitor loop.
func (t *Throttled) Send(ctx context.Context, alert Alert) error {
	key := alert.Contract + "|" + alert.Title

	t.mu.Lock()
	if last, ok := t.lastSent[key]; ok && time.Since(last) < t.minInterval {
		t.mu.Unlock()
		return nil
	}
	t.lastSent[key] = time.Now()
	t.mu.Unlock()

	for _, b := range t.backends {
		if err := b.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend error: %v", err)
		}
	}
	return nil
}
