package notification

import (
	"context"
	"testing"
	"time"
)

type captureNotifier struct {
	sent []Alert
}

func (c *captureNotifier) Send(ctx context.Context, alert Alert) error {
	c.sent = append(c.sent, alert)
	return nil
}

func TestThrottledSuppressesRepeats(t *testing.T) {
	cap := &captureNotifier{}
	n := NewThrottled(time.Minute, cap)
	ctx := context.Background()

	a := Alert{Level: AlertCritical, Title: "stop loss breached", Contract: "ZN Sep26"}
	n.Send(ctx, a)
	n.Send(ctx, a)
	n.Send(ctx, a)

	if len(cap.sent) != 1 {
		t.Fatalf("sent %d alerts, want 1", len(cap.sent))
	}

	// A different title for the same contract is not suppressed.
	n.Send(ctx, Alert{Level: AlertWarning, Title: "approaching stop loss", Contract: "ZN Sep26"})
	if len(cap.sent) != 2 {
		t.Fatalf("sent %d alerts, want 2", len(cap.sent))
	}

	// Same title on another contract is independent.
	n.Send(ctx, Alert{Level: AlertCritical, Title: "stop loss breached", Contract: "ZB Sep26"})
	if len(cap.sent) != 3 {
		t.Fatalf("sent %d alerts, want 3", len(cap.sent))
	}
}

func TestThrottledExpiry(t *testing.T) {
	cap := &captureNotifier{}
	n := NewThrottled(10*time.Millisecond, cap)
	ctx := context.Background()

	a := Alert{Level: AlertWarning, Title: "approaching stop loss", Contract: "ZN Sep26"}
	n.Send(ctx, a)
	time.Sleep(15 * time.Millisecond)
	n.Send(ctx, a)

	if len(cap.sent) != 2 {
		t.Fatalf("sent %d alerts, want 2 after interval expiry", len(cap.sent))
	}
}
