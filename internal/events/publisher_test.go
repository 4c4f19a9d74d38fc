package events_test

import (
	"context"
	"testing"

	"github.com/chargewatch/chargewatch/internal/events"
)

// Lifecycle events are optional wiring; every call site must be able to hold a
// nil publisher.
func TestPublisher_NilReceiverIsSafe(t *testing.T) {
	var p *events.Publisher

	p.Publish(context.Background(), events.Event{
		Type:       events.TypeRegistered,
		Identifier: "act-1",
	})

	if err := p.Close(); err != nil {
		t.Errorf("expected nil Close error, got %v", err)
	}
}
