// Package feedback tests for the toast emitter.
package feedback

import (
	"sync"
	"testing"
	"time"

	"github.com/yctsai/classlog/backend/internal/models"
	enginesync "github.com/yctsai/classlog/backend/internal/sync"
)

// recordingPublisher captures published messages and signals each arrival.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	arrived  chan struct{}
}

type publishedMessage struct {
	messageType string
	data        map[string]interface{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{arrived: make(chan struct{}, 16)}
}

func (p *recordingPublisher) Publish(messageType string, data map[string]interface{}) {
	p.mu.Lock()
	p.messages = append(p.messages, publishedMessage{messageType, data})
	p.mu.Unlock()
	p.arrived <- struct{}{}
}

func (p *recordingPublisher) snapshot() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.messages...)
}

func (p *recordingPublisher) waitFor(t *testing.T, count int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		p.mu.Lock()
		n := len(p.messages)
		p.mu.Unlock()
		if n >= count {
			return
		}
		select {
		case <-p.arrived:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, have %d", count, n)
		}
	}
}

func loggedEvent() enginesync.Event {
	return enginesync.Event{
		Type: enginesync.EventLogged,
		Record: &models.EventRecord{
			ID:          "ev-1",
			StudentName: "Mia Chen",
			Category:    "helpful",
		},
	}
}

func TestShowThenDismiss(t *testing.T) {
	pub := newRecordingPublisher()
	toaster := NewToaster(pub, 10*time.Millisecond)

	toaster.OnEngineEvent(loggedEvent())

	pub.waitFor(t, 2)
	msgs := pub.snapshot()

	if msgs[0].messageType != MessageShow {
		t.Errorf("first message = %s, want %s", msgs[0].messageType, MessageShow)
	}
	if msgs[0].data["label"] != "Mia Chen: helpful" {
		t.Errorf("label = %v", msgs[0].data["label"])
	}
	if msgs[1].messageType != MessageDismiss {
		t.Errorf("second message = %s, want %s", msgs[1].messageType, MessageDismiss)
	}
	if msgs[1].data["toast_id"] != "ev-1" {
		t.Errorf("dismiss toast_id = %v, want ev-1", msgs[1].data["toast_id"])
	}
}

func TestDeliveredStatusUpdate(t *testing.T) {
	pub := newRecordingPublisher()
	toaster := NewToaster(pub, time.Minute)

	toaster.OnEngineEvent(enginesync.Event{
		Type:   enginesync.EventDelivered,
		Record: &models.EventRecord{ID: "ev-2", DeliveredAt: 1700000000},
	})

	pub.waitFor(t, 1)
	msg := pub.snapshot()[0]
	if msg.messageType != MessageDelivered {
		t.Errorf("message = %s, want %s", msg.messageType, MessageDelivered)
	}
	if msg.data["event_id"] != "ev-2" {
		t.Errorf("event_id = %v", msg.data["event_id"])
	}
}

func TestReconcileSummary(t *testing.T) {
	pub := newRecordingPublisher()
	toaster := NewToaster(pub, time.Minute)

	toaster.OnEngineEvent(enginesync.Event{
		Type:   enginesync.EventReconcileCompleted,
		Result: &enginesync.ReconcileResult{Delivered: 3, Remaining: 0},
	})

	pub.waitFor(t, 1)
	msg := pub.snapshot()[0]
	if msg.messageType != MessageReconcile {
		t.Errorf("message = %s, want %s", msg.messageType, MessageReconcile)
	}
	if msg.data["delivered"] != 3 {
		t.Errorf("delivered = %v, want 3", msg.data["delivered"])
	}
}

func TestReconcileStartedIgnored(t *testing.T) {
	pub := newRecordingPublisher()
	toaster := NewToaster(pub, time.Minute)

	toaster.OnEngineEvent(enginesync.Event{Type: enginesync.EventReconcileStarted})

	if msgs := pub.snapshot(); len(msgs) != 0 {
		t.Errorf("reconcile.started should publish nothing, got %v", msgs)
	}
}

// panickyPublisher always panics.
type panickyPublisher struct{}

func (panickyPublisher) Publish(string, map[string]interface{}) {
	panic("surface gone")
}

func TestPublisherPanicContained(t *testing.T) {
	toaster := NewToaster(panickyPublisher{}, 5*time.Millisecond)

	// Must not panic, and the scheduled dismiss must not crash either.
	toaster.OnEngineEvent(loggedEvent())
	time.Sleep(20 * time.Millisecond)
}

func TestDefaultDuration(t *testing.T) {
	toaster := NewToaster(newRecordingPublisher(), 0)
	if toaster.duration != DefaultDuration {
		t.Errorf("duration = %v, want %v", toaster.duration, DefaultDuration)
	}
}
