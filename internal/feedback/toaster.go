// Package feedback produces ephemeral user-visible confirmation of locally
// accepted events. It is purely cosmetic: nothing here carries a durability
// guarantee, and a failure never affects the logging contract.
package feedback

import (
	"fmt"
	"time"

	"github.com/yctsai/classlog/backend/internal/logging"
	enginesync "github.com/yctsai/classlog/backend/internal/sync"
)

// Message types pushed to the UI shell.
const (
	MessageShow      = "feedback.show"
	MessageDismiss   = "feedback.dismiss"
	MessageDelivered = "record.delivered"
	MessageReconcile = "sync.reconciled"
)

// DefaultDuration is how long a toast stays visible.
const DefaultDuration = 2 * time.Second

// Publisher pushes a message to whatever rendering surface is attached.
type Publisher interface {
	Publish(messageType string, data map[string]interface{})
}

// Toaster turns engine events into transient acknowledgments: a show message
// when an event is locally accepted, a dismiss message a fixed interval
// later, and per-record status updates as deliveries are acknowledged.
type Toaster struct {
	publisher Publisher
	duration  time.Duration
}

// NewToaster creates a Toaster over the given publisher.
func NewToaster(publisher Publisher, duration time.Duration) *Toaster {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Toaster{publisher: publisher, duration: duration}
}

// OnEngineEvent implements the engine's EventHandler.
func (t *Toaster) OnEngineEvent(ev enginesync.Event) {
	switch ev.Type {
	case enginesync.EventLogged:
		t.show(ev.Record.ID.String(), ev.Record.Label())
	case enginesync.EventDelivered:
		t.publish(MessageDelivered, map[string]interface{}{
			"event_id":     ev.Record.ID.String(),
			"delivered_at": ev.Record.DeliveredAt,
		})
	case enginesync.EventReconcileCompleted, enginesync.EventReconcileFailed:
		t.publish(MessageReconcile, map[string]interface{}{
			"delivered": ev.Result.Delivered,
			"remaining": ev.Result.Remaining,
			"error":     ev.Result.Error,
		})
	}
}

// show displays a toast and schedules its dismissal.
func (t *Toaster) show(toastID, label string) {
	t.publish(MessageShow, map[string]interface{}{
		"toast_id": toastID,
		"label":    label,
	})

	time.AfterFunc(t.duration, func() {
		t.publish(MessageDismiss, map[string]interface{}{
			"toast_id": toastID,
		})
	})
}

// publish forwards to the publisher, containing any panic: a broken
// rendering surface must never take the core down.
func (t *Toaster) publish(messageType string, data map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Feedback publisher panicked", map[string]interface{}{
				"message_type": messageType,
				"panic":        fmt.Sprint(r),
			})
		}
	}()

	t.publisher.Publish(messageType, data)
}
