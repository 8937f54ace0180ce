// Package sync provides the local event queue and synchronization engine.
//
// The engine owns the durable log of user-generated events: every logged
// event is persisted locally before any network attempt, delivered
// opportunistically when the device is online, and reconciled automatically
// once connectivity returns. A record's delivered flag moves false to true
// exactly once and never reverses.
package sync

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/yctsai/classlog/backend/internal/connectivity"
	apperrors "github.com/yctsai/classlog/backend/internal/errors"
	"github.com/yctsai/classlog/backend/internal/logging"
	"github.com/yctsai/classlog/backend/internal/models"
	"github.com/yctsai/classlog/backend/internal/submit"
	"github.com/yctsai/classlog/backend/internal/telemetry"
	"github.com/yctsai/classlog/backend/internal/uuid"
)

// Status represents the engine's current state.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusReconciling Status = "reconciling"
	StatusFailed      Status = "failed"
)

// reconcileTimeout bounds a reconciliation pass triggered by a
// connectivity transition.
const reconcileTimeout = 2 * time.Minute

// EventStore is the durable event store consumed by the engine.
type EventStore interface {
	AppendEvent(rec *models.EventRecord) error
	GetEvent(id string) (*models.EventRecord, error)
	ListUndelivered() ([]*models.EventRecord, error)
	RecentEvents(n int) ([]*models.EventRecord, error)
	ListByStudent(studentID string, n int) ([]*models.EventRecord, error)
	MarkDelivered(id string) error
	CountUndelivered() (int, error)
}

// Submitter attempts to deliver one record to the remote authority.
type Submitter interface {
	Submit(ctx context.Context, rec *models.EventRecord) error
}

// EventType identifies an engine notification.
type EventType string

const (
	EventLogged             EventType = "event.logged"
	EventDelivered          EventType = "event.delivered"
	EventReconcileStarted   EventType = "reconcile.started"
	EventReconcileCompleted EventType = "reconcile.completed"
	EventReconcileFailed    EventType = "reconcile.failed"
)

// Event is a notification emitted by the engine for the UI surface.
type Event struct {
	Type   EventType
	Record *models.EventRecord
	Result *ReconcileResult
}

// EventHandler receives engine events. Handlers are cosmetic: a failure
// inside a handler never affects the logging contract.
type EventHandler interface {
	OnEngineEvent(event Event)
}

// ReconcileResult represents the outcome of one reconciliation pass.
type ReconcileResult struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempted int           `json:"attempted"`
	Delivered int           `json:"delivered"`
	Remaining int           `json:"remaining"`
	FailedID  string        `json:"failed_id,omitempty"` // record that stopped the pass
	Transient bool          `json:"transient,omitempty"` // classification of that failure
	Error     string        `json:"error,omitempty"`
}

// Engine orchestrates the durable event store, the submitter and the
// connectivity monitor. All status transitions funnel through the engine;
// it guarantees at most one outstanding submission attempt per record.
type Engine struct {
	store     EventStore
	submitter Submitter
	monitor   *connectivity.Monitor
	handler   EventHandler

	mu            sync.Mutex
	status        Status
	pending       int
	lastReconcile *time.Time
	lastErr       error

	// submitMu serializes submission attempts so an immediate attempt from
	// LogEvent and a reconciliation step never overlap.
	submitMu sync.Mutex
}

// NewEngine creates an Engine with injected dependencies.
func NewEngine(store EventStore, submitter Submitter, monitor *connectivity.Monitor) *Engine {
	return &Engine{
		store:     store,
		submitter: submitter,
		monitor:   monitor,
		status:    StatusIdle,
	}
}

// SetEventHandler sets the handler receiving engine events.
func (e *Engine) SetEventHandler(h EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

// Init loads the persisted pending count and subscribes the engine to
// connectivity transitions. Each offline-to-online transition triggers
// exactly one reconciliation pass.
func (e *Engine) Init() error {
	count, err := e.store.CountUndelivered()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to count pending events", err)
	}

	e.mu.Lock()
	e.pending = count
	e.mu.Unlock()

	e.monitor.OnOnline(func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()
		if _, err := e.Reconcile(ctx); err != nil && !apperrors.Is(err, apperrors.ErrReconcileInProgress) {
			logging.ErrorWithCode("Reconciliation after reconnect failed",
				string(apperrors.CodeOf(err)), err, nil)
		}
	})

	return nil
}

// Status returns the engine's current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// PendingCount returns the number of records awaiting delivery.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// LastReconcile returns the end time of the last completed pass.
func (e *Engine) LastReconcile() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReconcile
}

// LastError returns the error that stopped the last pass, if any.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Online reports the monitor's current best-known reachability.
func (e *Engine) Online() bool {
	return e.monitor.IsOnline()
}

// LogEvent constructs a record with a fresh id and current timestamp,
// persists it, emits user feedback, and, if the device is online, performs
// exactly one immediate delivery attempt. A persistence failure means the
// event was NOT logged: the error is returned and no feedback is emitted.
// Delivery failures are absorbed; the record simply stays pending.
func (e *Engine) LogEvent(ctx context.Context, studentID, studentName string, kind models.EventKind, category, note string) (*models.EventRecord, error) {
	if studentID == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "student id is required")
	}
	if studentName == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "student name is required")
	}
	if !kind.Valid() {
		return nil, apperrors.New(apperrors.ErrValidation, fmt.Sprintf("unknown event kind %q", kind))
	}
	if category == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "category is required")
	}

	rec := &models.EventRecord{
		ID:          uuid.NewRecordID(),
		StudentID:   studentID,
		StudentName: studentName,
		Kind:        kind,
		Category:    category,
		Note:        note,
		LoggedAt:    time.Now().Unix(),
	}

	if err := e.store.AppendEvent(rec); err != nil {
		logging.ErrorWithCode("Failed to persist event", string(apperrors.ErrPersistence), err,
			map[string]interface{}{"student_id": studentID})
		return nil, err
	}

	e.mu.Lock()
	e.pending++
	e.mu.Unlock()

	// Feedback goes out before any network attempt: local durability is the
	// completion contract the user perceives.
	e.emit(Event{Type: EventLogged, Record: rec})
	telemetry.TrackEvent("event_logged", nil)

	if e.monitor.IsOnline() {
		e.trySubmit(ctx, rec)
	}

	return rec, nil
}

// Recent returns a read-only view of the store, most recent first.
func (e *Engine) Recent(n int) ([]*models.EventRecord, error) {
	if n <= 0 {
		n = 20
	}
	return e.store.RecentEvents(n)
}

// RecentByStudent returns one student's most recent records, newest first.
func (e *Engine) RecentByStudent(studentID string, n int) ([]*models.EventRecord, error) {
	if n <= 0 {
		n = 20
	}
	return e.store.ListByStudent(studentID, n)
}

// Reconcile performs one ordered pass over all undelivered records, oldest
// first. Submissions are strictly sequential; the first failure stops the
// pass, leaving that record and all later ones pending until the next
// connectivity transition or manual retry. Passes never run concurrently:
// a pass started while another is in flight fails with
// ErrReconcileInProgress.
func (e *Engine) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	e.mu.Lock()
	if e.status == StatusReconciling {
		e.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrReconcileInProgress, "reconciliation already in progress")
	}
	e.status = StatusReconciling
	e.lastErr = nil
	e.mu.Unlock()

	result := &ReconcileResult{StartTime: time.Now()}
	e.emit(Event{Type: EventReconcileStarted})

	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)

		e.mu.Lock()
		if e.lastErr != nil {
			e.status = StatusFailed
			result.Error = e.lastErr.Error()
		} else {
			e.status = StatusIdle
			end := result.EndTime
			e.lastReconcile = &end
		}
		e.mu.Unlock()

		if result.Error != "" {
			e.emit(Event{Type: EventReconcileFailed, Result: result})
		} else {
			e.emit(Event{Type: EventReconcileCompleted, Result: result})
		}

		logging.Info("Reconciliation pass finished", map[string]interface{}{
			"attempted": result.Attempted,
			"delivered": result.Delivered,
			"remaining": result.Remaining,
			"error":     result.Error,
		})
	}()

	pending, err := e.store.ListUndelivered()
	if err != nil {
		wrapped := apperrors.Wrap(apperrors.ErrDatabase, "failed to read pending events", err)
		e.setLastErr(wrapped)
		return result, wrapped
	}

	for _, rec := range pending {
		select {
		case <-ctx.Done():
			e.setLastErr(ctx.Err())
			result.Remaining = len(pending) - result.Delivered
			return result, ctx.Err()
		default:
		}

		delivered, err := e.submitOne(ctx, rec)
		if err != nil {
			// Stop on first failure: avoids hammering a remote authority
			// that is still degraded. Transient and permanent failures are
			// treated alike; both leave the record pending.
			result.Attempted++
			result.FailedID = rec.ID.String()
			result.Transient = submit.IsTransient(err)
			e.setLastErr(err)
			break
		}
		if delivered {
			result.Attempted++
			result.Delivered++
		}
	}

	result.Remaining = len(pending) - result.Delivered
	return result, nil
}

// setLastErr records the most recent failure.
func (e *Engine) setLastErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

// trySubmit performs at most one delivery attempt for a freshly logged
// record. Any failure is absorbed; the record stays pending for the next
// reconciliation pass. Delegating to submitOne keeps the status re-read
// under the submission lock, so a reconciliation pass that delivered the
// record first costs no second network call.
func (e *Engine) trySubmit(ctx context.Context, rec *models.EventRecord) {
	if _, err := e.submitOne(ctx, rec); err != nil {
		logging.Debug("Immediate delivery deferred", map[string]interface{}{
			"event_id":  rec.ID.String(),
			"transient": submit.IsTransient(err),
			"error":     err.Error(),
		})
	}
}

// submitOne is one step of a reconciliation pass. It re-reads the record's
// status under the submission lock so a record already delivered by an
// immediate attempt produces no additional network call.
func (e *Engine) submitOne(ctx context.Context, rec *models.EventRecord) (bool, error) {
	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	cur, err := e.store.GetEvent(rec.ID.String())
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.ErrDatabase, "failed to read event status", err)
	}
	if cur.Delivered {
		return false, nil
	}

	if err := e.submitter.Submit(ctx, rec); err != nil {
		return false, err
	}

	e.finishDelivery(rec)
	return true, nil
}

// finishDelivery records a successful acknowledgment. Called with submitMu held.
func (e *Engine) finishDelivery(rec *models.EventRecord) {
	if err := e.store.MarkDelivered(rec.ID.String()); err != nil {
		// The server has the event but the local flag is still pending, so
		// the record will be resubmitted on a later pass. The remote side
		// deduplicates on event_id.
		logging.ErrorWithCode("Failed to persist delivered status",
			string(apperrors.ErrPersistence), err,
			map[string]interface{}{"event_id": rec.ID.String()})
		return
	}

	rec.Delivered = true
	rec.DeliveredAt = time.Now().Unix()

	e.mu.Lock()
	if e.pending > 0 {
		e.pending--
	}
	e.mu.Unlock()

	e.emit(Event{Type: EventDelivered, Record: rec})
}

// emit dispatches an engine event to the handler, containing any panic so a
// rendering failure never affects the logging contract.
func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()
	if h == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Engine event handler panicked", map[string]interface{}{
				"event_type": string(ev.Type),
				"panic":      fmt.Sprint(r),
			})
		}
	}()

	h.OnEngineEvent(ev)
}
