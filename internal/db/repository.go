// Package db provides the durable event store for classlog.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/yctsai/classlog/backend/internal/errors"
	"github.com/yctsai/classlog/backend/internal/models"
)

// Repository provides durable, append-ordered storage for event records.
// Every mutating call persists before returning, so a crash immediately
// after a successful call never loses the update.
type Repository struct {
	db *sql.DB

	// Prepared statement cache for frequently used queries.
	// Statements are prepared on first use and cached for reuse.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// AppendEvent inserts a new record at the end of the append-ordered log.
// On failure the event is NOT logged and the caller must not show success
// feedback; the returned error carries ErrPersistence.
func (r *Repository) AppendEvent(rec *models.EventRecord) error {
	query := `
	INSERT INTO events (id, student_id, student_name, kind, category, note, logged_at, delivered, delivered_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err := r.db.Exec(query, rec.ID, rec.StudentID, rec.StudentName,
		rec.Kind, rec.Category, rec.Note, rec.LoggedAt, rec.Delivered)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "failed to append event", err)
	}
	return nil
}

// GetEvent retrieves an event record by id.
// Returns sql.ErrNoRows when the id is absent.
func (r *Repository) GetEvent(id string) (*models.EventRecord, error) {
	query := `
	SELECT id, student_id, student_name, kind, category, note, logged_at, delivered, delivered_at
	FROM events WHERE id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	return scanEvent(stmt.QueryRow(id))
}

// ListEvents returns all event records in append order, oldest first.
func (r *Repository) ListEvents() ([]*models.EventRecord, error) {
	query := `
	SELECT id, student_id, student_name, kind, category, note, logged_at, delivered, delivered_at
	FROM events ORDER BY rowid ASC
	`
	return r.queryEvents(query)
}

// ListUndelivered returns all undelivered records in append order, oldest
// first. Reconciliation must process records in this order.
func (r *Repository) ListUndelivered() ([]*models.EventRecord, error) {
	query := `
	SELECT id, student_id, student_name, kind, category, note, logged_at, delivered, delivered_at
	FROM events WHERE delivered = 0 ORDER BY rowid ASC
	`
	return r.queryEvents(query)
}

// RecentEvents returns the n most recently logged records, newest first.
func (r *Repository) RecentEvents(n int) ([]*models.EventRecord, error) {
	query := `
	SELECT id, student_id, student_name, kind, category, note, logged_at, delivered, delivered_at
	FROM events ORDER BY rowid DESC LIMIT ?
	`
	return r.queryEvents(query, n)
}

// ListByStudent returns the n most recent records for one student, newest first.
func (r *Repository) ListByStudent(studentID string, n int) ([]*models.EventRecord, error) {
	query := `
	SELECT id, student_id, student_name, kind, category, note, logged_at, delivered, delivered_at
	FROM events WHERE student_id = ? ORDER BY rowid DESC LIMIT ?
	`
	return r.queryEvents(query, studentID, n)
}

// MarkDelivered sets delivered for the record with the given id and persists
// the change. Idempotent: a no-op (not an error) if the id is absent or the
// record is already delivered. The transition is monotonic and never reverses.
func (r *Repository) MarkDelivered(id string) error {
	query := `UPDATE events SET delivered = 1, delivered_at = ? WHERE id = ? AND delivered = 0`
	if _, err := r.db.Exec(query, time.Now().Unix(), id); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, "failed to mark event delivered", err)
	}
	return nil
}

// CountUndelivered returns the number of records still pending delivery.
func (r *Repository) CountUndelivered() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM events WHERE delivered = 0").Scan(&count)
	return count, err
}

// queryEvents runs a SELECT over the events table via the statement cache.
func (r *Repository) queryEvents(query string, args ...interface{}) ([]*models.EventRecord, error) {
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.EventRecord, error) {
	var rec models.EventRecord
	var deliveredAt sql.NullInt64
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.StudentName, &rec.Kind,
		&rec.Category, &rec.Note, &rec.LoggedAt, &rec.Delivered, &deliveredAt)
	if err != nil {
		return nil, err
	}
	if deliveredAt.Valid {
		rec.DeliveredAt = deliveredAt.Int64
	}
	return &rec, nil
}
