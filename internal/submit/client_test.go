// Package submit tests for the remote delivery client.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yctsai/classlog/backend/internal/models"
	"github.com/yctsai/classlog/backend/internal/uuid"
)

func testRecord() *models.EventRecord {
	return &models.EventRecord{
		ID:          uuid.NewRecordID(),
		StudentID:   "s1",
		StudentName: "Mia Chen",
		Kind:        models.KindPositive,
		Category:    "helpful",
		Note:        "helped clean up",
		LoggedAt:    time.Now().Unix(),
	}
}

func TestSubmitSuccess(t *testing.T) {
	var got eventPayload
	var gotAuth string
	requests := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/v1/events" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token")
	rec := testRecord()

	if err := client.Submit(context.Background(), rec); err != nil {
		t.Fatalf("Submit() = %v", err)
	}

	if requests != 1 {
		t.Errorf("requests = %d, want exactly 1", requests)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if got.EventID != rec.ID.String() {
		t.Errorf("event_id = %q, want %q (local id must reach the server for dedup)", got.EventID, rec.ID)
	}
	if got.Kind != "positive" || got.Category != "helpful" {
		t.Errorf("payload = %+v", got)
	}
}

func TestSubmitServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Submit(context.Background(), testRecord())
	if err == nil {
		t.Fatal("Submit() should fail on 500")
	}
	if !IsTransient(err) {
		t.Errorf("500 should classify as transient: %v", err)
	}

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("error is %T, want *DeliveryError", err)
	}
	if de.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", de.StatusCode)
	}
}

func TestSubmitValidationErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown category", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Submit(context.Background(), testRecord())
	if err == nil {
		t.Fatal("Submit() should fail on 422")
	}
	if IsTransient(err) {
		t.Errorf("422 should classify as permanent: %v", err)
	}
}

func TestSubmitThrottlingIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Submit(context.Background(), testRecord())
	if !IsTransient(err) {
		t.Errorf("429 should classify as transient: %v", err)
	}
}

func TestSubmitUnreachableIsTransient(t *testing.T) {
	// A closed server produces a transport error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	err := NewClient(srv.URL, "").Submit(context.Background(), testRecord())
	if err == nil {
		t.Fatal("Submit() should fail against an unreachable server")
	}
	if !IsTransient(err) {
		t.Errorf("transport failure should classify as transient: %v", err)
	}

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("error is %T, want *DeliveryError", err)
	}
	if de.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for a request that never arrived", de.StatusCode)
	}
}

func TestSubmitNoRetries(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_ = NewClient(srv.URL, "").Submit(context.Background(), testRecord())

	if requests != 1 {
		t.Errorf("requests = %d, want exactly 1 (the submitter performs no retries)", requests)
	}
}

func TestIsTransientNonDeliveryError(t *testing.T) {
	if IsTransient(errors.New("plain")) {
		t.Error("plain errors are not transient delivery failures")
	}
	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
}
