// Package models tests for data model definitions.
package models

import (
	"testing"
	"time"
)

func TestUUIDScan(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  UUID
	}{
		{"string", "abc-123", UUID("abc-123")},
		{"bytes", []byte("abc-123"), UUID("abc-123")},
		{"nil", nil, UUID("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u UUID
			if err := u.Scan(tt.value); err != nil {
				t.Fatalf("Scan(%v) returned error: %v", tt.value, err)
			}
			if u != tt.want {
				t.Errorf("Scan(%v) = %q, want %q", tt.value, u, tt.want)
			}
		})
	}
}

func TestUUIDScan_unsupportedType(t *testing.T) {
	var u UUID
	if err := u.Scan(42); err == nil {
		t.Error("Scan(int) should return an error")
	}
}

func TestEventKindValid(t *testing.T) {
	for _, k := range []EventKind{KindPositive, KindNegative, KindNeutral} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}

	if EventKind("excellent").Valid() {
		t.Error("unknown kind should be invalid")
	}
	if EventKind("").Valid() {
		t.Error("empty kind should be invalid")
	}
}

func TestEventRecordTimes(t *testing.T) {
	now := time.Now().Unix()
	rec := &EventRecord{LoggedAt: now}

	if got := rec.LoggedAtTime().Unix(); got != now {
		t.Errorf("LoggedAtTime() = %d, want %d", got, now)
	}

	if !rec.DeliveredAtTime().IsZero() {
		t.Error("DeliveredAtTime() should be zero for an undelivered record")
	}

	rec.DeliveredAt = now + 5
	if got := rec.DeliveredAtTime().Unix(); got != now+5 {
		t.Errorf("DeliveredAtTime() = %d, want %d", got, now+5)
	}
}

func TestEventRecordLabel(t *testing.T) {
	rec := &EventRecord{StudentName: "Mia Chen", Category: "helpful"}
	if got := rec.Label(); got != "Mia Chen: helpful" {
		t.Errorf("Label() = %q", got)
	}
}
