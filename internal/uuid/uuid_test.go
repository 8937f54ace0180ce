// Package uuid tests for UUID generation and validation.
package uuid

import "testing"

func TestNewIsValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := New()
		if !IsValid(id) {
			t.Fatalf("New() produced invalid UUID v4: %q", id)
		}
	}
}

func TestNewUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate UUID generated: %q", id)
		}
		seen[id] = true
	}
}

func TestNewRecordID(t *testing.T) {
	id := NewRecordID()
	if !IsValid(id.String()) {
		t.Errorf("NewRecordID() produced invalid UUID: %q", id)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"valid v4", "6ba7b811-9dad-41d1-80b4-00c04fd430c8", true},
		{"uppercase", "6BA7B811-9DAD-41D1-80B4-00C04FD430C8", true},
		{"wrong version", "6ba7b811-9dad-11d1-80b4-00c04fd430c8", false},
		{"wrong variant", "6ba7b811-9dad-41d1-c0b4-00c04fd430c8", false},
		{"no dashes", "6ba7b8119dad41d180b400c04fd430c8", false},
		{"empty", "", false},
		{"garbage", "not-a-uuid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.in); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(New()); err != nil {
		t.Errorf("Validate(New()) = %v", err)
	}
	if err := Validate("bogus"); err == nil {
		t.Error("Validate(bogus) should fail")
	}
}
