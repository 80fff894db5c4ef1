package model

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestParseID(t *testing.T) {
	valid := uuid.NewString()

	tests := []struct {
		in     string
		wantOK bool
	}{
		{valid, true},
		{strings.ToUpper(valid), true},
		{"", false},
		{"not-an-id", false},
		{"507f1f77bcf86cd799439011", false},          // wrong length
		{strings.Replace(valid, "-", "", -1), false}, // no hyphens
		{"zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz", false},
		{"urn:uuid:" + valid, false},
	}

	for _, tt := range tests {
		_, ok := ParseID(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParseID(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
		}
	}
}

func TestParseIDCanonicalises(t *testing.T) {
	valid := uuid.NewString()
	got, ok := ParseID(strings.ToUpper(valid))
	if !ok {
		t.Fatal("expected upper-case id to parse")
	}
	if got != valid {
		t.Errorf("expected %q, got %q", valid, got)
	}
}

func TestNewIDIsParseable(t *testing.T) {
	if _, ok := ParseID(NewID()); !ok {
		t.Error("expected generated id to be valid")
	}
}
