package util

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewID(t *testing.T) {
	plain := NewID("")
	if _, err := uuid.Parse(plain); err != nil {
		t.Fatalf("expected uuid, got %q: %v", plain, err)
	}

	prefixed := NewID("resp")
	if !strings.HasPrefix(prefixed, "resp_") {
		t.Fatalf("expected resp_ prefix, got %q", prefixed)
	}
	if NewID("") == plain {
		t.Fatal("expected unique ids")
	}
}
