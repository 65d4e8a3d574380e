package container_test

import (
	"testing"

	"github.com/arikfeldman/tritier/pkg/tritier/container"
)

func TestSink_PushDrainAll(t *testing.T) {
	s := container.NewSink[string]()
	s.Push("a")
	s.Push("b")

	if got := s.Len(); got != 2 {
		t.Fatalf("Len: want 2, got %d", got)
	}

	got := s.DrainAll()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("DrainAll: got %v", got)
	}
	if got := s.Len(); got != 0 {
		t.Fatalf("Len after drain: want 0, got %d", got)
	}
}
