package testfixtures

import "testing"

func TestIDGeneratorSequence(t *testing.T) {
	gen := NewIDGenerator("evt")
	next := gen.NextFunc()

	if got := next(); got != "evt-0001" {
		t.Fatalf("expected evt-0001, got %s", got)
	}
	if got := next(); got != "evt-0002" {
		t.Fatalf("expected evt-0002, got %s", got)
	}
	if gen.Issued() != 2 {
		t.Fatalf("expected 2 issued ids, got %d", gen.Issued())
	}
	if NewIDGenerator("").Next() != "id-0001" {
		t.Fatal("expected default prefix")
	}
}
