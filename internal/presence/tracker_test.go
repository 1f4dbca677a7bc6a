package presence

import "testing"

func TestJoinIsIdempotent(t *testing.T) {
	tr := NewTracker()
	if !tr.Join("u1") {
		t.Fatalf("first join should report a new participant")
	}
	if tr.Join("u1") {
		t.Fatalf("second join should be a no-op")
	}
	if tr.Len() != 1 || !tr.Online("u1") {
		t.Fatalf("expected u1 online once, got %v", tr.IDs())
	}
}

func TestLeaveAbsentIsNoop(t *testing.T) {
	tr := NewTracker()
	if tr.Leave("ghost") {
		t.Fatalf("leaving an absent id must be a no-op")
	}
	tr.Join("u1")
	if !tr.Leave("u1") {
		t.Fatalf("expected u1 to be removed")
	}
	if tr.Leave("u1") {
		t.Fatalf("second leave should be a no-op")
	}
	if tr.Online("u1") {
		t.Fatalf("u1 should be offline")
	}
}

func TestIDsSortedAndReset(t *testing.T) {
	tr := NewTracker()
	for _, id := range []string{"c", "a", "b"} {
		tr.Join(id)
	}
	got := tr.IDs()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", got, want)
		}
	}
	tr.Reset()
	if tr.Len() != 0 {
		t.Fatalf("expected empty tracker after Reset, got %v", tr.IDs())
	}
}

func TestJoinIgnoresEmptyID(t *testing.T) {
	tr := NewTracker()
	if tr.Join("") || tr.Len() != 0 {
		t.Fatalf("empty id must not be tracked")
	}
}
