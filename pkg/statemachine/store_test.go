package statemachine

import "testing"

func TestApplySetGetDelete(t *testing.T) {
	s := NewStore()
	payload, err := Encode(Command{Type: Set, Key: "a", Value: []byte("1"), ClientID: "c1", RequestID: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := s.Apply(payload); err != nil {
		t.Fatalf("apply set: %v", err)
	}

	v, ok := s.Get("a")
	if !ok || string(v) != "1" {
		t.Fatalf("expected a=1, got %q ok=%v", v, ok)
	}

	delPayload, _ := Encode(Command{Type: Delete, Key: "a", ClientID: "c1", RequestID: 2})
	if _, err := s.Apply(delPayload); err != nil {
		t.Fatalf("apply delete: %v", err)
	}
	if _, ok := s.Get("a"); ok {
		t.Fatalf("expected a to be deleted")
	}
}

func TestApplyIsIdempotentPerClientRequest(t *testing.T) {
	s := NewStore()
	payload, _ := Encode(Command{Type: Set, Key: "x", Value: []byte("1"), ClientID: "c1", RequestID: 5})
	if _, err := s.Apply(payload); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	overwrite, _ := Encode(Command{Type: Set, Key: "x", Value: []byte("2"), ClientID: "c1", RequestID: 5})
	if _, err := s.Apply(overwrite); err != nil {
		t.Fatalf("duplicate apply: %v", err)
	}
	v, _ := s.Get("x")
	if string(v) != "1" {
		t.Fatalf("duplicate request must not re-apply, got %q", v)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewStore()
	payload, _ := Encode(Command{Type: Set, Key: "k", Value: []byte("v")})
	if _, err := s.Apply(payload); err != nil {
		t.Fatalf("apply: %v", err)
	}
	blob, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	s2 := NewStore()
	if err := s2.Restore(blob); err != nil {
		t.Fatalf("restore: %v", err)
	}
	v, ok := s2.Get("k")
	if !ok || string(v) != "v" {
		t.Fatalf("restored store missing k=v, got %q ok=%v", v, ok)
	}
}
