package wire

import (
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	at := time.Unix(0, 1_700_000_000_000_000_000)
	b := Encode(KindPrimary, at, []byte("payload"))

	kind, storedAt, payload, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if kind != KindPrimary {
		t.Fatalf("kind = %d, want primary", kind)
	}
	if !storedAt.Equal(at) {
		t.Fatalf("storedAt = %v, want %v", storedAt, at)
	}
	if string(payload) != "payload" {
		t.Fatalf("payload = %q", payload)
	}
}

func TestStaleKind(t *testing.T) {
	b := Encode(KindStale, time.Now(), nil)
	kind, _, payload, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if kind != KindStale || len(payload) != 0 {
		t.Fatalf("kind=%d payload=%v", kind, payload)
	}
}

func TestRejectsTrailing(t *testing.T) {
	b := Encode(KindPrimary, time.Now(), []byte("x"))
	b = append(b, 0xDE, 0xAD)
	if _, _, _, err := Decode(b); err == nil {
		t.Fatalf("Decode should reject trailing bytes")
	}
}

func TestRejectsCorrupt(t *testing.T) {
	cases := map[string][]byte{
		"empty":       nil,
		"short":       []byte("HD"),
		"bad magic":   append([]byte("NOPE"), Encode(KindPrimary, time.Now(), nil)[4:]...),
		"bad version": func() []byte { b := Encode(KindPrimary, time.Now(), nil); b[4] = 99; return b }(),
		"bad kind":    func() []byte { b := Encode(KindPrimary, time.Now(), nil); b[5] = 7; return b }(),
		"truncated":   Encode(KindPrimary, time.Now(), []byte("abcdef"))[:header+3],
	}
	for name, b := range cases {
		if _, _, _, err := Decode(b); err == nil {
			t.Fatalf("%s: Decode should fail", name)
		}
	}
}
