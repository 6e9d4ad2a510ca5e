package session

import (
	"testing"
)

// FuzzDecode exercises the binary record decoder with arbitrary inputs.
// Goal: no panics, graceful error handling for malformed input.
func FuzzDecode(f *testing.F) {
	rec := &Record{
		UserID:    "user1",
		Username:  "alice",
		CreatedAt: 1700000000,
		ExpiresAt: 1700086400,
	}
	encoded, err := Encode(rec)
	if err == nil {
		f.Add(encoded)
	}

	// Empty and short inputs.
	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{255, 255, 255})

	// Truncated at various offsets.
	if len(encoded) > 4 {
		f.Add(encoded[:4])
	}
	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic. Errors are expected for malformed input.
		r, err := Decode(data)
		if err != nil {
			return
		}

		// A successfully decoded record must round-trip.
		reEncoded, err := Encode(r)
		if err != nil {
			t.Fatalf("re-encode of decoded record failed: %v", err)
		}
		if len(reEncoded) != len(data) {
			t.Fatalf("re-encode length mismatch: got %d want %d", len(reEncoded), len(data))
		}
	})
}
