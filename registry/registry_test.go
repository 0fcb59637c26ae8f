package registry

import (
	"testing"
	"time"

	"github.com/quicbridge/engine/transport"
)

func TestRegistryPromote(t *testing.T) {
	r := New()
	dcid := transport.CID{1, 2, 3}
	addr := "10.0.0.1:4433"
	e := &Entry{}
	r.RegisterInitial(dcid, addr, e)

	if _, ok := r.LookupInitial(dcid, addr); !ok {
		t.Fatal("expected initial entry to be found")
	}

	scid := transport.CID{9, 9, 9, 9, 9, 9, 9, 9}
	r.Promote(dcid, addr, scid)

	if _, ok := r.LookupInitial(dcid, addr); ok {
		t.Fatal("expected initial entry to be gone after promotion")
	}
	if got, ok := r.Lookup(scid); !ok || got != e {
		t.Fatal("expected promoted entry to be found by scid")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryRemove(t *testing.T) {
	r := New()
	scid := transport.CID{1, 1, 1, 1}
	r.RegisterSCID(scid, &Entry{})
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	r.Remove([]transport.CID{scid})
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}

func TestRetryValidatorRoundTrip(t *testing.T) {
	v, err := NewRetryValidator(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	odcid := transport.CID{1, 2, 3, 4, 5, 6, 7, 8}
	addr := "192.0.2.1:443"
	now := time.Now()

	token := v.Issue(odcid, addr, now)
	got, err := v.Validate(token, addr, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !got.Equal(odcid) {
		t.Fatalf("Validate() odcid = %x, want %x", got, odcid)
	}
}

func TestRetryValidatorRejectsWrongAddr(t *testing.T) {
	v, err := NewRetryValidator(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	odcid := transport.CID{1, 2, 3}
	now := time.Now()
	token := v.Issue(odcid, "192.0.2.1:443", now)
	if _, err := v.Validate(token, "192.0.2.2:443", now); err != ErrInvalidToken {
		t.Fatalf("Validate() error = %v, want ErrInvalidToken", err)
	}
}

func TestRetryValidatorRejectsExpired(t *testing.T) {
	v, err := NewRetryValidator(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	odcid := transport.CID{1, 2, 3}
	now := time.Now()
	token := v.Issue(odcid, "192.0.2.1:443", now)
	if _, err := v.Validate(token, "192.0.2.1:443", now.Add(time.Hour)); err != ErrInvalidToken {
		t.Fatalf("Validate() error = %v, want ErrInvalidToken", err)
	}
}
