package ring

import "testing"

func TestRingWriteRead(t *testing.T) {
	r := New(4, 16)
	if r.Cap() != 4 {
		t.Fatalf("cap = %d, want 4", r.Cap())
	}
	buf, ok := r.Writer()
	if !ok {
		t.Fatal("expected writer slot")
	}
	buf.Data = append(buf.Data, []byte("hello")...)
	r.Commit(len(buf.Data))

	rb, ok := r.Reader()
	if !ok || string(rb.Data) != "hello" {
		t.Fatalf("reader = %q, ok=%v", rb.Data, ok)
	}
	r.Advance()
	if !r.Empty() {
		t.Fatal("expected empty after advance")
	}
}

func TestRingFull(t *testing.T) {
	r := New(2, 8)
	for i := 0; i < 2; i++ {
		buf, ok := r.Writer()
		if !ok {
			t.Fatalf("slot %d should be available", i)
		}
		r.Commit(1)
		_ = buf
	}
	if _, ok := r.Writer(); ok {
		t.Fatal("expected ring to report full")
	}
	if !r.Full() {
		t.Fatal("Full() should report true")
	}
	r.Advance()
	if _, ok := r.Writer(); !ok {
		t.Fatal("expected a free slot after advance")
	}
}

func TestNextPow2Rounding(t *testing.T) {
	r := New(3, 4)
	if r.Cap() != 4 {
		t.Fatalf("cap = %d, want 4 (rounded up)", r.Cap())
	}
}
