package quicsrv

import "testing"

func TestReadBufferSizeDefaultsWhenUnset(t *testing.T) {
	c := &Config{}
	if got := c.readBufferSize(); got != 65536 {
		t.Fatalf("got %d, want 65536", got)
	}
}

func TestReadBufferSizeHonorsOverride(t *testing.T) {
	c := &Config{ReadBufferSize: 1024}
	if got := c.readBufferSize(); got != 1024 {
		t.Fatalf("got %d, want 1024", got)
	}
}
