package quicsrv

import (
	"testing"

	"github.com/quicbridge/engine/transport"
)

func TestHandlerFuncAdapts(t *testing.T) {
	called := false
	var h Handler = HandlerFunc(func(c *Conn, events []transport.Event) {
			called = true
			if len(events) != 1 || events[0].Type != transport.EventConnAccept {
				t.Fatalf("unexpected events: %+v", events)
			}
		})
	h.Serve(nil, []transport.Event{{Type: transport.EventConnAccept}})
	if !called {
		t.Fatalf("HandlerFunc did not invoke underlying function")
	}
}
