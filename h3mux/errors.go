// Package h3mux implements the HTTP/2-style framing multiplexer layered
// above the QUIC packet engine : frame demuxer, per-stream
// state machine, flow control, and HPACK-driven header coding. Despite
// the package name (matching historically h3-prefixed but
// HTTP/2-framed mux, open question), every wire construct here
// — the preface, the 9-byte frame header, the SETTINGS ACK flag, HPACK,
// WINDOW_UPDATE — is HTTP/2.
package h3mux

import "fmt"

// ErrorCode is an HTTP-framing error code ("Application
// (HTTP-framing)").
type ErrorCode uint32

const (
	ErrNoError ErrorCode = 0x0
	ErrProtocolError ErrorCode = 0x1
	ErrInternalError ErrorCode = 0x2
	ErrFlowControlError ErrorCode = 0x3
	ErrStreamClosed ErrorCode = 0x5
	ErrFrameSizeError ErrorCode = 0x6
	ErrRefusedStream ErrorCode = 0x7
	ErrCancel ErrorCode = 0x8
	ErrCompressionError ErrorCode = 0x9
	ErrEnhanceYourCalm ErrorCode = 0xb
)

func (e ErrorCode) String() string {
	switch e {
	case ErrNoError:
		return "no_error"
	case ErrProtocolError:
		return "protocol_error"
	case ErrInternalError:
		return "internal_error"
	case ErrFlowControlError:
		return "flow_control_error"
	case ErrStreamClosed:
		return "stream_closed"
	case ErrFrameSizeError:
		return "frame_size_error"
	case ErrRefusedStream:
		return "refused_stream"
	case ErrCancel:
		return "cancel"
	case ErrCompressionError:
		return "compression_error"
	case ErrEnhanceYourCalm:
		return "enhance_your_calm"
	default:
		return fmt.Sprintf("unknown_error_%#x", uint32(e))
	}
}

// Scope distinguishes a stream-scoped error (surfaced as RST_STREAM,
// "Stream-scope errors -> RST on the stream; connection
// continues") from a connection-scoped one (GOAWAY).
type Scope uint8

const (
	ScopeStream Scope = iota
	ScopeConnection
)

// Error is returned by mux operations; Scope tells the caller whether
// to reset the one stream or tear down the whole connection.
type Error struct {
	Scope Scope
	Code ErrorCode
	Reason string
}

func newStreamError(code ErrorCode, reason string) *Error {
	return &Error{Scope: ScopeStream, Code: code, Reason: reason}
}

func newConnError(code ErrorCode, reason string) *Error {
	return &Error{Scope: ScopeConnection, Code: code, Reason: reason}
}

func (e *Error) Error() string {
	scope := "stream"
	if e.Scope == ScopeConnection {
		scope = "connection"
	}
	if e.Reason == "" {
		return scope + " error: " + e.Code.String()
	}
	return scope + " error: " + e.Code.String() + ": " + e.Reason
}
