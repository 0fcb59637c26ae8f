package transport

import "fmt"

// TransportError is a QUIC transport-level error code .
type TransportError uint64

// Recognized transport error codes.
const (
	NoError TransportError = 0x0
	InternalError TransportError = 0x1
	ConnectionRefused TransportError = 0x2
	FlowControlError TransportError = 0x3
	StreamLimitError TransportError = 0x4
	StreamStateError TransportError = 0x5
	FinalSizeError TransportError = 0x6
	FrameEncodingError TransportError = 0x7
	TransportParameterError TransportError = 0x8
	ConnectionIDLimitError TransportError = 0x9
	ProtocolViolation TransportError = 0xa
	InvalidToken TransportError = 0xb
	ApplicationErrorCode TransportError = 0xc
	CryptoBufferExceeded TransportError = 0xd
	KeyUpdateError TransportError = 0xe
	AEADLimitReached TransportError = 0xf
	cryptoErrorBase TransportError = 0x100 // 0x1XX: TLS alert N encoded as 0x100+N
)

func (e TransportError) String() string {
	if e >= cryptoErrorBase && e <= cryptoErrorBase+0xff {
		return fmt.Sprintf("crypto_error_%d", uint64(e-cryptoErrorBase))
	}
	switch e {
	case NoError:
		return "no_error"
	case InternalError:
		return "internal_error"
	case ConnectionRefused:
		return "connection_refused"
	case FlowControlError:
		return "flow_control_error"
	case StreamLimitError:
		return "stream_limit_error"
	case StreamStateError:
		return "stream_state_error"
	case FinalSizeError:
		return "final_size_error"
	case FrameEncodingError:
		return "frame_encoding_error"
	case TransportParameterError:
		return "transport_parameter_error"
	case ConnectionIDLimitError:
		return "connection_id_limit_error"
	case ProtocolViolation:
		return "protocol_violation"
	case InvalidToken:
		return "invalid_token"
	case ApplicationErrorCode:
		return "application_error"
	case CryptoBufferExceeded:
		return "crypto_buffer_exceeded"
	case KeyUpdateError:
		return "key_update_error"
	case AEADLimitReached:
		return "aead_limit_reached"
	default:
		return fmt.Sprintf("unknown_error_%#x", uint64(e))
	}
}

// errorCodeString mirrors free function of the same name
// used by the qlog frame logger.
func errorCodeString(code uint64) string {
	return TransportError(code).String()
}

// Error is the error type surfaced by the connection and its
// sub-components: a transport error code plus an optional reason.
type Error struct {
	Code TransportError
	Reason string
}

func newError(code TransportError, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Reason
}

// Sentinel errors used on hot paths where allocating a reason string is
// wasteful; they carry a fixed code via errors.As.
var (
	errShortBuffer = newError(InternalError, "short buffer")
	errFlowControl = newError(FlowControlError, "")
	errInvalidToken = newError(InvalidToken, "")
	errFinalSize = newError(FinalSizeError, "")
	errProtocol = newError(ProtocolViolation, "")
)
