package transport

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"testing"
)

func TestParametersRoundTrip(t *testing.T) {
	p := &Parameters{
		InitialSourceCID: []byte{1, 2, 3},
		MaxIdleTimeout: 30 * time.Second,
		MaxUDPPayloadSize: 65527,
		InitialMaxData: 1 << 20,
		InitialMaxStreamDataBidiLocal: 65535,
		InitialMaxStreamDataBidiRemote: 65535,
		InitialMaxStreamDataUni: 65535,
		InitialMaxStreamsBidi: 100,
		InitialMaxStreamsUni: 3,
		AckDelayExponent: 3,
		MaxAckDelay: 25 * time.Millisecond,
		ActiveConnectionIDLimit: 4,
	}
	encoded := MarshalParameters(p)
	got, err := UnmarshalParameters(encoded)
	if err != nil {
		t.Fatalf("UnmarshalParameters: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalParametersRejectsBadAckDelayExponent(t *testing.T) {
	var b []byte
	b = appendTLVID(b, paramAckDelayExponent)
	payload := []byte{21} // > 20, out of bounds ("ack_delay_exponent <= 20")
	b = appendTLVLen(b, payload)
	if _, err := UnmarshalParameters(b); err == nil {
		t.Fatalf("expected error for out-of-range ack_delay_exponent")
	}
}

func TestUnmarshalParametersSkipsUnknownID(t *testing.T) {
	var b []byte
	b = appendTLVID(b, 0xff00) // unrecognized, must be ignored per extensibility
	b = appendTLVLen(b, []byte{1, 2, 3})
	b = append(b, MarshalParameters(&Parameters{AckDelayExponent: 3})...)
	if _, err := UnmarshalParameters(b); err != nil {
		t.Fatalf("unexpected error skipping unknown id: %v", err)
	}
}
