package h3mux

// Wire constants ("HTTP mux wire constants").
const (
	defaultInitialWindowSize = 65535
	maxWindowSize = 1<<31 - 1
	defaultMaxConcurrentStreams = 100
	defaultMaxFrameSize = 16384
	minMaxFrameSize = 16384
	maxMaxFrameSize = 16777215
	defaultHeaderTableSize = 4096
	minHeaderTableSize = 4096
	maxHeaderTableSize = 65536
)

var connPreface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// Config is the immutable configuration surface of
// ("tune.h3.*"), threaded through the connection constructor rather than
// read from process-global mutable state (redesign note).
type Config struct {
	// HeaderTableSize bounds the HPACK dynamic table
	// (tune.h3.header-table-size, 4096..65536).
	HeaderTableSize uint32
	// InitialWindowSize is the per-stream initial flow-control window
	// (tune.h3.initial-window-size, >=0).
	InitialWindowSize uint32
	// MaxConcurrentStreams bounds live streams per connection
	// (tune.h3.max-concurrent-streams, >=0; 0 means "use the protocol
	// default of 100").
	MaxConcurrentStreams uint32
	// MaxFrameSize bounds a single frame's payload
	// (tune.h3.max-frame-size, 16384..16777215).
	MaxFrameSize uint32

	// IsServer selects HTTP/2-style id parity discipline: servers expect
	// client-initiated odd stream ids and allocate even ones of their
	// own ("client-odd, server-even").
	IsServer bool
}

// DefaultConfig returns the defaults, clamped to their bounds.
func DefaultConfig(isServer bool) Config {
	c := Config{
		HeaderTableSize: defaultHeaderTableSize,
		InitialWindowSize: defaultInitialWindowSize,
		MaxConcurrentStreams: defaultMaxConcurrentStreams,
		MaxFrameSize: defaultMaxFrameSize,
		IsServer: isServer,
	}
	return c
}

// normalize clamps configured values into their valid bounds.
func (c *Config) normalize() {
	if c.HeaderTableSize < minHeaderTableSize {
		c.HeaderTableSize = minHeaderTableSize
	}
	if c.HeaderTableSize > maxHeaderTableSize {
		c.HeaderTableSize = maxHeaderTableSize
	}
	if c.MaxConcurrentStreams == 0 {
		c.MaxConcurrentStreams = defaultMaxConcurrentStreams
	}
	if c.MaxFrameSize < minMaxFrameSize {
		c.MaxFrameSize = minMaxFrameSize
	}
	if c.MaxFrameSize > maxMaxFrameSize {
		c.MaxFrameSize = maxMaxFrameSize
	}
}
