package surge

import (
	"strconv"
	"time"
)

// Config collects every tunable spec.md §6 lists as a process input:
// timeouts, buffer sizes, limits, and the static-file/cache settings.
// It has no CLI or environment binding — spec.md is explicit that
// configuration is "deliberately external" to the core — so callers
// build one by hand or load it however their application prefers,
// following the shape of the teacher's shockwave/pkg/shockwave/server.Config
// and its DefaultConfig().
type Config struct {
	// Host and Port make up the address the listener binds
	// (spec.md §3 HostAddress).
	Host string
	Port int

	// Backlog is passed to socket.Listen as the TCP listen backlog
	// (spec.md §4.3). socket.Listen does not apply it; the kernel's
	// default backlog is used.
	Backlog int

	// Workers is the fixed worker-pool size. A non-positive value falls
	// back to max(4, 2*GOMAXPROCS) when server.ListenAndServe creates the
	// pool (spec.md §5).
	Workers int

	// PollInterval bounds how long the listener's accept loop blocks
	// before re-checking the shutdown flag (spec.md §4.3, default 100ms).
	PollInterval time.Duration

	// RecvTimeout and SendTimeout are the per-socket deadlines applied to
	// every connection (spec.md §5, defaults 10s/5s).
	RecvTimeout time.Duration
	SendTimeout time.Duration

	// MaxHeaderSize bounds the header block spec.md §4.4.1 step 1 reads
	// before failing the connection.
	MaxHeaderSize int

	// MaxContentLength bounds the Content-Length spec.md §4.4.1 step 2
	// will accept.
	MaxContentLength int64

	// MaxRequests bounds in-flight requests per connection (spec.md §3
	// invariant, §4.4.1 preamble).
	MaxRequests int

	// StreamBufferSize is the chunk size used when streaming a file body
	// (spec.md §4.10, default 64 KiB).
	StreamBufferSize int

	// CacheCapacity is the file cache's entry-count ceiling (spec.md §4.9
	// initialize(max)).
	CacheCapacity int

	// StaticRoot and StaticPrefix configure the static-file handler
	// (spec.md §4.8). StaticRoot == "" disables static serving.
	StaticRoot   string
	StaticPrefix string

	// ReadBufferSize is the per-recv scratch buffer size used while
	// reading headers and body (spec.md §4.4.1 step 1).
	ReadBufferSize int
}

// DefaultConfig returns a Config populated with the defaults spec.md §4
// and §6 call out by name, mirroring the teacher's
// shockwave/pkg/shockwave/server.DefaultConfig shape.
func DefaultConfig() Config {
	return Config{
		Host:             "0.0.0.0",
		Port:             8080,
		Backlog:          128,
		Workers:          0, // resolved to max(4, 2*GOMAXPROCS) by the caller
		PollInterval:     100 * time.Millisecond,
		RecvTimeout:      10 * time.Second,
		SendTimeout:      5 * time.Second,
		MaxHeaderSize:    8192,
		MaxContentLength: 10 << 20,
		MaxRequests:      100,
		StreamBufferSize: 64 << 10,
		CacheCapacity:    100,
		StaticPrefix:     "/static/",
		ReadBufferSize:   4096,
	}
}

// Addr formats Host and Port as "host:port" (spec.md §3 HostAddress
// "Displayed as host:port").
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
