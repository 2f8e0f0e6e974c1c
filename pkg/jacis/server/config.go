package server

import "time"

// Config holds the admin HTTP surface's configuration, grounded on the
// teacher's pkg/server.Config shape but trimmed to the options this
// surface actually uses — there is no on-disk data directory or buffer
// pool here, only a Container already built by the caller.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	EnableCORS     bool
	AllowedOrigins []string
	EnableLogging  bool
	EnableGraphQL  bool

	// Namespace prefixes every exported Prometheus metric name.
	Namespace string
}

// DefaultConfig returns sensible defaults for a locally-run admin surface.
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8089",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxRequestSize: 1 << 20,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		EnableLogging:  true,
		EnableGraphQL:  true,
		Namespace:      "jacis",
	}
}
