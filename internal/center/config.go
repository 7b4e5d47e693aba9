// Package center speaks the center side of the telecontrol link. It
// dials regulators, runs request/reply exchanges over the shared frame
// codec and decodes the reports a regulator sends back. The watch loop
// keeps a session alive with reconnect backoff.
package center

import "time"

// BackoffConfig defines retry backoff behavior for reconnects.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines link reliability settings for one regulator endpoint.
type Config struct {
	Addr           string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PollInterval   time.Duration
	Backoff        BackoffConfig
}

// DefaultConfig returns field-tested link defaults. Regulators push a
// group-state report every two seconds, so the read timeout only trips
// on a genuinely dead link.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   5 * time.Second,
		PollInterval:   5 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     15 * time.Second,
			Jitter:       true,
		},
	}
}
