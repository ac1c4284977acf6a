package audit

import "errors"

// DefaultBufferSize is the event queue capacity when none is configured.
const DefaultBufferSize = 1024

// Config configures the audit logger.
type Config struct {
	// Enabled turns audit logging on. Off by default.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Output is the destination: stdout, stderr, or a file path.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`

	// BufferSize is the capacity of the event queue. Events recorded
	// while the queue is full are dropped and counted, never blocked on.
	BufferSize int `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`
}

// DefaultConfig returns the default audit configuration. Audit logging
// starts disabled; a deployment opts in explicitly.
func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		Output:  "stdout",
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.BufferSize < 0 {
		return errors.New("buffer_size must be non-negative")
	}
	return nil
}

// GetOutput returns the configured output, defaulting to stdout.
func (c *Config) GetOutput() string {
	if c == nil || c.Output == "" {
		return "stdout"
	}
	return c.Output
}

// GetBufferSize returns the configured queue capacity, defaulting to
// DefaultBufferSize.
func (c *Config) GetBufferSize() int {
	if c == nil || c.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return c.BufferSize
}
