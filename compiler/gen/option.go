package gen

import (
	"path/filepath"
	"runtime"
)

// DefaultHeader is the header comment of generated files.
const DefaultHeader = "Code generated by silo. DO NOT EDIT."

// Config holds the generation settings.
type Config struct {
	// Target is the directory the model packages are written to.
	Target string
	// Header is the comment at the top of every file.
	Header string
	// Workers bounds the files generated in parallel.
	Workers int
}

// Option configures code generation.
type Option func(*Config) error

// WithTarget sets the output directory.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Target", nil, "target directory cannot be empty")
		}
		c.Target = filepath.Clean(dir)
		return nil
	}
}

// WithHeader sets the file header comment.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return NewConfigError("Workers", n, "workers must be positive")
		}
		c.Workers = n
		return nil
	}
}

func newConfig(opts ...Option) (*Config, error) {
	c := &Config{
		Header:  DefaultHeader,
		Workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.Target == "" {
		return nil, NewConfigError("Target", nil, "no target directory: use WithTarget")
	}
	return c, nil
}
