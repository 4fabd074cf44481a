// File: internal/services/chat/config.go
package chat

import (
	"fmt"
	"time"
)

type Config struct {
	DefaultPageSize  int // Messages returned when the caller gives no limit
	MaxPageSize      int // Upper bound on a single page
	MaxContentLength int // Maximum characters in a message body or caption
	MaxNameLength    int
	MaxDescription   int

	// Performance Configuration
	Timeout time.Duration // Per-operation deadline applied when the caller has none
}

func (c *Config) Validate() error {
	if c.DefaultPageSize <= 0 {
		return fmt.Errorf("default_page_size must be positive")
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("max_page_size cannot be below default_page_size")
	}
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("max_content_length must be positive")
	}
	if c.MaxNameLength <= 0 || c.MaxDescription <= 0 {
		return fmt.Errorf("name and description limits must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		DefaultPageSize:  50,
		MaxPageSize:      100,
		MaxContentLength: 1000,
		MaxNameLength:    100,
		MaxDescription:   500,
		Timeout:          10 * time.Second,
	}
}

// PageSize clamps a requested page size into [1, MaxPageSize]; zero or
// negative means the default.
func (c *Config) PageSize(requested int) int {
	switch {
	case requested <= 0:
		return c.DefaultPageSize
	case requested > c.MaxPageSize:
		return c.MaxPageSize
	default:
		return requested
	}
}
