package html

import (
	"fmt"
	"time"
)

// Config holds the HTML fetcher configuration.
type Config struct {
	// Timeout bounds one page retrieval. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent"`

	// MaxBodyBytes truncates larger pages. Defaults to 5 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// TextOnly extracts the trimmed text of every match and ignores href.
	TextOnly bool `yaml:"text_only"`
}

func (c *Config) validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("html: timeout must be non-negative, got %s", c.Timeout)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("html: max_body_bytes must be non-negative, got %d", c.MaxBodyBytes)
	}
	return nil
}
