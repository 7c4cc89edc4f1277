package discord

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	defaultAPIURL        = "https://discord.com/api/v10"
	maxContentLength     = 2000
	defaultRatePerSecond = 5
	defaultBurst         = 5
	defaultTimeout       = 30 * time.Second
)

// Config holds the Discord channel configuration.
type Config struct {
	Token   string        `yaml:"token"`
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`

	// AllowTargets restricts delivery to these channel IDs. Empty allows
	// every channel the bot can post in.
	AllowTargets []string `yaml:"allow_targets"`

	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`

	// SuppressEmbeds disables link previews on every message.
	SuppressEmbeds bool `yaml:"suppress_embeds"`
	Silent         bool `yaml:"silent"`
}

func (c *Config) defaults() {
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = defaultRatePerSecond
	}
	if c.Burst == 0 {
		c.Burst = defaultBurst
	}
}

func (c *Config) validate() error {
	if c.Token == "" {
		return errors.New("discord: token is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("discord: api_url must be a valid http/https URL, got %q", c.APIURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("discord: timeout must not be negative, got %s", c.Timeout)
	}
	if c.RatePerSecond < 0 || c.RatePerSecond > 50 {
		return fmt.Errorf("discord: rate_per_second must be 0-50, got %g", c.RatePerSecond)
	}
	if c.Burst < 1 {
		return fmt.Errorf("discord: burst must be positive, got %d", c.Burst)
	}
	for _, id := range c.AllowTargets {
		if !isSnowflake(id) {
			return fmt.Errorf("discord: allow_targets entry %q is not a channel ID", id)
		}
	}
	return nil
}
