package telegram

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

const (
	defaultAPIURL        = "https://api.telegram.org"
	defaultMaxLength     = 4096
	minMessageLength     = 64
	defaultRatePerSecond = 1
	defaultBurst         = 3
	defaultTimeout       = 30 * time.Second
)

// Config holds the Telegram channel configuration.
type Config struct {
	Token            string        `yaml:"token"`
	APIURL           string        `yaml:"api_url"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxMessageLength int           `yaml:"max_message_length"`

	// AllowTargets restricts delivery to these chat IDs or @usernames.
	// Empty allows every target.
	AllowTargets []string `yaml:"allow_targets"`

	// RatePerSecond and Burst bound outgoing sendMessage calls across all
	// chats.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`

	DisablePreview bool `yaml:"disable_preview"`
	Silent         bool `yaml:"silent"`

	// SkipVerify skips the getMe token check at start.
	SkipVerify bool `yaml:"skip_verify"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = defaultMaxLength
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = defaultRatePerSecond
	}
	if c.Burst == 0 {
		c.Burst = defaultBurst
	}
}

// validate checks configuration field constraints after defaults have been
// applied.
func (c *Config) validate() error {
	if c.Token == "" {
		return errors.New("telegram: token is required")
	}
	if !tokenPattern.MatchString(c.Token) {
		return errors.New("telegram: token format invalid (expected <bot_id>:<hash>)")
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("telegram: timeout must not be negative, got %s", c.Timeout)
	}
	if c.MaxMessageLength < minMessageLength || c.MaxMessageLength > defaultMaxLength {
		return fmt.Errorf("telegram: max_message_length must be %d-%d, got %d",
			minMessageLength, defaultMaxLength, c.MaxMessageLength)
	}
	if c.RatePerSecond < 0 || c.RatePerSecond > 30 {
		return fmt.Errorf("telegram: rate_per_second must be 0-30, got %g", c.RatePerSecond)
	}
	if c.Burst < 1 {
		return fmt.Errorf("telegram: burst must be positive, got %d", c.Burst)
	}
	return nil
}
