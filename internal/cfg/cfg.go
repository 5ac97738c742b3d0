package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"time"
)

// Config adds console-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds           int
	ShutdownBudgetSeconds  int
	APIPort                int
	APIBaseURL             string
	UpstreamTimeoutSeconds int
	SessionTTLMinutes      int
	APIToken               string
	SlackWebhookURL        string
	Timezone               string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "console listen TCP port (1..65535)")
	fs.StringVar(&c.APIBaseURL, "api-base-url", "http://127.0.0.1:8000/api", "base URL of the property-maintenance REST API")
	fs.IntVar(&c.UpstreamTimeoutSeconds, "upstream-timeout-seconds", 30, "timeout for a single REST API call (1..300)")
	fs.IntVar(&c.SessionTTLMinutes, "session-ttl-minutes", 30, "idle minutes before an open page session is closed (1..1440)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on /api/v1 (empty = no auth)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for budget alerts (empty = disabled)")
	fs.StringVar(&c.Timezone, "timezone", "UTC", "IANA time zone used to read vendor appointment times")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Upstream base URL must be absolute http(s)
	if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid API_BASE_URL %q (must be an absolute http or https URL)", c.APIBaseURL))
	}

	if c.UpstreamTimeoutSeconds <= 0 || c.UpstreamTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid UPSTREAM_TIMEOUT_SECONDS %d (must be 1..300)", c.UpstreamTimeoutSeconds))
	}

	if c.SessionTTLMinutes <= 0 || c.SessionTTLMinutes > 1440 {
		errs = append(errs, fmt.Errorf("invalid SESSION_TTL_MINUTES %d (must be 1..1440)", c.SessionTTLMinutes))
	}

	if c.SlackWebhookURL != "" {
		if u, err := url.Parse(c.SlackWebhookURL); err != nil || u.Scheme != "https" {
			errs = append(errs, errors.New("SLACK_WEBHOOK_URL must be an https URL"))
		}
	}

	if c.Timezone == "" {
		errs = append(errs, errors.New("TIMEZONE is required"))
	} else if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

// UpstreamTimeout is the per-call REST API timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// SessionTTL is the idle lifetime of a page session.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}
