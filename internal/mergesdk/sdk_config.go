package mergesdk

import (
	"net/url"
	"time"
)

const (
	DefaultBaseURL = "http://127.0.0.1:5000"
	DefaultTimeout = 10 * time.Minute
)

// Config is the configuration for the merge client
type Config struct {
	BaseURL string        // BaseURL is required
	Timeout time.Duration // Timeout bounds a whole merge call; zero means DefaultTimeout
	Debug   bool          // Debug enables request/response logging in the http client
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidServerURL
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	return nil
}
