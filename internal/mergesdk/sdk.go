package mergesdk

import (
	"github.com/feedspot/feedmerge/internal/version"
	"github.com/imroc/req/v3"
)

// Client talks to the merge endpoint
type Client struct {
	client  *req.Client
	baseURL string
}

// New creates a new merge client
func New(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	client := req.C().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetUserAgent(version.UserAgent()).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	if cfg.Debug {
		client.EnableDebugLog().EnableDumpAllWithoutRequestBody()
	}

	return &Client{
		client:  client,
		baseURL: cfg.BaseURL,
	}, nil
}

// BaseURL returns the server the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}
