// Package extraction turns free text into reviewable event proposals using an
// external extraction service.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Request is the input sent to the extraction service.
type Request struct {
	Text        string
	CurrentDate time.Time
	Timezone    string
}

// Extractor produces candidates for a request.
type Extractor interface {
	Extract(ctx context.Context, req Request) ([]Candidate, error)
}

// ClientConfig describes the extraction endpoint.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls the extraction service over HTTP.
type Client struct {
	http  *resty.Client
	model string
}

// NewClient constructs a Client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: c, model: cfg.Model}
}

type extractRequest struct {
	Model       string `json:"model,omitempty"`
	Text        string `json:"text"`
	CurrentDate string `json:"currentDate"`
	Timezone    string `json:"timezone"`
}

// ErrRemote wraps transport failures and non-2xx responses.
var ErrRemote = errors.New("extraction: service call failed")

// Extract posts the request and parses the returned document.
func (c *Client) Extract(ctx context.Context, req Request) ([]Candidate, error) {
	body := extractRequest{
		Model:       c.model,
		Text:        req.Text,
		CurrentDate: req.CurrentDate.Format(dateLayout),
		Timezone:    req.Timezone,
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&body).
		Post("/extract")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRemote, resp.StatusCode(), resp.String())
	}
	return ParseDocument(resp.String())
}
