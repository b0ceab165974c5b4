// Package rest talks to the calendar sync server over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/example/pocketcal/internal/persistence"
)

// Config describes the remote endpoint.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// Schema forces the event field naming. SchemaUnknown negotiates it.
	Schema Schema
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client implements the sync engine's remote store against the REST API:
//
//	GET    /calendars?user_id=U      PUT /calendars/{id}   DELETE /calendars/{id}
//	GET    /events?user_id=U         PUT /events/{uid}     DELETE /events/{uid}
type Client struct {
	http   *resty.Client
	token  string
	logger *slog.Logger

	mu     sync.Mutex
	schema Schema
}

// New constructs a Client.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &Client{
		http:   client,
		token:  cfg.Token,
		logger: logger.With("component", "remote_rest"),
		schema: cfg.Schema,
	}
}

// Authenticated reports whether a token is configured.
func (c *Client) Authenticated(context.Context, string) bool {
	return c.token != ""
}

// Schema returns the negotiated event schema, probing the server on first use.
// The result is cached for the life of the client; a failed probe is retried
// on the next call.
func (c *Client) Schema(ctx context.Context) (Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schema != SchemaUnknown {
		return c.schema, nil
	}

	resp, err := c.http.R().SetContext(ctx).SetQueryParam("limit", "1").Get("/events")
	if err := c.check(resp, err); err != nil {
		return SchemaUnknown, fmt.Errorf("negotiate schema: %w", err)
	}
	var records []map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &records); err != nil {
		return SchemaUnknown, fmt.Errorf("negotiate schema: %w", err)
	}

	schema := SchemaSnake
	if len(records) > 0 {
		if detected := detectSchema(records[0]); detected != SchemaUnknown {
			schema = detected
		}
	}
	c.schema = schema
	c.logger.InfoContext(ctx, "negotiated event schema", slog.String("schema", string(schema)))
	return schema, nil
}

func (c *Client) check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &StatusError{
			Method: resp.Request.Method,
			Path:   resp.Request.URL,
			Code:   resp.StatusCode(),
			Body:   resp.String(),
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var status *StatusError
	return errors.As(err, &status) && status.Code == http.StatusNotFound
}

// ListCalendars returns the user's calendars.
func (c *Client) ListCalendars(ctx context.Context, userID string) ([]persistence.Calendar, error) {
	var records []calendarRecord
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user_id", userID).
		SetResult(&records).
		Get("/calendars")
	if err := c.check(resp, err); err != nil {
		return nil, err
	}
	calendars := make([]persistence.Calendar, 0, len(records))
	for _, r := range records {
		calendars = append(calendars, r.calendar())
	}
	return calendars, nil
}

// UpsertCalendar creates or replaces a calendar.
func (c *Client) UpsertCalendar(ctx context.Context, calendar persistence.Calendar) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(toCalendarRecord(calendar)).
		Put("/calendars/" + url.PathEscape(calendar.ID))
	return c.check(resp, err)
}

// DeleteCalendar removes a calendar and its events. Missing calendars are ignored.
func (c *Client) DeleteCalendar(ctx context.Context, userID, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user_id", userID).
		Delete("/calendars/" + url.PathEscape(id))
	if err := c.check(resp, err); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// ListEvents returns the user's events.
func (c *Client) ListEvents(ctx context.Context, userID string) ([]persistence.Event, error) {
	schema, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user_id", userID).
		Get("/events")
	if err := c.check(resp, err); err != nil {
		return nil, err
	}
	events, skipped, err := decodeEvents(schema, resp.Body())
	if err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	for _, err := range skipped {
		c.logger.WarnContext(ctx, "skipped undecodable event", slog.String("user_id", userID), slog.Any("error", err))
	}
	return events, nil
}

// UpsertEvent creates or replaces an event.
func (c *Client) UpsertEvent(ctx context.Context, event persistence.Event) error {
	schema, err := c.Schema(ctx)
	if err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(encodeEvent(schema, event)).
		Put("/events/" + url.PathEscape(event.UID))
	return c.check(resp, err)
}

// DeleteEvent removes an event. Missing events are ignored.
func (c *Client) DeleteEvent(ctx context.Context, userID, uid string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user_id", userID).
		Delete("/events/" + url.PathEscape(uid))
	if err := c.check(resp, err); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}
