package sheet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"
)

// RetryPolicy bounds retries of rate-limited calls.
type RetryPolicy struct {
	// MaxAttempts counts the first call. Values below 1 mean 1.
	MaxAttempts int
	// BaseDelay is the wait after the first rejection; it doubles each time.
	BaseDelay time.Duration
	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultRetryPolicy is three attempts starting at half a second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client applies the retry policy to backend calls.
type Client struct {
	conn   *Connection
	policy RetryPolicy
	sleep  Sleeper
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithSleeper replaces the backoff wait, for tests.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a Client bound to a shared connection.
func NewClient(conn *Connection, opts ...Option) *Client {
	c := &Client{
		conn:   conn,
		policy: DefaultRetryPolicy(),
		sleep:  SleepContext,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy.MaxAttempts < 1 {
		c.policy.MaxAttempts = 1
	}
	return c
}

// Policy returns the effective retry policy.
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Handle addresses one worksheet of one resource.
type Handle struct {
	Resource  string
	Worksheet string

	client  *Client
	backend Backend
}

// Open resolves a worksheet handle. Fails with NotFound if the worksheet
// does not exist in the resource.
func (c *Client) Open(ctx context.Context, resource, worksheet string) (*Handle, error) {
	b, err := c.conn.Backend(ctx, resource)
	if err != nil {
		return nil, err
	}

	var names []string
	err = c.do(ctx, "open", worksheet, func(ctx context.Context) error {
		var err error
		names, err = b.Worksheets(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !slices.Contains(names, worksheet) {
		return nil, NewNotFound("open", worksheet, "worksheet")
	}

	return &Handle{Resource: resource, Worksheet: worksheet, client: c, backend: b}, nil
}

// Ensure opens worksheet, creating it with header when it does not exist.
// Returns true when the worksheet was created.
func (c *Client) Ensure(ctx context.Context, resource, worksheet string, header []string) (*Handle, bool, error) {
	h, err := c.Open(ctx, resource, worksheet)
	if err == nil {
		return h, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}

	b, err := c.conn.Backend(ctx, resource)
	if err != nil {
		return nil, false, err
	}
	err = c.do(ctx, "create", worksheet, func(ctx context.Context) error {
		return b.Create(ctx, worksheet, header)
	})
	if err != nil {
		return nil, false, err
	}
	c.logger.Info("worksheet created", "resource", resource, "worksheet", worksheet, "columns", len(header))
	return &Handle{Resource: resource, Worksheet: worksheet, client: c, backend: b}, true, nil
}

// Worksheets lists the worksheets of resource.
func (c *Client) Worksheets(ctx context.Context, resource string) ([]string, error) {
	b, err := c.conn.Backend(ctx, resource)
	if err != nil {
		return nil, err
	}
	var names []string
	err = c.do(ctx, "list", "", func(ctx context.Context) error {
		var err error
		names, err = b.Worksheets(ctx)
		return err
	})
	return names, err
}

// Check verifies backend credentials when the backend supports it.
func (c *Client) Check(ctx context.Context, resource string) error {
	b, err := c.conn.Backend(ctx, resource)
	if err != nil {
		return err
	}
	chk, ok := b.(Checker)
	if !ok {
		return nil
	}
	return c.do(ctx, "check", "", chk.Check)
}

// ReadAll returns header followed by data rows.
func (h *Handle) ReadAll(ctx context.Context) ([][]string, error) {
	var rows [][]string
	err := h.client.do(ctx, "read", h.Worksheet, func(ctx context.Context) error {
		var err error
		rows, err = h.backend.ReadAll(ctx, h.Worksheet)
		return err
	})
	return rows, err
}

// Append writes row after the last data row.
func (h *Handle) Append(ctx context.Context, row []string) error {
	return h.client.do(ctx, "append", h.Worksheet, func(ctx context.Context) error {
		return h.backend.Append(ctx, h.Worksheet, row)
	})
}

// ReplaceAll clears the worksheet and writes header and rows.
func (h *Handle) ReplaceAll(ctx context.Context, header []string, rows [][]string) error {
	return h.client.do(ctx, "replace", h.Worksheet, func(ctx context.Context) error {
		return h.backend.ReplaceAll(ctx, h.Worksheet, header, rows)
	})
}

// UpdateRow overwrites the data row at index.
func (h *Handle) UpdateRow(ctx context.Context, index int, row []string) error {
	if index < 0 {
		return NewSchemaMismatch("update", h.Worksheet, fmt.Sprintf("negative row index %d", index))
	}
	return h.client.do(ctx, "update", h.Worksheet, func(ctx context.Context) error {
		return h.backend.UpdateRow(ctx, h.Worksheet, index, row)
	})
}

// DeleteRow removes the data row at index, shifting later rows up.
func (h *Handle) DeleteRow(ctx context.Context, index int) error {
	if index < 0 {
		return NewSchemaMismatch("delete", h.Worksheet, fmt.Sprintf("negative row index %d", index))
	}
	return h.client.do(ctx, "delete", h.Worksheet, func(ctx context.Context) error {
		return h.backend.DeleteRow(ctx, h.Worksheet, index)
	})
}

// do runs fn, retrying only RateLimited failures.
func (c *Client) do(ctx context.Context, op, worksheet string, fn func(context.Context) error) error {
	delay := c.policy.BaseDelay
	var last error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		err := classify(op, worksheet, fn(ctx))
		if err == nil {
			if attempt > 1 {
				c.logger.Debug("call succeeded after retry", "op", op, "worksheet", worksheet, "attempt", attempt)
			}
			return nil
		}
		if !IsRateLimited(err) {
			return err
		}
		last = err

		if attempt == c.policy.MaxAttempts {
			break
		}
		c.logger.Warn("rate limited, backing off",
			"op", op,
			"worksheet", worksheet,
			"attempt", attempt,
			"delay", delay,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return &Error{Code: ErrCodeUnavailable, Op: op, Worksheet: worksheet, Message: "retry interrupted", Err: err}
		}
		delay *= 2
		if c.policy.MaxDelay > 0 && delay > c.policy.MaxDelay {
			delay = c.policy.MaxDelay
		}
	}

	c.logger.Error("retry budget exhausted", "op", op, "worksheet", worksheet, "attempts", c.policy.MaxAttempts)
	return &Error{
		Code:      ErrCodeUnavailable,
		Op:        op,
		Worksheet: worksheet,
		Message:   fmt.Sprintf("still rate limited after %d attempts", c.policy.MaxAttempts),
		Err:       last,
	}
}
