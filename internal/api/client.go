package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	defaultMaxFailures uint32        = 3
	defaultOpenTimeout time.Duration = 15 * time.Second
	defaultTimeout     time.Duration = 30 * time.Second

	maxBodyBytes = 8 << 20
)

var (
	// ErrServer wraps an {"error": ...} or {"success": false} body.
	ErrServer = errors.New("server rejected request")
	// ErrUnavailable is returned while the circuit is open.
	ErrUnavailable = errors.New("game server unavailable")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, body)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Cookie     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger

	// MaxFailures is the number of consecutive failures before requests fail fast.
	MaxFailures uint32
	// OpenTimeout is how long requests fail fast before a probe is allowed.
	OpenTimeout time.Duration
}

// Client talks to the game server's session, story and character endpoints.
type Client struct {
	baseURL string
	cookie  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// NewClient creates a Client. Zero-valued options get defaults.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	openTimeout := opts.OpenTimeout
	if openTimeout == 0 {
		openTimeout = defaultOpenTimeout
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "api:" + opts.BaseURL,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A 4xx means the server is up; only transport errors and 5xx count.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500
			}
			return err == nil
		},
	})

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		cookie:  opts.Cookie,
		http:    httpClient,
		breaker: cb,
		logger:  logger,
	}
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a request through the circuit breaker and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	data, _, err := c.doWithCookies(ctx, method, path, body)
	return data, err
}

// doWithCookies is do that also returns the cookies set by the response.
func (c *Client) doWithCookies(ctx context.Context, method, path string, body any) ([]byte, []*http.Cookie, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var cookies []*http.Cookie
	data, err := c.breaker.Execute(func() ([]byte, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil || method == http.MethodPost {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.cookie != "" {
			req.Header.Set("Cookie", c.cookie)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Code: resp.StatusCode, Body: string(b)}
		}
		cookies = resp.Cookies()
		return b, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, nil, fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
		}
		return nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"request", RedactJSON(string(payload)),
		"bytes", len(data),
	)
	return data, cookies, nil
}

func escape(id string) string {
	return url.PathEscape(id)
}

// decode unmarshals a body into v, surfacing {"error": "..."} bodies as ErrServer.
func decode(data []byte, v any) error {
	var probe struct {
		Error   json.RawMessage `json:"error"`
		Success *bool           `json:"success"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &probe); err == nil {
		if len(probe.Error) > 0 && string(probe.Error) != "null" {
			var msg string
			if err := json.Unmarshal(probe.Error, &msg); err != nil {
				msg = string(probe.Error)
			}
			return fmt.Errorf("%w: %s", ErrServer, msg)
		}
		if probe.Success != nil && !*probe.Success {
			return fmt.Errorf("%w: %s", ErrServer, probe.Message)
		}
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
