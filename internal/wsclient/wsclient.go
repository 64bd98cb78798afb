package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"nhooyr.io/websocket"
)

const defaultReadLimit int64 = 1 << 20

// ErrClosed is returned by Read once the server closed the channel normally.
var ErrClosed = errors.New("channel closed")

// Dialer opens the live channel for a session.
type Dialer struct {
	baseURL   string
	cookie    string
	readLimit int64
	logger    *slog.Logger
}

// NewDialer creates a Dialer for the server at baseURL (http or https).
func NewDialer(baseURL, cookie string, readLimit int64, logger *slog.Logger) *Dialer {
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		cookie:    cookie,
		readLimit: readLimit,
		logger:    logger,
	}
}

// ChannelURL derives the ws:// or wss:// URL for a session.
func ChannelURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = u.Path + "/ws/" + url.PathEscape(sessionID)
	u.RawPath = ""
	return u.String(), nil
}

// Conn is an open live channel.
type Conn struct {
	ws *websocket.Conn
}

// Dial opens the channel for sessionID.
func (d *Dialer) Dial(ctx context.Context, sessionID string) (*Conn, error) {
	wsURL, err := ChannelURL(d.baseURL, sessionID)
	if err != nil {
		return nil, err
	}

	var opts *websocket.DialOptions
	if d.cookie != "" {
		opts = &websocket.DialOptions{HTTPHeader: http.Header{"Cookie": {d.cookie}}}
	}

	ws, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	ws.SetReadLimit(d.readLimit)
	d.logger.Info("live channel connected", "url", wsURL)
	return &Conn{ws: ws}, nil
}

// Read blocks for the next text frame.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil, ErrClosed
			}
			return nil, err
		}
		if typ != websocket.MessageText {
			continue
		}
		return data, nil
	}
}

// Write sends text as one frame.
func (c *Conn) Write(ctx context.Context, text string) error {
	if err := c.ws.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close closes the channel normally.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "client closing")
}
