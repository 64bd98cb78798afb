package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoCookie is returned when a login succeeded but the server set no cookie.
var ErrNoCookie = fmt.Errorf("%w: login did not return a session cookie", ErrServer)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthStatus is the server's view of the current cookie.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	data, err := c.do(ctx, http.MethodPost, "/api/register", credentials{username, password})
	if err != nil {
		return err
	}
	return decode(data, nil)
}

// Login authenticates and returns the Cookie header value to send on later
// requests.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	data, cookies, err := c.doWithCookies(ctx, http.MethodPost, "/api/login", credentials{username, password})
	if err != nil {
		return "", err
	}
	if err := decode(data, nil); err != nil {
		return "", err
	}

	pairs := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		if ck.Value == "" {
			continue
		}
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}
	if len(pairs) == 0 {
		return "", ErrNoCookie
	}
	return strings.Join(pairs, "; "), nil
}

// Logout ends the server-side session of the current cookie.
func (c *Client) Logout(ctx context.Context) error {
	data, err := c.do(ctx, http.MethodPost, "/api/logout", nil)
	if err != nil {
		return err
	}
	return decode(data, nil)
}

// CheckAuth reports whether the current cookie is logged in.
func (c *Client) CheckAuth(ctx context.Context) (AuthStatus, error) {
	var st AuthStatus
	data, err := c.do(ctx, http.MethodGet, "/api/check-auth", nil)
	if err != nil {
		return st, err
	}
	if err := decode(data, &st); err != nil {
		return st, err
	}
	return st, nil
}
