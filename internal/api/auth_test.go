package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Login(t *testing.T) {
	t.Run("returns session cookie", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/login", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ayla", body["username"])
			assert.Equal(t, "hunter2", body["password"])

			http.SetCookie(w, &http.Cookie{Name: "session", Value: "eyJ1c2VyIjoiYXlsYSJ9", Path: "/"})
			_, _ = w.Write([]byte(`{"success":true,"message":"Login successful"}`))
		})

		cookie, err := c.Login(context.Background(), "ayla", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, "session=eyJ1c2VyIjoiYXlsYSJ9", cookie)
	})

	t.Run("bad password", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"message":"Invalid username or password"}`))
		})

		_, err := c.Login(context.Background(), "ayla", "nope")
		require.ErrorIs(t, err, ErrServer)
		assert.Contains(t, err.Error(), "Invalid username or password")
	})

	t.Run("no cookie", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true}`))
		})

		_, err := c.Login(context.Background(), "ayla", "hunter2")
		assert.ErrorIs(t, err, ErrNoCookie)
	})
}

func TestClient_AuthEndpoints(t *testing.T) {
	t.Run("register", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/register", r.URL.Path)
			_, _ = w.Write([]byte(`{"success":false,"message":"Username already exists"}`))
		})
		err := c.Register(context.Background(), "ayla", "pw")
		assert.ErrorIs(t, err, ErrServer)
	})

	t.Run("check auth", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "session=abc", r.Header.Get("Cookie"))
			_, _ = w.Write([]byte(`{"authenticated":true,"username":"ayla"}`))
		})
		st, err := c.CheckAuth(context.Background())
		require.NoError(t, err)
		assert.True(t, st.Authenticated)
		assert.Equal(t, "ayla", st.Username)
	})

	t.Run("logout", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/logout", r.URL.Path)
			_, _ = w.Write([]byte(`{"success":true}`))
		})
		require.NoError(t, c.Logout(context.Background()))
	})
}
