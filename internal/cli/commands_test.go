package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/questline/internal/auth"
	"github.com/yolodolo42/questline/internal/config"
	"github.com/yolodolo42/questline/internal/session"
	"github.com/yolodolo42/questline/internal/testutil"
)

func useServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	old := cfg
	cfg = &config.Config{ServerURL: srv.URL, Cookie: "session=test", RequestTimeout: 5 * time.Second}
	t.Cleanup(func() { cfg = old })
}

// testCommand builds a throwaway command with captured output. flags names
// string flags to declare, or "yes" for the confirmation bool.
func testCommand(t *testing.T, stdin string, flags ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	for _, f := range flags {
		if f == "yes" {
			cmd.Flags().Bool(f, false, "")
			continue
		}
		cmd.Flags().String(f, "", "")
	}

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetContext(context.Background())
	return cmd, out
}

func TestStoryCommands(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/stories", r.URL.Path)
			_, _ = w.Write([]byte(`{"success":true,"stories":[{"id":"st-1","created_at":"2025-01-01T00:00:00","world_description":"Glass desert"}]}`))
		})

		cmd, out := testCommand(t, "")
		require.NoError(t, runStoryList(cmd, nil))
		assert.Contains(t, out.String(), "st-1")
		assert.Contains(t, out.String(), "Glass desert")
	})

	t.Run("list empty", func(t *testing.T) {
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"stories":[]}`))
		})

		cmd, out := testCommand(t, "")
		require.NoError(t, runStoryList(cmd, nil))
		assert.Contains(t, out.String(), "No stories found.")
	})

	t.Run("new prompts for missing descriptions", func(t *testing.T) {
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Glass desert", body["world_description"])
			assert.Equal(t, "A salt trader", body["character_description"])
			_, _ = w.Write([]byte(`{"success":true,"story_id":"st-2"}`))
		})

		cmd, out := testCommand(t, "A salt trader\n", "world", "character")
		require.NoError(t, cmd.Flags().Set("world", "Glass desert"))
		require.NoError(t, runStoryNew(cmd, nil))
		assert.Contains(t, out.String(), "Describe your character: ")
		assert.Contains(t, out.String(), "questline resume st-2")
	})

	t.Run("new requires both descriptions", func(t *testing.T) {
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("server must not be called")
		})

		cmd, _ := testCommand(t, "\n\n", "world", "character")
		assert.Error(t, runStoryNew(cmd, nil))
	})

	t.Run("delete asks first", func(t *testing.T) {
		called := false
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
			_, _ = w.Write([]byte(`{"success":true}`))
		})

		cmd, out := testCommand(t, "n\n", "yes")
		require.NoError(t, runStoryDelete(cmd, []string{"st-1"}))
		assert.False(t, called)
		assert.Contains(t, out.String(), "Cancelled.")

		cmd, out = testCommand(t, "y\n", "yes")
		require.NoError(t, runStoryDelete(cmd, []string{"st-1"}))
		assert.True(t, called)
		assert.Contains(t, out.String(), "Deleted story st-1.")
	})
}

func TestCharacterCommands(t *testing.T) {
	t.Run("show", func(t *testing.T) {
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/character/s-1", r.URL.Path)
			_, _ = w.Write([]byte(`{"name":"Ayla","lore":"A cartographer"}`))
		})

		cmd, out := testCommand(t, "")
		require.NoError(t, runCharacterShow(cmd, []string{"s-1"}))
		assert.Contains(t, out.String(), "Ayla")
		assert.Contains(t, out.String(), "A cartographer")
	})

	t.Run("edit keeps unchanged fields", func(t *testing.T) {
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_, _ = w.Write([]byte(`{"name":"Ayla","lore":"A cartographer"}`))
			case http.MethodPut:
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "Ayla", body["name"])
				assert.Equal(t, "Maps the dead roads", body["lore"])
				_, _ = w.Write([]byte(`{"name":"Ayla","lore":"Maps the dead roads"}`))
			}
		})

		cmd, out := testCommand(t, "", "name", "lore")
		require.NoError(t, cmd.Flags().Set("lore", "Maps the dead roads"))
		require.NoError(t, runCharacterEdit(cmd, []string{"s-1"}))
		assert.Contains(t, out.String(), "Character updated.")
	})

	t.Run("edit needs a flag", func(t *testing.T) {
		cmd, _ := testCommand(t, "", "name", "lore")
		assert.Error(t, runCharacterEdit(cmd, []string{"s-1"}))
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("status logged in", func(t *testing.T) {
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/check-auth", r.URL.Path)
			assert.Equal(t, "session=test", r.Header.Get("Cookie"))
			_, _ = w.Write([]byte(`{"authenticated":true,"username":"ayla"}`))
		})

		cmd, out := testCommand(t, "")
		require.NoError(t, runAuthStatus(cmd, nil))
		assert.Contains(t, out.String(), "as ayla")
	})

	t.Run("status logged out", func(t *testing.T) {
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"authenticated":false}`))
		})

		cmd, out := testCommand(t, "")
		require.NoError(t, runAuthStatus(cmd, nil))
		assert.Contains(t, out.String(), "Not logged in")
	})

	t.Run("logout forgets the stored cookie", func(t *testing.T) {
		testutil.SetEnv(t, "HOME", testutil.TempDir(t))
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		store, err := getAuthStore()
		require.NoError(t, err)
		require.NoError(t, store.Set(cfg.ServerURL, auth.Credential{Username: "ayla", Cookie: "session=abc"}))

		cmd, out := testCommand(t, "")
		require.NoError(t, runAuthLogout(cmd, nil))
		assert.Contains(t, out.String(), "Logged out of")

		store, err = getAuthStore()
		require.NoError(t, err)
		_, err = store.Get(cfg.ServerURL)
		assert.ErrorIs(t, err, auth.ErrNotLoggedIn)
	})

	t.Run("logout when not logged in", func(t *testing.T) {
		testutil.SetEnv(t, "HOME", testutil.TempDir(t))
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("server must not be called")
		})

		cmd, out := testCommand(t, "")
		require.NoError(t, runAuthLogout(cmd, nil))
		assert.Contains(t, out.String(), "Not logged in.")
	})
}

func TestLoadStory(t *testing.T) {
	t.Run("replays history and character", func(t *testing.T) {
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/story/st-1", r.URL.Path)
			_, _ = w.Write([]byte(`{"character":{"name":"Ayla"},"chat_history":[{"role":"ai","content":"The tide turns."}]}`))
		})

		ctrl := session.New(session.Options{SessionID: "st-1", Resume: true})
		loadStory(context.Background(), newAPIClient(), "st-1")(ctrl)

		entries := ctrl.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, "The tide turns.", entries[0].Text)
	})

	t.Run("failed fetch leaves the transcript empty", func(t *testing.T) {
		useServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		ctrl := session.New(session.Options{SessionID: "st-1", Resume: true})
		prepare := loadStory(context.Background(), newAPIClient(), "st-1")
		require.NotNil(t, prepare)
		prepare(ctrl)

		assert.Empty(t, ctrl.Entries())
		assert.Equal(t, session.ModeActive, ctrl.Mode())
	})
}
