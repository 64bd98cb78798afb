package session

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/questline/internal/testutil"
)

func readRecords(t *testing.T, path string) []logRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []logRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec logRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestEventLog(t *testing.T) {
	t.Run("records both directions as jsonl", func(t *testing.T) {
		dir := testutil.TempDir(t)
		l, err := OpenEventLog(dir, "s-1")
		require.NoError(t, err)

		l.Received([]byte(`{"type":"ai_chunk","content":"hi"}`))
		l.Received([]byte(`not json`))
		l.Sent("look")
		l.Close()

		assert.Equal(t, filepath.Join(dir, "sessions", "s-1.jsonl"), l.Path())
		recs := readRecords(t, l.Path())
		require.Len(t, recs, 3)

		assert.Equal(t, "in", recs[0].Direction)
		assert.JSONEq(t, `{"type":"ai_chunk","content":"hi"}`, string(recs[0].Raw))
		assert.Equal(t, "not json", recs[1].Text)
		assert.Equal(t, "out", recs[2].Direction)
		assert.Equal(t, "look", recs[2].Text)

		assert.NotEmpty(t, recs[0].ID)
		assert.Less(t, recs[0].ID, recs[1].ID)
		assert.Less(t, recs[1].ID, recs[2].ID)
	})

	t.Run("file is private", func(t *testing.T) {
		dir := testutil.TempDir(t)
		l, err := OpenEventLog(dir, "s-2")
		require.NoError(t, err)
		defer l.Close()

		info, err := os.Stat(l.Path())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("writes after close are dropped", func(t *testing.T) {
		dir := testutil.TempDir(t)
		l, err := OpenEventLog(dir, "s-3")
		require.NoError(t, err)
		l.Close()
		l.Sent("ignored")
		assert.Empty(t, readRecords(t, l.Path()))
	})

	t.Run("nil log is a no-op", func(t *testing.T) {
		var l *EventLog
		l.Received([]byte(`{}`))
		l.Sent("x")
		l.Close()
	})

	t.Run("requires data dir", func(t *testing.T) {
		_, err := OpenEventLog("", "s-1")
		assert.Error(t, err)
	})
}
