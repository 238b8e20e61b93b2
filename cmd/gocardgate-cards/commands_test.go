package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocardgate/cardstore"
)

func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCardLifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cards.db")

	out, err := run(t, db, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "0x1a2b3c4d")
	assert.Contains(t, out, "0xabcdef12")

	out, err = run(t, db, "add", "DE:AD:BE:EF", "Alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 0xdeadbeef - Alice (Authorized)")

	_, err = run(t, db, "add", "0xdeadbeef", "Alice again")
	assert.ErrorContains(t, err, "already exists")

	out, err = run(t, db, "add", "0x0102", "Bob", "--deny")
	require.NoError(t, err)
	assert.Contains(t, out, "(Denied)")

	out, err = run(t, db, "update", "0x0102", "--authorize")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated 0x0102: Authorized")

	_, err = run(t, db, "update", "0x0102")
	assert.Error(t, err)

	_, err = run(t, db, "update", "0x0102", "--authorize", "--deny")
	assert.Error(t, err)

	_, err = run(t, db, "update", "0x0303", "--deny")
	assert.ErrorContains(t, err, "not found")

	out, err = run(t, db, "delete", "0x0102")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0x0102")

	_, err = run(t, db, "delete", "0x0102")
	assert.ErrorContains(t, err, "not found")

	_, err = run(t, db, "add", "xyz", "Bad")
	assert.Error(t, err)
}

func TestLogs(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cards.db")

	out, err := run(t, db, "logs")
	require.NoError(t, err)
	assert.Contains(t, out, "No access logs yet.")

	s, err := cardstore.OpenSQLite(context.Background(), db)
	require.NoError(t, err)
	_, err = s.RecordAccess(context.Background(), cardstore.AccessEvent{CardID: "0x1a2b3c4d", Authorized: true, Remote: "10.0.0.7:4100"})
	require.NoError(t, err)
	_, err = s.RecordAccess(context.Background(), cardstore.AccessEvent{CardID: "0xffff", Authorized: false})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	out, err = run(t, db, "logs")
	require.NoError(t, err)
	assert.Contains(t, out, "0x1a2b3c4d")
	assert.Contains(t, out, "10.0.0.7:4100")
	assert.Contains(t, out, "Denied")

	out, err = run(t, db, "logs", "--limit", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "10.0.0.7:4100")
}
