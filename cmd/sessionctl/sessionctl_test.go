package main

import (
	"bytes"
	"testing"

	"github.com/Farengier/gatewayd-console/internal/db"
	"github.com/Farengier/gatewayd-console/internal/session"
	"github.com/Farengier/gatewayd-console/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	store := storage.NewMemory()
	buf := &bytes.Buffer{}
	assert.ErrorIs(t, describe(buf, store), errNoSession)

	require.NoError(t, store.SetItem(session.StorageKey, `{"sessionKey":"s3cr3t","lastLogin":42,"credentials":"Basic x","user":{"name":"alice","role":"alice","isLoggedIn":true}}`))
	require.NoError(t, describe(buf, store))
	out := buf.String()
	assert.Contains(t, out, "session key: s****t")
	assert.Contains(t, out, "last login:  42")
	assert.Contains(t, out, "user:        alice [alice] loggedIn=true")
	assert.NotContains(t, out, "s3cr3t")

	require.NoError(t, store.SetItem(session.StorageKey, "{"))
	assert.Error(t, describe(buf, store))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "**", mask("ab"))
	assert.Equal(t, "a*c", mask("abc"))
}

func storeRaw(t *testing.T, cfg DBConfig, raw string) {
	t.Helper()
	dbc, err := db.New(cfg)
	require.NoError(t, err)
	store, err := storage.NewSQL(dbc)
	require.NoError(t, err)
	require.NoError(t, store.SetItem(session.StorageKey, raw))
	require.NoError(t, dbc.Close())
}

func TestRun(t *testing.T) {
	cfg := DBConfig{Path: t.TempDir(), BackupCnt: 2, Sync: "1h"}
	buf := &bytes.Buffer{}

	require.NoError(t, run(buf, cfg, false))
	assert.Contains(t, buf.String(), "no stored session")

	storeRaw(t, cfg, "{")
	assert.Error(t, run(buf, cfg, false), "a broken snapshot is a failure")

	buf.Reset()
	require.NoError(t, run(buf, cfg, true))
	assert.Contains(t, buf.String(), "stored session removed")

	buf.Reset()
	require.NoError(t, run(buf, cfg, false))
	assert.Contains(t, buf.String(), "no stored session")
}
