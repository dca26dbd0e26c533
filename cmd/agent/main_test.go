package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmcp-agent/internal/domain/entity"
	"webmcp-agent/internal/infrastructure/config"
	"webmcp-agent/internal/infrastructure/storage/sqlite"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPageCommandsRequireURL(t *testing.T) {
	_, err := run(t, "--config", "", "tools")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--url is required")
}

func TestTraces_ListAndShow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "traces.db")
	t.Setenv(config.EnvTraceDB, dbPath)

	store, err := sqlite.NewTraceStore(dbPath)
	require.NoError(t, err)
	at := time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(context.Background(), entity.TraceRecord{
		ConversationID: "conv-1",
		PageURL:        "https://example.test/flights",
		StartedAt:      at,
		UpdatedAt:      at,
		EntryCount:     3,
		Payload:        `{"conversationId":"conv-1","entries":[]}`,
	}))
	require.NoError(t, store.Close())

	out, err := run(t, "--config", "", "traces")
	require.NoError(t, err)
	assert.Contains(t, out, "conv-1")
	assert.Contains(t, out, "https://example.test/flights")

	out, err = run(t, "--config", "", "traces", "conv-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversationId":"conv-1","entries":[]}`, out)

	_, err = run(t, "--config", "", "traces", "missing")
	assert.ErrorIs(t, err, entity.ErrTraceNotFound)
}

func TestTraces_Empty(t *testing.T) {
	t.Setenv(config.EnvTraceDB, filepath.Join(t.TempDir(), "traces.db"))

	out, err := run(t, "--config", "", "traces")
	require.NoError(t, err)
	assert.Contains(t, out, "No traces archived yet")
}
