// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/brainchat/internal/model"
)

func sampleSessions() []model.ChatSession {
	base := time.UnixMilli(1_700_000_000_000)
	return []model.ChatSession{
		{
			ID:        "s2",
			Title:     "Recursion basics",
			CreatedAt: base.Add(time.Minute),
			IsPinned:  true,
			Messages: []model.Message{
				{ID: "m1", Role: model.RoleUser, Content: "Explain recursion", CreatedAt: base.Add(time.Minute)},
				{ID: "m2", Role: model.RoleAssistant, Content: "It calls itself.", CreatedAt: base.Add(2 * time.Minute)},
			},
		},
		{
			ID:        "empty",
			Title:     model.DefaultTitle,
			CreatedAt: base,
			Messages:  []model.Message{},
		},
		{
			ID:        "s1",
			Title:     "Hello",
			CreatedAt: base,
			Messages: []model.Message{
				{ID: "m0", Role: model.RoleUser, Content: "hi", CreatedAt: base},
			},
		},
	}
}

// =============================================================================
// KV BACKENDS
// =============================================================================

func TestKVBackends(t *testing.T) {
	for _, driver := range Drivers() {
		t.Run(driver, func(t *testing.T) {
			kv, err := Open(driver, t.TempDir())
			require.NoError(t, err)
			defer kv.Close()
			ctx := context.Background()

			_, err = kv.Get(ctx, DefaultKey)
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, kv.Put(ctx, DefaultKey, []byte(`[1]`)))
			require.NoError(t, kv.Put(ctx, DefaultKey, []byte(`[1,2]`)))

			got, err := kv.Get(ctx, DefaultKey)
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(got))
		})
	}
}

func TestKVBackends_Reopen(t *testing.T) {
	for _, driver := range Drivers() {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			ctx := context.Background()

			kv, err := Open(driver, dir)
			require.NoError(t, err)
			require.NoError(t, kv.Put(ctx, "k", []byte("v")))
			require.NoError(t, kv.Close())

			kv, err = Open(driver, dir)
			require.NoError(t, err)
			defer kv.Close()
			got, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v", string(got))
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestFileKV_EscapesKey(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	require.NoError(t, kv.Put(context.Background(), "../escape", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.json"))
	assert.True(t, os.IsNotExist(err))
}

// =============================================================================
// ADAPTER
// =============================================================================

func TestAdapter_RoundTrip(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	a := NewAdapter(kv, "", nil)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, sampleSessions()))
	got, found, err := a.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)

	require.Len(t, got, 2, "empty session is not persisted")
	want := sampleSessions()
	for i, w := range []model.ChatSession{want[0], want[2]} {
		assert.Equal(t, w.ID, got[i].ID)
		assert.Equal(t, w.Title, got[i].Title)
		assert.Equal(t, w.IsPinned, got[i].IsPinned)
		assert.True(t, w.CreatedAt.Equal(got[i].CreatedAt))
		require.Len(t, got[i].Messages, len(w.Messages))
		for j := range w.Messages {
			assert.Equal(t, w.Messages[j].ID, got[i].Messages[j].ID)
			assert.Equal(t, w.Messages[j].Role, got[i].Messages[j].Role)
			assert.Equal(t, w.Messages[j].Content, got[i].Messages[j].Content)
		}
	}
}

func TestAdapter_RecordShape(t *testing.T) {
	data, err := Encode(sampleSessions()[:1])
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	for _, field := range []string{"id", "title", "messages", "createdAt", "isPinned"} {
		assert.Contains(t, raw[0], field)
	}
	assert.Equal(t, float64(1_700_000_060_000), raw[0]["createdAt"])

	msg := raw[0]["messages"].([]any)[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, float64(1_700_000_060_000), msg["createdAt"])
}

func TestDecode_MissingPinFlag(t *testing.T) {
	got, err := Decode([]byte(`[{"id":"a","title":"T","messages":[{"id":"m","role":"user","content":"x","createdAt":1}],"createdAt":1}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].IsPinned)
}

func TestDecode_SkipsUnknownRoles(t *testing.T) {
	got, err := Decode([]byte(`[{"id":"a","title":"T","messages":[` +
		`{"id":"m1","role":"system","content":"s","createdAt":1},` +
		`{"id":"m2","role":"user","content":"hi","createdAt":2}],"createdAt":1}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Messages, 1)
	assert.Equal(t, "m2", got[0].Messages[0].ID)
}

func TestAdapter_LoadMissing(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	got, found, err := NewAdapter(kv, "", nil).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestAdapter_LoadCorrupt(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Put(context.Background(), DefaultKey, []byte(`{not json`)))

	core, logs := observer.New(zapcore.WarnLevel)
	_, found, err := NewAdapter(kv, "", zap.New(core)).Load(context.Background())

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, DefaultKey, perr.Key)
	assert.False(t, found)
	assert.Equal(t, 1, logs.FilterMessage("PERSISTENCE_PARSE_ERROR").Len())
}

func TestAdapter_SaveEmptyClears(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	a := NewAdapter(kv, "", nil)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, sampleSessions()))
	require.NoError(t, a.Save(ctx, []model.ChatSession{{ID: "blank"}}))

	raw, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	got, found, err := a.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, got)
}

// =============================================================================
// WRITER
// =============================================================================

// slowKV blocks each Put until released and records what was written.
type slowKV struct {
	mu      sync.Mutex
	puts    [][]byte
	gate    chan struct{}
	entered chan struct{}
	err     error
}

func (s *slowKV) Get(context.Context, string) ([]byte, error) { return nil, ErrKeyNotFound }
func (s *slowKV) Close() error                                { return nil }

func (s *slowKV) Put(_ context.Context, _ string, v []byte) error {
	if s.gate != nil {
		s.entered <- struct{}{}
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, v)
	return s.err
}

func (s *slowKV) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

func TestWriter_CoalescesToLatest(t *testing.T) {
	kv := &slowKV{gate: make(chan struct{}), entered: make(chan struct{}, 8)}
	w := NewWriter(NewAdapter(kv, "", nil), nil)

	all := sampleSessions()
	w.Submit(all[:1])
	<-kv.entered

	// These arrive while the first write is blocked
	w.Submit(all[:2])
	w.Submit(all)

	close(kv.gate)
	w.Flush()
	w.Close()

	require.Equal(t, 2, kv.count())
	last, err := Decode(kv.puts[1])
	require.NoError(t, err)
	assert.Len(t, last, 2, "latest snapshot wins")
}

func TestWriter_CloseFlushesPending(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	a := NewAdapter(kv, "", nil)
	w := NewWriter(a, nil)

	w.Submit(sampleSessions())
	w.Close()
	w.Submit(nil) // ignored after close

	got, found, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, got, 2)
}

func TestWriter_FailureIsLogged(t *testing.T) {
	kv := &slowKV{err: errors.New("disk full")}
	core, logs := observer.New(zapcore.ErrorLevel)
	w := NewWriter(NewAdapter(kv, "", nil), zap.New(core))

	w.Submit(sampleSessions())
	w.Flush()
	w.Close()

	entries := logs.FilterMessage("PERSIST_WRITE_FAILED").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "disk full", entries[0].ContextMap()["error"])
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestFormatSessionList(t *testing.T) {
	assert.Equal(t, "No sessions found.", FormatSessionList(nil))

	out := FormatSessionList(Persistable(sampleSessions()))
	assert.Contains(t, out, "Recursion basics")
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "*")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Explain...", Preview(sampleSessions()[0], 10))
	assert.Equal(t, "", Preview(sampleSessions()[1], 10))
}
