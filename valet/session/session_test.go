package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valet-assistant/valet-core/valet/store"
)

func TestStore_SaveAndGet(t *testing.T) {
	s := NewStore(store.NewMemory(), 0)
	ctx := context.Background()

	err := s.Save(ctx, State{
		SessionID:      "sess-1",
		LastSpokenText: "PR 42 is green and has two approvals.",
		LastIntent:     "pr.summarize",
		LastResponse:   map[string]any{"pr_number": 42},
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pr.summarize", got.LastIntent)
	assert.Equal(t, "PR 42 is green and has two approvals.", got.LastSpokenText)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStore_FreshSessionIsNil(t *testing.T) {
	s := NewStore(store.NewMemory(), 0)

	got, err := s.Get(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := NewStore(store.NewMemory(), 0)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, State{SessionID: "sess-1", LastIntent: "inbox.list", LastSpokenText: "first"}))
	require.NoError(t, s.Save(ctx, State{SessionID: "sess-1", LastIntent: "pr.summarize", LastSpokenText: "second"}))

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.LastSpokenText)
}

func TestStore_SaveRequiresSessionID(t *testing.T) {
	s := NewStore(store.NewMemory(), 0)
	err := s.Save(context.Background(), State{LastIntent: "inbox.list"})
	assert.Error(t, err)
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(store.NewMemory(), 0)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, State{SessionID: "sess-1", LastSpokenText: "hello"}))
	require.NoError(t, s.Delete(ctx, "sess-1"))

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a missing session is not an error.
	assert.NoError(t, s.Delete(ctx, "sess-1"))
}

func TestStore_TTLExpiry(t *testing.T) {
	s := NewStore(store.NewMemory(), 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, State{SessionID: "sess-1", LastSpokenText: "hello"}))
	time.Sleep(20 * time.Millisecond)

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
