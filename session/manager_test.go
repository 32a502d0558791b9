package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cortexmem/engine/embedding"
	"github.com/cortexmem/engine/fs"
	"github.com/cortexmem/engine/llmchat"
	"github.com/cortexmem/engine/types"
	"github.com/cortexmem/engine/vectorstore"
)

func newTestManager(t *testing.T, deps CommitPipelineDeps) *Manager {
	t.Helper()
	fsys := fs.NewMemFS(fs.MemFSConfig{}, zap.NewNop())
	return New(fsys, deps, Config{ItemDelay: time.Millisecond}, zap.NewNop())
}

func TestAppendMessageCreatesSessionAndBumpsCount(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, CommitPipelineDeps{})

	err := m.AppendMessage(ctx, "thread-1", types.Message{Role: types.RoleUser, Content: "hello"})
	require.NoError(t, err)
	err = m.AppendMessage(ctx, "thread-1", types.Message{Role: types.RoleAssistant, Content: "hi there"})
	require.NoError(t, err)

	sess, err := m.GetSession(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, sess.Status)
	assert.Equal(t, 2, sess.MessageCount)
}

func TestAppendMessageRejectsInvalidRoleAndEmptyThread(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, CommitPipelineDeps{})

	err := m.AppendMessage(ctx, "thread-1", types.Message{Role: types.Role("bogus"), Content: "x"})
	assert.Error(t, err)

	err = m.AppendMessage(ctx, "", types.Message{Role: types.RoleUser, Content: "x"})
	assert.Error(t, err)
}

func TestCloseSessionTransitionsStatusWithoutPipelineDeps(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, CommitPipelineDeps{})

	require.NoError(t, m.AppendMessage(ctx, "thread-1", types.Message{Role: types.RoleUser, Content: "hello"}))
	require.NoError(t, m.CloseSession(ctx, "thread-1"))

	sess, err := m.GetSession(ctx, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, sess.Status)
}

func TestCloseSessionRunsCommitPipelineAndWritesCategoryMemories(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewDeterministicProvider(8)
	store := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 8}, zap.NewNop())

	chat := llmchat.NewScriptedProvider().WithFunc(func(req *llmchat.Request) (string, error) {
		return `{"preferences": [{"content": "User prefers dark mode.", "confidence": 0.9, "key": "ui+dark_mode"}]}`, nil
	})

	fsys := fs.NewMemFS(fs.MemFSConfig{}, zap.NewNop())
	m := New(fsys, CommitPipelineDeps{Chat: chat, Embed: embedder, Store: store}, Config{ItemDelay: time.Millisecond}, zap.NewNop())

	require.NoError(t, m.AppendMessage(ctx, "thread-2", types.Message{
		Role:    types.RoleUser,
		Content: "I really like dark mode interfaces.",
	}))

	sess, err := m.GetSession(ctx, "thread-2")
	require.NoError(t, err)
	sess.UserID = "user-1"
	require.NoError(t, m.writeSession(ctx, sess))

	require.NoError(t, m.CloseSession(ctx, "thread-2"))

	entries, err := fsys.List(ctx, "cortex://user/user-1/preferences")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	content, _, err := fsys.Read(ctx, entries[0].URI)
	require.NoError(t, err)
	assert.True(t, strings.Contains(content, "dark mode"))
	assert.True(t, strings.Contains(content, "**Confidence**: 0.90"))

	scored, err := store.Search(ctx, mustEmbed(t, embedder, content), 1, nil)
	require.NoError(t, err)
	require.Len(t, scored, 1)
}

func TestCloseSessionCommitPipelineIsIdempotentAgainstExistingMemories(t *testing.T) {
	ctx := context.Background()
	embedder := embedding.NewDeterministicProvider(8)
	store := vectorstore.NewMemStore(vectorstore.MemStoreConfig{Dimension: 8}, zap.NewNop())
	chat := llmchat.NewScriptedProvider().WithFunc(func(req *llmchat.Request) (string, error) {
		return `{"preferences": [{"content": "User prefers dark mode.", "confidence": 0.9, "key": "ui+dark_mode"}]}`, nil
	})
	fsys := fs.NewMemFS(fs.MemFSConfig{}, zap.NewNop())
	m := New(fsys, CommitPipelineDeps{Chat: chat, Embed: embedder, Store: store}, Config{ItemDelay: time.Millisecond}, zap.NewNop())

	for _, threadID := range []string{"thread-a", "thread-b"} {
		require.NoError(t, m.AppendMessage(ctx, threadID, types.Message{Role: types.RoleUser, Content: "dark mode please"}))
		sess, err := m.GetSession(ctx, threadID)
		require.NoError(t, err)
		sess.UserID = "user-2"
		require.NoError(t, m.writeSession(ctx, sess))
		require.NoError(t, m.CloseSession(ctx, threadID))
	}

	entries, err := fsys.List(ctx, "cortex://user/user-2/preferences")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "second close should dedupe against the already-written preference")
}

func mustEmbed(t *testing.T, embedder embedding.Provider, text string) []float32 {
	t.Helper()
	vec, err := embedder.EmbedQuery(context.Background(), text)
	require.NoError(t, err)
	return vec
}

func TestStringSimilarity(t *testing.T) {
	assert.Greater(t, stringSimilarity("ui+dark_mode", "ui+dark_mode"), 0.99)
	assert.Less(t, stringSimilarity("ui+dark_mode", "billing+invoice"), 0.3)
}
