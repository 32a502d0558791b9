package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cortexmem/engine/cortexerr"
	"github.com/cortexmem/engine/fs"
	"github.com/cortexmem/engine/types"
	"github.com/cortexmem/engine/uri"
)

// Config bounds the session manager's behavior.
type Config struct {
	// RedisClient, when set, backs the per-thread exclusive lock with a
	// distributed SET NX instead of an in-process mutex map.
	RedisClient *redis.Client
	// LockTTL bounds how long a redis-backed lock may be held before it is
	// considered abandoned, default 30s. Unused for the local locker.
	LockTTL time.Duration
	// ItemDelay throttles the commit pipeline's per-item writes (spec §4.6
	// "Rate limiting"), default 500ms.
	ItemDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ItemDelay <= 0 {
		c.ItemDelay = 500 * time.Millisecond
	}
	return c
}

// Manager implements the Session Manager & Commit Pipeline (spec §4.6).
type Manager struct {
	fsys   fs.FileSystem
	locker locker
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	pipeline *commitPipeline
}

// New wires a Manager. chat/embed/store/gen back the close-session commit
// pipeline (layer generation, category extraction, vector indexing).
func New(fsys fs.FileSystem, pipeline CommitPipelineDeps, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "session_manager"))
	cfg = cfg.withDefaults()

	var l locker
	if cfg.RedisClient != nil {
		l = newRedisLocker(cfg.RedisClient, "", cfg.LockTTL)
	} else {
		l = newLocalLocker()
	}

	return &Manager{
		fsys:     fsys,
		locker:   l,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		pipeline: newCommitPipeline(fsys, pipeline, cfg, logger),
	}
}

// AppendMessage validates role, writes the message as a timestamped
// markdown file under the thread's timeline, and atomically bumps
// message_count in .session.json, creating the session on first append
// (spec §4.6 "Message append").
func (m *Manager) AppendMessage(ctx context.Context, threadID string, msg types.Message) error {
	if !msg.Role.Valid() {
		return cortexerr.Newf(cortexerr.Validation, "append_message: invalid role %q", msg.Role)
	}
	if threadID == "" {
		return cortexerr.New(cortexerr.Validation, "append_message: thread_id is required")
	}

	release, err := m.locker.lock(ctx, threadID)
	if err != nil {
		return cortexerr.New(cortexerr.Other, "append_message: failed to acquire session lock").WithCause(err)
	}
	defer release()

	at := msg.Timestamp
	if at.IsZero() {
		at = m.now()
	}
	body := formatMessage(msg, at)
	target := timelineURI(threadID, at)
	if err := m.fsys.Write(ctx, target.String(), body); err != nil {
		return cortexerr.New(cortexerr.Other, "append_message: timeline write failed").WithCause(err)
	}

	sess, err := m.getOrCreateSession(ctx, threadID)
	if err != nil {
		return err
	}
	sess.MessageCount++
	sess.UpdatedAt = m.now().UTC()
	if err := m.writeSession(ctx, sess); err != nil {
		return err
	}
	return nil
}

// CloseSession transitions the session to Closed and runs the commit
// pipeline: ensure_timeline_layers, category memory extraction, and vector
// indexing (spec §4.6 "Close session").
func (m *Manager) CloseSession(ctx context.Context, threadID string) error {
	release, err := m.locker.lock(ctx, threadID)
	if err != nil {
		return cortexerr.New(cortexerr.Other, "close_session: failed to acquire session lock").WithCause(err)
	}

	sess, err := m.getOrCreateSession(ctx, threadID)
	if err != nil {
		release()
		return err
	}
	sess.Status = StatusClosed
	sess.UpdatedAt = m.now().UTC()
	if err := m.writeSession(ctx, sess); err != nil {
		release()
		return err
	}
	release()

	return m.pipeline.run(ctx, sess)
}

// GetSession returns the current session record.
func (m *Manager) GetSession(ctx context.Context, threadID string) (Session, error) {
	return m.readSession(ctx, threadID)
}

func (m *Manager) getOrCreateSession(ctx context.Context, threadID string) (Session, error) {
	sess, err := m.readSession(ctx, threadID)
	if err == nil {
		return sess, nil
	}
	if cortexerr.CodeOf(err) != cortexerr.NotFound {
		return Session{}, err
	}
	now := m.now().UTC()
	sess = Session{ThreadID: threadID, Status: StatusOpen, CreatedAt: now, UpdatedAt: now}
	if err := m.writeSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (m *Manager) readSession(ctx context.Context, threadID string) (Session, error) {
	content, _, err := m.fsys.Read(ctx, sessionFileURI(threadID).String())
	if err != nil {
		return Session{}, cortexerr.New(cortexerr.NotFound, "session not found").WithCause(err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(content), &sess); err != nil {
		return Session{}, cortexerr.New(cortexerr.Parse, "session file unparseable").WithCause(err)
	}
	return sess, nil
}

func (m *Manager) writeSession(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return cortexerr.New(cortexerr.Other, "session marshal failed").WithCause(err)
	}
	if err := m.fsys.Write(ctx, sessionFileURI(sess.ThreadID).String(), string(data)); err != nil {
		return cortexerr.New(cortexerr.Other, "session write failed").WithCause(err)
	}
	return nil
}

func formatMessage(msg types.Message, at time.Time) string {
	return fmt.Sprintf("**Role**: %s\n**Timestamp**: %s\n\n%s\n", msg.Role, at.UTC().Format(time.RFC3339), msg.Content)
}

// threadTimelineURI exposes the timeline root for callers that need to list
// or aggregate a thread's messages directly (commit pipeline, tests).
func threadTimelineURI(threadID string) uri.URI {
	return timelineRootURI(threadID)
}
