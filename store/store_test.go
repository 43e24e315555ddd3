package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mwanga/types"
)

func newSession() *types.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.Session{
		ID:             uuid.New(),
		Name:           "Amina",
		Company:        "Jua Power",
		BusinessSector: "Energy",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	var s SessionStorer = NewMemoryStore(0)
	sess := newSession()

	require.NoError(t, s.CreateSession(ctx, sess))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	updated, err := s.UpdateDocument(ctx, sess.ID, "catalog.pdf", "uploads/abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "catalog.pdf", updated.DocumentName)
	assert.Equal(t, "uploads/abc.pdf", updated.DocumentPath)
	assert.False(t, updated.UpdatedAt.Before(sess.UpdatedAt))

	require.NoError(t, s.DeleteSession(ctx, sess.ID))
	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	require.NoError(t, s.Close())
}

func TestMemoryStore_Missing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	id := uuid.New()

	_, err := s.GetSession(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.UpdateDocument(ctx, id, "a", "b")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, s.DeleteSession(ctx, id), ErrSessionNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	sess := newSession()
	require.NoError(t, s.CreateSession(ctx, sess))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amina", again.Name)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }

	sess := newSession()
	sess.UpdatedAt = now.UTC()
	require.NoError(t, s.CreateSession(ctx, sess))

	now = now.Add(59 * time.Minute)
	updated, err := s.UpdateDocument(ctx, sess.ID, "catalog.pdf", "uploads/abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, now.UTC(), updated.UpdatedAt)

	// The update restarts the lifetime.
	now = now.Add(59 * time.Minute)
	_, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.UpdateDocument(ctx, sess.ID, "a", "b")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, sess.ID), ErrSessionNotFound)
}

func TestMemoryStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }

	old, fresh := newSession(), newSession()
	old.UpdatedAt = now.Add(-2 * time.Hour)
	fresh.UpdatedAt = now
	require.NoError(t, s.CreateSession(ctx, old))
	require.NoError(t, s.CreateSession(ctx, fresh))

	var e Expirer = s
	n, err := e.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, s.sessions, 1)

	_, err = s.GetSession(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestMemoryStore_ZeroTTLKeepsSessions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	sess := newSession()
	sess.UpdatedAt = time.Now().Add(-24 * 365 * time.Hour)
	require.NoError(t, s.CreateSession(ctx, sess))

	_, err := s.GetSession(ctx, sess.ID)
	assert.NoError(t, err)
	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPGConfig_ConnString(t *testing.T) {
	c := PGConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "mwanga"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=mwanga sslmode=disable", c.ConnString())
}

func TestRedisSessionKey(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "mwanga:session:"+id.String(), sessionKey(id))

	_, err := decodeSession([]byte("nope"))
	assert.Error(t, err)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, RedisConfig{Addr: "127.0.0.1:1"}, nil)
	assert.Error(t, err)
}
