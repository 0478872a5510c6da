package sessionstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naskah/internal/document/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadEmpty(t *testing.T) {
	s := openStore(t)
	sess, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.NoError(t, s.CheckSchema())
}

func TestSaveLoadClear(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	saved := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, model.StoredSession{
		User:    model.User{ID: "u1", Username: "ana", Role: model.RoleUser, Permissions: []string{"read", "write"}},
		Token:   "tok-1",
		SavedAt: saved,
	}))
	require.NoError(t, s.Save(ctx, model.StoredSession{
		User:    model.User{ID: "u2", Username: "budi", Role: model.RoleAdmin},
		Token:   "tok-2",
		SavedAt: saved.Add(time.Hour),
	}))

	sess, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "u2", sess.User.ID)
	assert.Equal(t, model.RoleAdmin, sess.User.Role)
	assert.Equal(t, []string{}, sess.User.Permissions)
	assert.Equal(t, "tok-2", sess.Token)
	assert.True(t, saved.Add(time.Hour).Equal(sess.SavedAt))

	require.NoError(t, s.Clear(ctx))
	sess, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, model.StoredSession{
		User:    model.User{ID: "u1", Username: "ana", Permissions: []string{"read"}},
		Token:   "tok",
		SavedAt: time.Now(),
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	sess, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, []string{"read"}, sess.User.Permissions)
}
