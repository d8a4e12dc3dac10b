package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "instance", "flood_data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flood.db")
	ctx := context.Background()

	s1, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s1.CreateUser(ctx, "tester", "t@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	exists, err := s2.UsernameExists(ctx, "tester")
	require.NoError(t, err)
	assert.True(t, exists, "data must survive reopen")
	assert.NoError(t, s2.Ping(ctx))
}

func TestUsers_CreateAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)

	byName, err := s.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u, byName)

	byID, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	_, err = s.UserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsers_Duplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "alice", "other@example.com", "hash")
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = s.CreateUser(ctx, "other", "alice@example.com", "hash")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	taken, err := s.EmailExists(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, taken)

	free, err := s.EmailExists(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, free)
}

func TestReports_CRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	img := "abc.png"
	created := time.Date(2025, 7, 14, 5, 0, 0, 0, time.UTC)
	first, err := s.CreateReport(ctx, models.Report{
		Lat: 35.9063, Lng: 128.5629, Content: "도로 침수", UserID: u.ID,
		Severity: "위험", ImageFilename: &img, CreatedAt: created, ZoneName: "노곡동",
	})
	require.NoError(t, err)
	second, err := s.CreateReport(ctx, models.Report{
		Lat: 35.88, Lng: 128.64, Content: "물 고임", UserID: u.ID, Severity: "주의",
	})
	require.NoError(t, err)

	list, err := s.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, "alice", list[1].Username)
	require.NotNil(t, list[1].ImageFilename)
	assert.Equal(t, "abc.png", *list[1].ImageFilename)
	assert.True(t, created.Equal(list[1].CreatedAt))
	assert.Equal(t, "노곡동", list[1].ZoneName)
	assert.Nil(t, list[0].ImageFilename)
	assert.Empty(t, list[0].ZoneName)

	require.NoError(t, s.UpdateReport(ctx, first.ID, "수위 상승", "심각"))
	got, err := s.GetReport(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "수위 상승", got.Content)
	assert.Equal(t, "심각", got.Severity)

	require.NoError(t, s.DeleteReport(ctx, first.ID))
	_, err = s.GetReport(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteReport(ctx, first.ID), ErrNotFound)
	assert.ErrorIs(t, s.UpdateReport(ctx, 999, "x", "주의"), ErrNotFound)
}

func TestListReports_EmptyIsNotNil(t *testing.T) {
	list, err := openTestStore(t).ListReports(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
