package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
)

var attrs = []string{"Location", "Gender"}

func withFiles(s *ImportState) {
	s.SetFiles(Files{CSVName: "pop.csv", CSVPath: "/tmp/pop.csv", Encoding: "utf-8", Separator: ";", Columns: []string{"CODGEO", "SEXE"}})
}

func TestSetFilesDefaultsMappingToDrop(t *testing.T) {
	s := NewImportState("s1")
	withFiles(s)
	assert.Equal(t, map[string]string{"CODGEO": domain.Drop, "SEXE": domain.Drop}, s.Mapping)
}

func TestMappingResetOnNewCSV(t *testing.T) {
	s := NewImportState("s1")
	withFiles(s)
	s.ApplySuggestion(map[string]string{"CODGEO": "Location", "OTHER": "Gender"})
	assert.Equal(t, "Location", s.Mapping["CODGEO"])
	assert.NotContains(t, s.Mapping, "OTHER")
	assert.True(t, s.Suggested)

	// same upload again keeps the mapping
	withFiles(s)
	assert.Equal(t, "Location", s.Mapping["CODGEO"])

	s.SetFiles(Files{CSVName: "other.csv", CSVPath: "/tmp/other.csv", Columns: []string{"A"}})
	assert.Equal(t, map[string]string{"A": domain.Drop}, s.Mapping)
	assert.False(t, s.Suggested)
}

func TestMappingResetOnRename(t *testing.T) {
	s := NewImportState("s1")
	require.NoError(t, s.SetDatabase("pop_2020", "Population"))
	withFiles(s)
	require.NoError(t, s.SetMapping(map[string]string{"SEXE": "Gender"}, attrs))

	require.NoError(t, s.SetDatabase("pop_2020", "Population"))
	assert.Equal(t, "Gender", s.Mapping["SEXE"])

	require.NoError(t, s.SetDatabase("pop_2021", "Population"))
	assert.Equal(t, domain.Drop, s.Mapping["SEXE"])
}

func TestSetDatabaseValidation(t *testing.T) {
	s := NewImportState("s1")
	assert.True(t, errors.Is(s.SetDatabase("  ", "Population"), domain.ErrInvalidName))
	assert.True(t, errors.Is(s.SetDatabase("db", ""), domain.ErrInvalidName))
}

func TestSetMappingRejectsUnknownTargets(t *testing.T) {
	s := NewImportState("s1")
	withFiles(s)
	err := s.SetMapping(map[string]string{"SEXE": "Income"}, attrs)
	assert.True(t, errors.Is(err, domain.ErrInvalidMapping))
	err = s.SetMapping(map[string]string{"NOPE": "Gender"}, attrs)
	assert.True(t, errors.Is(err, domain.ErrInvalidMapping))
	assert.Equal(t, domain.Drop, s.Mapping["SEXE"])
}

func TestReadyAndReset(t *testing.T) {
	s := NewImportState("s1")
	assert.Error(t, s.Ready())
	require.NoError(t, s.SetDatabase("db", "Population"))
	assert.True(t, errors.Is(s.Ready(), domain.ErrInvalidParams))
	withFiles(s)
	require.NoError(t, s.Ready())

	s.MarkDone()
	assert.True(t, s.Done)
	s.Reset()
	assert.Equal(t, "s1", s.ID)
	assert.Empty(t, s.DBName)
	assert.Empty(t, s.Mapping)
	assert.False(t, s.Done)
}

func exerciseStore(t *testing.T, st Store) {
	ctx := context.Background()
	s, err := st.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	withFiles(s)
	require.NoError(t, s.SetDatabase("db", "Population"))
	require.NoError(t, st.Save(ctx, s))

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "db", got.DBName)
	assert.Equal(t, []string{"CODGEO", "SEXE"}, got.Columns)
	assert.Equal(t, domain.Drop, got.Mapping["CODGEO"])

	// returned copies are independent
	got.Mapping["CODGEO"] = "Location"
	again, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Drop, again.Mapping["CODGEO"])

	require.NoError(t, st.Delete(ctx, s.ID))
	_, err = st.Get(ctx, s.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(st.Delete(ctx, s.ID), ErrNotFound))
	assert.True(t, errors.Is(st.Save(ctx, s), ErrNotFound))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisStore(t *testing.T) {
	client, _ := setupTestRedis(t)
	exerciseStore(t, NewRedisStore(client, 0))
}

func TestRedisStoreExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	st := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	s, err := st.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+s.ID))

	mr.FastForward(2 * time.Minute)
	_, err = st.Get(ctx, s.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}
