package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TGEMonitor/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func alertAt(id string, ts time.Time) domain.Analysis {
	return domain.Analysis{
		SourceKind:        domain.SourceFeed,
		Item:              domain.NormalizedItem{ID: id, Kind: domain.SourceFeed, Text: "Acme TGE " + id, Timestamp: &ts},
		MentionedEntities: []string{"Acme"},
		MatchedPhrases:    []string{"TGE"},
		RelevanceScore:    0.8,
		IsRelevant:        true,
		AnalyzedAt:        ts,
	}
}

func sampleState() domain.CycleState {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	s := domain.NewCycleState()
	s.ProcessedIDs.Add("feed:a")
	s.ProcessedIDs.Add("social:1")
	s.SeenHashes.Add("abc")
	s.AlertHistory = []domain.Analysis{alertAt("feed:a", now.Add(-time.Hour))}
	s.Totals.Cycles = 3
	s.Totals.AlertsFound[domain.SourceFeed] = 1
	s.LastUpdated = now
	return s
}

func assertRoundTrip(t *testing.T, got domain.CycleState) {
	t.Helper()
	assert.Equal(t, []string{"feed:a", "social:1"}, got.ProcessedIDs.Values())
	assert.True(t, got.SeenHashes.Has("abc"))
	require.Len(t, got.AlertHistory, 1)
	assert.Equal(t, "feed:a", got.AlertHistory[0].Item.ID)
	assert.Equal(t, []string{"Acme"}, got.AlertHistory[0].MentionedEntities)
	require.NotNil(t, got.AlertHistory[0].Item.Timestamp)
	assert.True(t, got.AlertHistory[0].Item.Timestamp.Equal(time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(3), got.Totals.Cycles)
	assert.Equal(t, int64(1), got.Totals.AlertsFound[domain.SourceFeed])
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewFileStore(path, domain.DefaultLimits(), quietLogger())

	require.NoError(t, store.Save(context.Background(), sampleState()))
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assertRoundTrip(t, got)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files must not be left behind")
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), domain.DefaultLimits(), quietLogger())
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.ProcessedIDs.Len())
	assert.Empty(t, got.AlertHistory)
}

func TestFileStoreDetectsCorruption(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	store := NewFileStore(path, domain.DefaultLimits(), quietLogger())
	require.NoError(t, store.Save(context.Background(), sampleState()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Torn write.
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.ProcessedIDs.Len())

	// Payload edited without fixing the checksum.
	tampered := []byte(string(data))
	for i := range tampered {
		if string(tampered[i:i+6]) == "feed:a" {
			copy(tampered[i:], "feed:b")
			break
		}
	}
	require.NoError(t, os.WriteFile(path, tampered, 0o644))
	got, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.ProcessedIDs.Len())
}

func TestFileStoreEvictsOldestHistory(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	state := domain.NewCycleState()
	// Inserted newest first so eviction must follow timestamps, not order.
	state.AlertHistory = []domain.Analysis{
		alertAt("new", base.Add(3*time.Hour)),
		alertAt("oldest", base),
		alertAt("mid", base.Add(2*time.Hour)),
		alertAt("old", base.Add(time.Hour)),
	}

	store := NewFileStore(filepath.Join(t.TempDir(), "s.json"), domain.Limits{MaxHistory: 2}, quietLogger())
	require.NoError(t, store.Save(context.Background(), state))
	got, err := store.Load(context.Background())
	require.NoError(t, err)

	ids := []string{}
	for _, a := range got.AlertHistory {
		ids = append(ids, a.Item.ID)
	}
	assert.Equal(t, []string{"new", "mid"}, ids)
	assert.Len(t, state.AlertHistory, 4, "caller state must not be mutated")
}

func TestFileStoreSaveFailureIsReported(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	store := NewFileStore(filepath.Join(blocker, "state.json"), domain.DefaultLimits(), quietLogger())
	err := store.Save(context.Background(), sampleState())
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save", pe.Op)
}

func newSQLiteStore(t *testing.T, limits domain.Limits) *SQLStore {
	t.Helper()
	db, err := OpenSQL(DriverSQLite, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	store, err := NewSQLStore(context.Background(), db, DriverSQLite, limits, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := newSQLiteStore(t, domain.DefaultLimits())
	ctx := context.Background()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.ProcessedIDs.Len())

	require.NoError(t, store.Save(ctx, sampleState()))
	// Saving twice rewrites rather than duplicates.
	require.NoError(t, store.Save(ctx, sampleState()))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assertRoundTrip(t, got)
	assert.True(t, got.LastUpdated.Equal(time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)))
}

func TestSQLStoreCompactsOnSave(t *testing.T) {
	t.Parallel()

	store := newSQLiteStore(t, domain.Limits{MaxHistory: 1, MaxProcessedIDs: 2, MaxSeenHashes: 1})
	ctx := context.Background()

	state := sampleState()
	state.ProcessedIDs.Add("feed:c")
	state.SeenHashes.Add("def")
	state.AlertHistory = append(state.AlertHistory, alertAt("feed:z", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, store.Save(ctx, state))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"social:1", "feed:c"}, got.ProcessedIDs.Values())
	assert.Equal(t, []string{"def"}, got.SeenHashes.Values())
	require.Len(t, got.AlertHistory, 1)
	assert.Equal(t, "feed:z", got.AlertHistory[0].Item.ID)
}

func TestOpenSQLRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := OpenSQL("mysql", "dsn")
	assert.Error(t, err)
}

func TestNewSQLStorePlaceholderFollowsDriver(t *testing.T) {
	t.Parallel()

	for driver, want := range map[string]string{
		DriverSQLite:   "INSERT INTO seen_hashes (seq,digest) VALUES (?,?)",
		DriverPostgres: "INSERT INTO seen_hashes (seq,digest) VALUES ($1,$2)",
	} {
		db, err := OpenSQL(DriverSQLite, filepath.Join(t.TempDir(), driver+".db"))
		require.NoError(t, err)
		store, err := NewSQLStore(context.Background(), db, driver, domain.DefaultLimits(), quietLogger())
		require.NoError(t, err)

		query, _, err := store.sb.Insert("seen_hashes").Columns("seq", "digest").Values(0, "abc").ToSql()
		require.NoError(t, err)
		assert.Equal(t, want, query, driver)
		require.NoError(t, store.Close())
	}
}
