package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewEntry(t *testing.T) {
	result := models.NewStatementParseResult()
	result.ParserUsed = models.ParserCSV
	result.FileKind = models.FileTabular
	result.BankDetected = "generic"
	result.Transactions = append(result.Transactions, models.ParsedTransaction{}, models.ParsedTransaction{})
	result.Warnings = append(result.Warnings, "Row 3: could not parse date \"x\"")

	entry, err := NewEntry("jan.csv", 120, result)
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "jan.csv", entry.Filename)
	assert.Equal(t, 120, entry.Size)
	assert.Equal(t, models.ParserCSV, entry.ParserUsed)
	assert.Equal(t, models.FileTabular, entry.FileKind)
	assert.Equal(t, "generic", entry.BankDetected)
	assert.Equal(t, 2, entry.Transactions)
	assert.Equal(t, 0, entry.Errors)
	assert.Equal(t, 1, entry.Warnings)
	assert.WithinDuration(t, time.Now(), entry.ParsedAt, time.Minute)

	next, err := NewEntry("feb.csv", 1, result)
	require.NoError(t, err)
	assert.Greater(t, next.ID, entry.ID, "ids must sort by creation time")
}

func TestBoltStore_RecordAndList(t *testing.T) {
	store := openTestStore(t)

	for _, e := range []Entry{
		{ID: "0001", Filename: "a.csv"},
		{ID: "0003", Filename: "c.ofx"},
		{ID: "0002", Filename: "b.csv"},
	} {
		require.NoError(t, store.Record(e))
	}

	all, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c.ofx", all[0].Filename)
	assert.Equal(t, "b.csv", all[1].Filename)
	assert.Equal(t, "a.csv", all[2].Filename)

	limited, err := store.List(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "0003", limited[0].ID)
}

func TestBoltStore_Empty(t *testing.T) {
	store := openTestStore(t)

	entries, err := store.List(10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestBoltStore_RejectsMissingID(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.Record(Entry{Filename: "a.csv"}))
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(Entry{ID: "0001", Filename: "kept.csv"}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept.csv", entries[0].Filename)
}
