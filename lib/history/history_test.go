package history

import (
	"context"
	"gcdfetch/lib/testutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRecordsContains(t *testing.T) {
	records := Records{"May 1, 2024, 2:15 a.m."}
	require.True(t, records.Contains("May 1, 2024, 2:15 a.m."))
	require.False(t, records.Contains("May 8, 2024, 2:15 a.m."))
	require.False(t, records.Contains("May 1, 2024, 2:15 a.m. "))
	require.False(t, records.Contains("may 1, 2024, 2:15 a.m."))
	require.False(t, Records{}.Contains(""))
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 0)

	identities := []string{
		"May 1, 2024, 2:15 a.m.",
		"May 8, 2024, 2:15 a.m.",
		"May 15, 2024, 2:16 a.m.",
	}
	for _, identity := range identities {
		err := store.Append(ctx, identity)
		require.NoError(t, err)
	}

	records, err = store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(Records(identities), records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	require.True(t, records.Contains("May 8, 2024, 2:15 a.m."))
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download_history.txt")
	store := NewFileStore(path)
	defer store.Close()

	testStore(t, store)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "May 1, 2024, 2:15 a.m.\nMay 8, 2024, 2:15 a.m.\nMay 15, 2024, 2:16 a.m.\n", string(contents))
}

func TestFileStoreLoadTrims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download_history.txt")
	err := os.WriteFile(path, []byte("  a \r\n\n\nb\nc"), 0644)
	require.NoError(t, err)

	records, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Records{"a", "b", "c"}, records)
}

func TestFileStoreRejectsMultiline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download_history.txt")
	err := NewFileStore(path).Append(context.Background(), "a\nb")
	require.ErrorIs(t, err, ErrStorage)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestFileStoreUnwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "download_history.txt")
	err := NewFileStore(path).Append(context.Background(), "a")
	require.ErrorIs(t, err, ErrStorage)
}

func TestSqliteStore(t *testing.T) {
	store, err := NewSqliteStore(testutil.OpenMemoryDB(t))
	require.NoError(t, err)
	defer store.Close()

	testStore(t, store)

	err = store.Append(context.Background(), "May 1, 2024, 2:15 a.m.")
	require.NoError(t, err)
	records, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(Config{Driver: DriverFile, Path: filepath.Join(dir, "history.txt")})
	require.NoError(t, err)
	require.IsType(t, FileStore{}, store)
	require.NoError(t, store.Close())

	store, err = Open(Config{Driver: DriverSqlite, Path: filepath.Join(dir, "history.db")})
	require.NoError(t, err)
	require.IsType(t, SqliteStore{}, store)
	require.NoError(t, store.Append(context.Background(), "a"))
	require.NoError(t, store.Close())

	reopened, err := Open(Config{Driver: DriverSqlite, Path: filepath.Join(dir, "history.db")})
	require.NoError(t, err)
	defer reopened.Close()
	records, err := reopened.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Records{"a"}, records)

	_, err = Open(Config{Driver: "postgres"})
	require.Error(t, err)
}
