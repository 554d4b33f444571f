package seed

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDecode(t *testing.T) {
	bodies, err := Decode([]byte(`{"_id":"a","_type":"page"}`))
	require.NoError(t, err)
	assert.Len(t, bodies, 1)

	bodies, err = Decode([]byte(`[{"_id":"a","_type":"page"},{"_id":"b","_type":"page"}]`))
	require.NoError(t, err)
	assert.Len(t, bodies, 2)

	for _, bad := range []string{`[1]`, `"x"`, `{`} {
		_, err := Decode([]byte(bad))
		assert.True(t, errors.Is(err, apperr.ErrInvalid), bad)
	}
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	_, files := testutil.TestSeedDir(t)
	s := NewSyncer(db, files, quietLogger())

	require.NoError(t, files.Write("home.json", []byte(`{"_id":"home","_type":"homePage","title":"Home"}`)))
	require.NoError(t, files.Write("pages/all.json", []byte(`[
		{"_id":"p1","_type":"page","title":"One"},
		{"_id":"p2","_type":"page","title":"Two"}
	]`)))
	require.NoError(t, files.Write("broken.json", []byte(`{"title":"no id"}`)))

	rep, err := s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Loaded: 3, Failed: 1}, rep)

	_, err = db.GetDocument(ctx, "p2")
	require.NoError(t, err)

	rep, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Skipped, "unchanged files are skipped")
	assert.Equal(t, 1, rep.Failed, "failed files are retried")

	// Dropping a document from a file removes it.
	require.NoError(t, files.Write("pages/all.json", []byte(`[{"_id":"p1","_type":"page","title":"One"}]`)))
	rep, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Removed)
	_, err = db.GetDocument(ctx, "p2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Removing a file removes its documents.
	require.NoError(t, files.Delete("home.json"))
	rep, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Removed)
	_, err = db.GetDocument(ctx, "home")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	sources, err := db.SeedSources(ctx)
	require.NoError(t, err)
	assert.NotContains(t, sources, "home.json")
	assert.Equal(t, []string{"p1"}, sources["pages/all.json"].IDs)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	testutil.MustPut(t, db,
		`{"_id":"p1","_type":"page","title":"One"}`,
		`{"_id":"drafts.p1","_type":"page","title":"One (draft)"}`,
		`{"_id":"header","_type":"header"}`,
	)
	dir := t.TempDir()
	dst, err := storage.NewFS(dir)
	require.NoError(t, err)

	n, err := Export(ctx, db, dst, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(filepath.Join(dir, "page", "drafts.p1.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"drafts.p1","_type":"page","title":"One (draft)"}`, string(data))

	// An export directory is a valid seed directory.
	db2 := testutil.TestDB(t)
	rep, err := NewSyncer(db2, dst, quietLogger()).Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Loaded)
}

func TestExport_RemovesStaleFiles(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	testutil.MustPut(t, db, `{"_id":"p1","_type":"page","title":"One"}`)
	dir := t.TempDir()
	dst, err := storage.NewFS(dir)
	require.NoError(t, err)

	require.NoError(t, dst.Write("page/gone.json", []byte(`{"_id":"gone","_type":"page"}`)))
	require.NoError(t, dst.Write("page/notes.txt", []byte("keep me")))

	n, err := Export(ctx, db, dst, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	files, err := dst.List("")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "page/p1.json", files[0].Path)

	_, err = os.Stat(filepath.Join(dir, "page", "notes.txt"))
	assert.NoError(t, err)
}

func TestWatch_ResyncsOnChange(t *testing.T) {
	dir, files := testutil.TestSeedDir(t)
	db := testutil.TestDB(t)
	s := NewSyncer(db, files, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var reports []Report
	go s.Watch(ctx, func(r Report) {
		mu.Lock()
		reports = append(reports, r)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pages"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "new.json"), []byte(`{"_id":"new","_type":"page"}`), 0o644))

	assert.Eventually(t, func() bool {
		_, err := db.GetDocument(context.Background(), "new")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond, "new file not loaded by watcher")

	require.NoError(t, os.Remove(filepath.Join(dir, "pages", "new.json")))
	assert.Eventually(t, func() bool {
		_, err := db.GetDocument(context.Background(), "new")
		return errors.Is(err, apperr.ErrNotFound)
	}, 5*time.Second, 50*time.Millisecond, "removed file not unloaded by watcher")

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, reports)
}
