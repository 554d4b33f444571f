package docstore

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/starford/folio/internal/apperr"
)

func testDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "folio-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM seed_sources`).Scan(&count); err != nil {
		t.Fatalf("seed_sources table missing: %v", err)
	}
}

func TestPutAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	doc, err := db.Put(ctx, []byte(`{"_id":"page1","_type":"page","title":"About","_rev":"stale"}`))
	require.NoError(t, err)
	assert.Equal(t, "page1", doc.ID)
	assert.Equal(t, "page", doc.Type)
	assert.NotEmpty(t, doc.Rev)

	got, err := db.GetDocument(ctx, "page1")
	require.NoError(t, err)
	assert.Equal(t, "About", got.Title)
	assert.Equal(t, doc.Rev, got.Rev)
	assert.False(t, gjson.GetBytes(got.Body, "_rev").Exists(), "system fields are stripped from the stored body")
	assert.Equal(t, doc.Rev, gjson.GetBytes(got.JSON(), "_rev").String())
}

func TestPutRejectsInvalid(t *testing.T) {
	db := testDB(t)
	for _, body := range []string{`not json`, `[]`, `{"_type":"page"}`, `{"_id":"x"}`, `{"_id":1,"_type":"page"}`} {
		_, err := db.Put(context.Background(), []byte(body))
		assert.ErrorIs(t, err, apperr.ErrInvalid, body)
	}
}

func TestCreateDuplicate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_, err := db.Create(ctx, []byte(`{"_id":"a","_type":"page"}`))
	require.NoError(t, err)
	_, err = db.Create(ctx, []byte(`{"_id":"a","_type":"page"}`))
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestPutIfRevision(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	doc, err := db.Put(ctx, []byte(`{"_id":"a","_type":"page","title":"v1"}`))
	require.NoError(t, err)

	_, err = db.PutIfRevision(ctx, []byte(`{"_id":"a","_type":"page","title":"v2"}`), doc.Rev)
	require.NoError(t, err)

	_, err = db.PutIfRevision(ctx, []byte(`{"_id":"a","_type":"page","title":"v3"}`), doc.Rev)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = db.PutIfRevision(ctx, []byte(`{"_id":"missing","_type":"page"}`), "abc")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetDocument_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFetch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for _, body := range []string{
		`{"_id":"page1","_type":"page"}`,
		`{"_id":"header","_type":"header","horizontalNav":[]}`,
		`{"_id":"post1","_type":"blogPost","content":[]}`,
		`{"_id":"post2","_type":"blogPost","content":"not an array"}`,
		`{"_id":"settings","_type":"siteSettings"}`,
	} {
		_, err := db.Put(ctx, []byte(body))
		require.NoError(t, err)
	}

	docs, err := db.Fetch(ctx, Query{
		Types:       []string{"page"},
		ArrayFields: []string{"content", "horizontalNav", "verticalNav"},
	})
	require.NoError(t, err)
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"header", "page1", "post1"}, ids)

	all, err := db.Fetch(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	byID, err := db.Fetch(ctx, Query{IDs: []string{"settings"}})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "siteSettings", byID[0].Type)

	_, err = db.Fetch(ctx, Query{ArrayFields: []string{"bad field"}})
	assert.Error(t, err)
}

func TestListAndDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_, _ = db.Put(ctx, []byte(`{"_id":"a","_type":"page"}`))
	_, _ = db.Put(ctx, []byte(`{"_id":"b","_type":"page"}`))
	_, _ = db.Put(ctx, []byte(`{"_id":"c","_type":"footer"}`))

	docs, total, err := db.List(ctx, "page", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, docs, 1)

	require.NoError(t, db.Delete(ctx, "a"))
	assert.ErrorIs(t, db.Delete(ctx, "a"), apperr.ErrNotFound)

	_, total, err = db.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_, _ = db.Put(ctx, []byte(`{"_id":"a","_type":"page","title":"Careers"}`))
	_, _ = db.Put(ctx, []byte(`{"_id":"b","_type":"page","title":"Home","content":[{"_type":"quote","text":"uniqueword"}]}`))

	results, err := db.Search(ctx, "uniqueword", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
	assert.Equal(t, "Home", results[0].Title)
}

func TestMutate_KeyAndIndexPaths(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	before, err := db.Put(ctx, []byte(`{"_id":"p","_type":"page","content":[
		{"_key":"s1","_type":"pageSection","title":"A","anchorId":"a"},
		{"_key":"s2","_type":"pageSection","title":"B","anchorId":"b","content":[{"_key":"c","_type":"cta","pageSectionId":"old"}]}
	]}`))
	require.NoError(t, err)

	res, err := db.Transaction().
		Patch("p", Set{`content[_key=="s1"].anchorId`: "alpha"}).
		Patch("p", Set{"content[1].content[0].pageSectionId": "new"}).
		Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, res.DocumentIDs)
	assert.NotEmpty(t, res.TransactionID)

	got, err := db.GetDocument(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "alpha", gjson.GetBytes(got.Body, "content.0.anchorId").String())
	assert.Equal(t, "new", gjson.GetBytes(got.Body, "content.1.content.0.pageSectionId").String())
	assert.NotEqual(t, before.Rev, got.Rev)
	assert.Equal(t, res.Revisions["p"], got.Rev)
}

func TestMutate_AllOrNothing(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_, _ = db.Put(ctx, []byte(`{"_id":"a","_type":"page","title":"A"}`))
	_, _ = db.Put(ctx, []byte(`{"_id":"b","_type":"page","title":"B","content":[]}`))

	_, err := db.Mutate(ctx,
		Patch{ID: "a", Set: Set{"title": "changed"}},
		Patch{ID: "b", Set: Set{`content[_key=="missing"].title`: "x"}},
	)
	require.Error(t, err)

	got, _ := db.GetDocument(ctx, "a")
	assert.Equal(t, "A", got.Title, "first patch must be rolled back")

	_, err = db.Mutate(ctx, Patch{ID: "ghost", Set: Set{"title": "x"}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMutate_RevisionAndReserved(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	doc, _ := db.Put(ctx, []byte(`{"_id":"a","_type":"page","title":"A"}`))

	_, err := db.Transaction().PatchIfRevision("a", "wrong", Set{"title": "B"}).Commit(ctx)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = db.Transaction().PatchIfRevision("a", doc.Rev, Set{"title": "B"}).Commit(ctx)
	assert.NoError(t, err)

	_, err = db.Mutate(ctx, Patch{ID: "a", Set: Set{"_id": "other"}})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestChangeHook(t *testing.T) {
	var mu sync.Mutex
	var events []string
	db := testDB(t, WithChangeHook(func(kind, id string) {
		mu.Lock()
		events = append(events, kind+":"+id)
		mu.Unlock()
	}))
	ctx := context.Background()

	_, _ = db.Put(ctx, []byte(`{"_id":"a","_type":"page","title":"A"}`))
	_, _ = db.Put(ctx, []byte(`{"_id":"a","_type":"page","title":"A"}`)) // unchanged: no event
	_, _ = db.Put(ctx, []byte(`{"_id":"a","_type":"page","title":"B"}`))
	_, _ = db.Mutate(ctx, Patch{ID: "a", Set: Set{"title": "C"}})
	_ = db.Delete(ctx, "a")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"created:a", "updated:a", "updated:a", "deleted:a"}, events)
}

func TestIDVariants(t *testing.T) {
	assert.Equal(t, []string{"page123", "drafts.page123"}, IDVariants("page123"))
	assert.Equal(t, []string{"drafts.page123", "page123"}, IDVariants("drafts.page123"))
	assert.True(t, IsDraft("drafts.x"))
	assert.False(t, IsDraft("x"))
	assert.Equal(t, "drafts.x", DraftID("drafts.x"))
	assert.Equal(t, "x", PublishedID("drafts.x"))
}

func TestSeedSources(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.RecordSeedSource(ctx, SeedSource{Path: "pages/home.json", Checksum: "c1", IDs: []string{"home"}}))
	require.NoError(t, db.RecordSeedSource(ctx, SeedSource{Path: "pages/home.json", Checksum: "c2", IDs: []string{"home", "about"}}))

	srcs, err := db.SeedSources(ctx)
	require.NoError(t, err)
	require.Contains(t, srcs, "pages/home.json")
	assert.Equal(t, "c2", srcs["pages/home.json"].Checksum)
	assert.Equal(t, []string{"home", "about"}, srcs["pages/home.json"].IDs)

	require.NoError(t, db.DeleteSeedSource(ctx, "pages/home.json"))
	srcs, _ = db.SeedSources(ctx)
	assert.Empty(t, srcs)
}
