package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("DRAFTS_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("DRAFTS_TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, resetPublicSchema(ctx, db))
	require.NoError(t, ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")))
	return NewPostgresStore(db)
}

func TestDraftLifecyclePostgres(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDraft(ctx, Draft{
		ID:               "drf_1",
		Title:            "Services Agreement",
		CurrentVersionID: "v1",
		Layout:           []byte(`{"pages":[]}`),
	}))
	require.NoError(t, s.UpdateDraftVersion(ctx, "drf_1", "v2"))

	item, err := s.GetDraft(ctx, "drf_1")
	require.NoError(t, err)
	assert.Equal(t, "draft", item.Status)
	assert.Equal(t, "v2", item.CurrentVersionID)
	assert.Empty(t, item.Schema)

	_, err = s.GetDraft(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, s.UpdateDraftStatus(ctx, "drf_1", "finalized"))
	assert.Error(t, s.UpdateDraftVersion(ctx, "drf_1", "v3"), "finalized guard rejects version changes")
}

func TestSuggestionSettlesOncePostgres(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDraft(ctx, Draft{ID: "drf_1", Title: "NDA", Layout: []byte(`{"pages":[]}`)}))
	require.NoError(t, s.InsertSuggestion(ctx, Suggestion{ID: "sug_1", DraftID: "drf_1", TargetBlock: "partyName", Content: "Acme Corp", Status: "pending"}))

	ok, err := s.SettleSuggestion(ctx, "sug_1", "inserted", "v2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.SettleSuggestion(ctx, "sug_1", "rejected", "")
	require.NoError(t, err)
	assert.False(t, ok)

	item, err := s.GetSuggestion(ctx, "drf_1", "sug_1")
	require.NoError(t, err)
	assert.Equal(t, "inserted", item.Status)
	assert.Equal(t, "v2", item.VersionID)
}

func TestEvidenceByIDsPostgres(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertDraft(ctx, Draft{ID: "drf_1", Title: "NDA", Layout: []byte(`{"pages":[]}`)}))
	for _, id := range []string{"evd_1", "evd_2"} {
		require.NoError(t, s.InsertEvidence(ctx, EvidenceFile{ID: id, DraftID: "drf_1", Name: id + ".txt", ObjectKey: "drf_1/" + id, Size: 3}))
	}

	all, err := s.ListEvidence(ctx, "drf_1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := s.GetEvidence(ctx, "drf_1", []string{"evd_2", "evd_unknown"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "evd_2", some[0].ID)
}
