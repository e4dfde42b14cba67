package gitrepo

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftline/internal/draft"
)

func TestDraftRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	base, err := svc.EnsureDraftRepo("drf-1", Content{Fields: draft.Fields{"partyName": draft.Null()}}, "Avery")
	require.NoError(t, err)
	assert.Len(t, base.Hash, 40)
	_, err = os.Stat(filepath.Join(tempDir, "drf-1", contentFile))
	require.NoError(t, err, "content file missing")

	again, err := svc.EnsureDraftRepo("drf-1", Content{}, "Avery")
	require.NoError(t, err)
	assert.Equal(t, base.Hash, again.Hash, "existing head is kept")

	commit, err := svc.CommitFields("drf-1", Content{Fields: draft.Fields{
		"partyName": draft.String("Acme Corp"),
		"fee":       draft.Number(1500),
	}}, "Avery", "form_update: fee, partyName")
	require.NoError(t, err)

	content, head, err := svc.HeadContent("drf-1")
	require.NoError(t, err)
	assert.Equal(t, commit.Hash, head.Hash)
	assert.Equal(t, "Acme Corp", content.Fields["partyName"].Str())
	assert.Equal(t, float64(1500), content.Fields["fee"].Num())

	history, err := svc.History("drf-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestResetToMovesHeadBothWays(t *testing.T) {
	svc := New(t.TempDir())
	base, err := svc.EnsureDraftRepo("drf-2", Content{Fields: draft.Fields{"fee": draft.Number(1)}}, "Avery")
	require.NoError(t, err)
	next, err := svc.CommitFields("drf-2", Content{Fields: draft.Fields{"fee": draft.Number(2)}}, "Avery", "form_update: fee")
	require.NoError(t, err)

	_, err = svc.ResetTo("drf-2", base.Hash)
	require.NoError(t, err)
	content, head, err := svc.HeadContent("drf-2")
	require.NoError(t, err)
	assert.Equal(t, base.Hash, head.Hash)
	assert.Equal(t, float64(1), content.Fields["fee"].Num())
	history, _ := svc.History("drf-2", 0)
	assert.Len(t, history, 1, "main after reset")

	_, err = svc.ResetTo("drf-2", next.Hash)
	require.NoError(t, err)
	content, head, err = svc.HeadContent("drf-2")
	require.NoError(t, err)
	assert.Equal(t, next.Hash, head.Hash)
	assert.Equal(t, float64(2), content.Fields["fee"].Num())

	old, err := svc.ContentAt("drf-2", base.Hash)
	require.NoError(t, err)
	assert.Equal(t, float64(1), old.Fields["fee"].Num())

	short, err := svc.ContentAt("drf-2", next.Hash[:10])
	require.NoError(t, err)
	assert.Equal(t, float64(2), short.Fields["fee"].Num())
}

func TestCommitFieldsConcurrentAccess(t *testing.T) {
	svc := New(t.TempDir())
	_, err := svc.EnsureDraftRepo("drf-3", Content{}, "Avery")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CommitFields("drf-3", Content{Fields: draft.Fields{"fee": draft.Number(float64(i))}}, "Avery", "form_update: fee")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	history, err := svc.History("drf-3", 0)
	require.NoError(t, err)
	assert.Len(t, history, 9)
}

func TestChangedKeys(t *testing.T) {
	from := Content{Fields: draft.Fields{"a": draft.String("x"), "b": draft.Number(1), "c": draft.Null()}}
	to := Content{Fields: draft.Fields{"a": draft.String("x"), "b": draft.Number(2), "d": draft.String("new")}}

	assert.Equal(t, []string{"b", "c", "d"}, ChangedKeys(from, to))
}
