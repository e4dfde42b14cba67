package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftline/internal/draft"
	"draftline/internal/search"
)

type fakeSearch struct {
	mu          sync.Mutex
	drafts      map[string]search.DraftRecord
	suggestions map[string]search.SuggestionRecord
	lastQuery   search.Query
	reindexed   int
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{
		drafts:      map[string]search.DraftRecord{},
		suggestions: map[string]search.SuggestionRecord{},
	}
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	results := []search.Result{}
	needle := strings.ToLower(q.Text)
	if q.FilterType == "" || q.FilterType == search.ResultDraft {
		for _, d := range f.drafts {
			if strings.Contains(strings.ToLower(d.Title+"\n"+d.Fields), needle) {
				results = append(results, search.Result{Type: search.ResultDraft, ID: d.ID, DraftID: d.ID, Title: d.Title, Status: d.Status})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == search.ResultSuggestion {
		for _, s := range f.suggestions {
			if strings.Contains(strings.ToLower(s.Content), needle) {
				results = append(results, search.Result{Type: search.ResultSuggestion, ID: s.ID, DraftID: s.DraftID, Title: s.TargetBlock, Status: s.Status})
			}
		}
	}
	return search.Response{Results: results, Total: len(results), Query: q.Text}
}

func (f *fakeSearch) IndexDraft(d search.DraftRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[d.ID] = d
}

func (f *fakeSearch) IndexSuggestion(s search.SuggestionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestions[s.ID] = s
}

func (f *fakeSearch) ReindexAll(_ context.Context, drafts []search.DraftRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reindexed++
	for _, d := range drafts {
		f.drafts[d.ID] = d
	}
}

func withSearch(env *testEnv) *fakeSearch {
	index := newFakeSearch()
	env.svc.search = index
	return index
}

func TestSearchUnavailableWithoutIndex(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Search(search.Query{Text: "acme"})
	requireCode(t, err, "SEARCH_UNAVAILABLE")
}

func TestSearchValidatesQuery(t *testing.T) {
	env := newTestEnv(t)
	withSearch(env)

	_, err := env.svc.Search(search.Query{Text: "   "})
	requireCode(t, err, "VALIDATION_ERROR")

	_, err = env.svc.Search(search.Query{Text: "acme", FilterType: "template"})
	requireCode(t, err, "VALIDATION_ERROR")
}

func TestSearchClampsLimit(t *testing.T) {
	env := newTestEnv(t)
	index := withSearch(env)

	_, err := env.svc.Search(search.Query{Text: "acme", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 20, index.lastQuery.Limit, "default limit")
}

func TestMutationsRefreshSearchIndex(t *testing.T) {
	env := newTestEnv(t)
	index := withSearch(env)
	ctx := context.Background()
	base := env.createDraft(t)

	assert.Equal(t, "Services Agreement", index.drafts[base.ID].Title)
	assert.Equal(t, "draft", index.drafts[base.ID].Status)

	_, err := env.svc.UpdateFields(ctx, base.ID, draft.Fields{"partyName": draft.String("Acme Corp")})
	require.NoError(t, err)
	assert.Equal(t, "partyName: Acme Corp", index.drafts[base.ID].Fields)

	suggestion, err := env.svc.Suggest(ctx, base.ID, draft.SuggestRequest{TargetBlock: "fee", Instruction: `use "USD 5,000"`})
	require.NoError(t, err)
	assert.Equal(t, "pending", index.suggestions[suggestion.SuggestionID].Status)
	assert.Equal(t, base.ID, index.suggestions[suggestion.SuggestionID].DraftID)

	require.NoError(t, env.svc.RejectSuggestion(ctx, base.ID, suggestion.SuggestionID))
	assert.Equal(t, "rejected", index.suggestions[suggestion.SuggestionID].Status)

	require.NoError(t, env.svc.Finalize(ctx, base.ID))
	assert.Equal(t, "finalized", index.drafts[base.ID].Status)
}

func TestBootstrapReindexes(t *testing.T) {
	env := newTestEnv(t)
	index := withSearch(env)
	require.NoError(t, env.svc.Bootstrap(context.Background()))
	assert.Equal(t, 1, index.reindexed)
	assert.Len(t, index.drafts, 1, "seeded draft")
}

func TestHTTPSearch(t *testing.T) {
	env := newTestEnv(t)
	withSearch(env)
	base := env.createDraft(t)
	_, err := env.svc.UpdateFields(context.Background(), base.ID, draft.Fields{"partyName": draft.String("Acme Corp")})
	require.NoError(t, err)

	rr := serve(t, env, http.MethodGet, "/api/search?q=acme&type=draft", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body search.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Results, 1)
	assert.Equal(t, base.ID, body.Results[0].ID)

	rr = serve(t, env, http.MethodGet, "/api/search", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "empty query")
}
