package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftline/internal/draft"
	"draftline/internal/editor"
)

var _ editor.Backend = (*Client)(nil)

func TestUpdateFieldsSendsFieldsObject(t *testing.T) {
	var got map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/drafts/drf_1/fields", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"versionId":"abc","versionNo":3}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	result, err := c.UpdateFields(context.Background(), "drf_1", draft.Fields{
		"partyName": draft.String("Acme"),
		"fee":       draft.Number(12.5),
		"witness":   draft.Null(),
	})
	require.NoError(t, err)
	assert.Equal(t, draft.SaveResult{VersionID: "abc", VersionNo: 3}, result)
	assert.Equal(t, map[string]any{"partyName": "Acme", "fee": 12.5, "witness": nil}, got["fields"])
}

func TestGetDraftDecodesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id":"drf_1","title":"NDA","status":"draft","currentVersionId":"v1",
			"layout":{"pages":[{"pageNo":1,"blocks":[{"key":"partyName","text":"Party: ____","type":"field","editable":true}]}]},
			"fields":{"partyName":"Acme"}
		}`))
	}))
	defer srv.Close()

	payload, err := New(srv.URL, nil).GetDraft(context.Background(), "drf_1")
	require.NoError(t, err)
	d := payload.Hydrate()
	assert.Equal(t, "v1", d.CurrentVersionID)
	assert.True(t, d.HasLayout())
	assert.Equal(t, "Acme", d.Fields["partyName"].Str())
}

func TestErrorCodesMapToSentinels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/insert"):
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"SUGGESTION_ALREADY_PROCESSED","error":"Suggestion already processed"}`))
		case strings.HasSuffix(r.URL.Path, "/fields"):
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"DRAFT_FINALIZED","error":"Draft is finalized"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream gone"))
		}
	}))
	defer srv.Close()
	c := New(srv.URL, nil)
	ctx := context.Background()

	_, err := c.InsertSuggestion(ctx, "drf_1", "sug_1")
	assert.ErrorIs(t, err, draft.ErrSuggestionProcessed)

	_, err = c.UpdateFields(ctx, "drf_1", draft.Fields{"a": draft.String("b")})
	assert.ErrorIs(t, err, draft.ErrFinalized)

	_, err = c.Undo(ctx, "drf_1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream gone", apiErr.Message)
}

func TestUploadEvidenceSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/drafts/drf_1/evidence", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "brief.txt", header.Filename)
		assert.Equal(t, "hello", string(data))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"evd_1","name":"brief.txt","size":5}`))
	}))
	defer srv.Close()

	file, err := New(srv.URL, nil).UploadEvidence(context.Background(), "drf_1", "brief.txt", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "evd_1", file.ID)
	assert.Equal(t, int64(5), file.Size)
}

func TestSuggestUnwrapsSuggestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/drafts/drf_1/suggestions", r.URL.Path)
		var req draft.SuggestRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "partyName", req.TargetBlock)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"suggestion":{"suggestionId":"sug_1","targetBlock":"partyName","content":"Acme Corp","status":"pending"}}`))
	}))
	defer srv.Close()

	suggestion, err := New(srv.URL, nil).Suggest(context.Background(), "drf_1", draft.SuggestRequest{TargetBlock: "partyName"})
	require.NoError(t, err)
	assert.Equal(t, "sug_1", suggestion.SuggestionID)
	assert.Equal(t, "Acme Corp", suggestion.Content)
}

func TestRejectIgnoresEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/drafts/drf_1/suggestions/sug_1/reject", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, nil).RejectSuggestion(context.Background(), "drf_1", "sug_1"))
}

func TestSearchEncodesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search", r.URL.Path)
		assert.Equal(t, "acme corp", r.URL.Query().Get("q"))
		assert.Equal(t, "suggestion", r.URL.Query().Get("type"))
		assert.Equal(t, "drf_1", r.URL.Query().Get("draftId"))
		assert.Empty(t, r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`{"results":[{"type":"suggestion","id":"sug_1","draftId":"drf_1","title":"partyName","status":"pending"}],"total":1,"query":"acme corp"}`))
	}))
	defer srv.Close()

	hits, total, err := New(srv.URL, nil).Search(context.Background(), "acme corp", SearchOptions{Type: "suggestion", DraftID: "drf_1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, hits, 1)
	assert.Equal(t, "sug_1", hits[0].ID)
}
