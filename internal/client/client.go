// Package client implements editor.Backend over the draft HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"draftline/internal/draft"
)

const (
	codeSuggestionProcessed = "SUGGESTION_ALREADY_PROCESSED"
	codeDraftFinalized      = "DRAFT_FINALIZED"
	codeNotFound            = "NOT_FOUND"
)

// APIError is a non-2xx response. Known codes also unwrap to the matching
// draft sentinel so callers can use errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case codeSuggestionProcessed:
		return draft.ErrSuggestionProcessed
	case codeDraftFinalized:
		return draft.ErrFinalized
	case codeNotFound:
		return draft.ErrNotFound
	}
	return nil
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) draftPath(draftID string, parts ...string) string {
	segments := append([]string{"api", "drafts", url.PathEscape(draftID)}, parts...)
	return "/" + strings.Join(segments, "/")
}

func (c *Client) GetDraft(ctx context.Context, draftID string) (draft.Payload, error) {
	var payload draft.Payload
	err := c.do(ctx, http.MethodGet, c.draftPath(draftID), nil, &payload)
	return payload, err
}

func (c *Client) UpdateFields(ctx context.Context, draftID string, fields draft.Fields) (draft.SaveResult, error) {
	var result draft.SaveResult
	body := map[string]any{"fields": fields}
	err := c.do(ctx, http.MethodPut, c.draftPath(draftID, "fields"), body, &result)
	return result, err
}

func (c *Client) Undo(ctx context.Context, draftID string) (draft.VersionShift, error) {
	var result draft.VersionShift
	err := c.do(ctx, http.MethodPost, c.draftPath(draftID, "undo"), nil, &result)
	return result, err
}

func (c *Client) Redo(ctx context.Context, draftID string) (draft.VersionShift, error) {
	var result draft.VersionShift
	err := c.do(ctx, http.MethodPost, c.draftPath(draftID, "redo"), nil, &result)
	return result, err
}

func (c *Client) Suggest(ctx context.Context, draftID string, req draft.SuggestRequest) (draft.Suggestion, error) {
	var out struct {
		Suggestion draft.Suggestion `json:"suggestion"`
	}
	err := c.do(ctx, http.MethodPost, c.draftPath(draftID, "suggestions"), req, &out)
	return out.Suggestion, err
}

func (c *Client) InsertSuggestion(ctx context.Context, draftID, suggestionID string) (draft.InsertResult, error) {
	var result draft.InsertResult
	err := c.do(ctx, http.MethodPost, c.draftPath(draftID, "suggestions", url.PathEscape(suggestionID), "insert"), nil, &result)
	return result, err
}

func (c *Client) RejectSuggestion(ctx context.Context, draftID, suggestionID string) error {
	return c.do(ctx, http.MethodPost, c.draftPath(draftID, "suggestions", url.PathEscape(suggestionID), "reject"), nil, nil)
}

func (c *Client) ListEvidence(ctx context.Context, draftID string) ([]draft.EvidenceFile, error) {
	var body struct {
		Files []draft.EvidenceFile `json:"files"`
	}
	if err := c.do(ctx, http.MethodGet, c.draftPath(draftID, "evidence"), nil, &body); err != nil {
		return nil, err
	}
	return body.Files, nil
}

// UploadEvidence streams r as the multipart field "file".
func (c *Client) UploadEvidence(ctx context.Context, draftID, name string, r io.Reader, size int64) (draft.EvidenceFile, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.draftPath(draftID, "evidence"), pr)
	if err != nil {
		pr.Close()
		return draft.EvidenceFile{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("X-File-Size", fmt.Sprintf("%d", size))

	var file draft.EvidenceFile
	err = c.send(req, &file)
	return file, err
}

// DraftSummary is one row of the draft list.
type DraftSummary struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Status           draft.Status `json:"status"`
	CurrentVersionID string       `json:"currentVersionId"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func (c *Client) ListDrafts(ctx context.Context) ([]DraftSummary, error) {
	var body struct {
		Drafts []DraftSummary `json:"drafts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/drafts", nil, &body); err != nil {
		return nil, err
	}
	return body.Drafts, nil
}

// SearchHit is one search result; Type is "draft" or "suggestion".
type SearchHit struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	DraftID string `json:"draftId"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Status  string `json:"status"`
}

// SearchOptions narrows a search. Zero values mean no filter.
type SearchOptions struct {
	Type    string
	DraftID string
	Status  string
	Limit   int
}

func (c *Client) Search(ctx context.Context, text string, opts SearchOptions) ([]SearchHit, int, error) {
	query := url.Values{"q": {text}}
	if opts.Type != "" {
		query.Set("type", opts.Type)
	}
	if opts.DraftID != "" {
		query.Set("draftId", opts.DraftID)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	var body struct {
		Results []SearchHit `json:"results"`
		Total   int         `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/search?"+query.Encode(), nil, &body); err != nil {
		return nil, 0, err
	}
	return body.Results, body.Total, nil
}

func (c *Client) Finalize(ctx context.Context, draftID string) error {
	return c.do(ctx, http.MethodPost, c.draftPath(draftID, "finalize"), nil, nil)
}

// Export returns the rendered document. format is "html" or "pdf".
func (c *Client) Export(ctx context.Context, draftID, format string) ([]byte, string, error) {
	path := c.draftPath(draftID, "export") + "?format=" + url.QueryEscape(format)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", decodeError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Message: strings.TrimSpace(string(data))}
	}
	return &APIError{Status: resp.StatusCode, Code: body.Code, Message: body.Error}
}
