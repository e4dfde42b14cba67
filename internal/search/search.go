// Package search finds drafts and suggestions by text. Meilisearch is used
// when configured and healthy; PostgreSQL full-text search is the fallback.
package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultDraft      ResultType = "draft"
	ResultSuggestion ResultType = "suggestion"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	DraftID string     `json:"draftId"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Status  string     `json:"status"`
}

// Query describes a search request.
type Query struct {
	Text          string
	FilterType    ResultType // empty = all types
	FilterDraftID string
	FilterStatus  string
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexDraft(d DraftRecord) error
	IndexSuggestion(s SuggestionRecord) error
}

// DraftRecord is the data we index for a draft. Fields holds the field
// values of the head version as "key: value" lines.
type DraftRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Fields string `json:"fields"`
}

// SuggestionRecord is the data we index for a suggestion.
type SuggestionRecord struct {
	ID          string `json:"id"`
	DraftID     string `json:"draftId"`
	TargetBlock string `json:"targetBlock"`
	Instruction string `json:"instruction"`
	Content     string `json:"content"`
	Status      string `json:"status"`
}
