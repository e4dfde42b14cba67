// Package draft holds the draft aggregate and the types exchanged between the
// editing engine and the draft backend.
package draft

import (
	"errors"
	"time"

	"draftline/internal/layout"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusExported  Status = "exported"
	StatusFinalized Status = "finalized"
)

// Terminal reports whether the status forbids further mutation.
func (s Status) Terminal() bool {
	return s == StatusFinalized
}

var (
	// ErrSuggestionProcessed is returned by a backend when a suggestion was
	// already inserted or rejected.
	ErrSuggestionProcessed = errors.New("suggestion already processed")
	// ErrFinalized is returned by a backend for mutations on a finalized draft.
	ErrFinalized = errors.New("draft is finalized")
	ErrNotFound  = errors.New("draft not found")
)

// Draft is the aggregate root as the engine holds it after hydration.
type Draft struct {
	ID                string
	Title             string
	Status            Status
	TemplateVersionID string
	CurrentVersionID  string
	Pages             []layout.Page
	Fields            Fields
	Schema            *Schema
	FallbackHTML      string
}

// HasLayout is false for documents that only render through FallbackHTML.
func (d Draft) HasLayout() bool {
	return len(d.Pages) > 0
}

type Layout struct {
	Pages []layout.Page `json:"pages"`
}

// LegacyBlock is a layout block from documents generated before fields were
// stored separately; the value sits on the block itself.
type LegacyBlock struct {
	layout.Block
	Value *Value `json:"value,omitempty"`
}

// Payload is the full getDraft response. A nil Fields map means the server
// sent no fields object at all (legacy document).
type Payload struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Status            Status        `json:"status"`
	TemplateVersionID string        `json:"templateVersionId"`
	CurrentVersionID  string        `json:"currentVersionId"`
	Layout            Layout        `json:"layout"`
	Fields            Fields        `json:"fields"`
	Blocks            []LegacyBlock `json:"blocks,omitempty"`
	Schema            *Schema       `json:"schema,omitempty"`
	FallbackHTML      string        `json:"fallbackHtml,omitempty"`
}

// Hydrate resolves the field source once and builds the aggregate.
func (p Payload) Hydrate() Draft {
	status := p.Status
	if status == "" {
		status = StatusDraft
	}
	return Draft{
		ID:                p.ID,
		Title:             p.Title,
		Status:            status,
		TemplateVersionID: p.TemplateVersionID,
		CurrentVersionID:  p.CurrentVersionID,
		Pages:             p.Layout.Pages,
		Fields:            ResolveFieldSource(p).Hydrate(),
		Schema:            p.Schema,
		FallbackHTML:      p.FallbackHTML,
	}
}

type SaveResult struct {
	VersionID string `json:"versionId"`
	VersionNo int    `json:"versionNo"`
}

type VersionShift struct {
	PreviousVersionID string `json:"previousVersionId"`
	CurrentVersionID  string `json:"currentVersionId"`
}

type ResponseSize string

const (
	ResponseShort  ResponseSize = "short"
	ResponseMedium ResponseSize = "medium"
	ResponseLong   ResponseSize = "long"
)

type SuggestRequest struct {
	TargetBlock  string       `json:"targetBlock" validate:"required"`
	Instruction  string       `json:"instruction,omitempty" validate:"max=2000"`
	FileIDs      []string     `json:"fileIds,omitempty" validate:"max=20,dive,required"`
	StateAware   bool         `json:"stateAware"`
	ResponseSize ResponseSize `json:"responseSize" validate:"omitempty,oneof=short medium long"`
}

type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionInserted SuggestionStatus = "inserted"
	SuggestionRejected SuggestionStatus = "rejected"
)

func (s SuggestionStatus) Terminal() bool {
	return s == SuggestionInserted || s == SuggestionRejected
}

type Suggestion struct {
	SuggestionID string           `json:"suggestionId"`
	TargetBlock  string           `json:"targetBlock"`
	Content      string           `json:"content"`
	Status       SuggestionStatus `json:"status"`
}

type InsertResult struct {
	VersionID   string `json:"versionId"`
	TargetBlock string `json:"targetBlock"`
}

type EvidenceFile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatMessage struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}
