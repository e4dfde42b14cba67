// Package editor is the draft editing engine. A Controller owns one draft's
// client-side state: the immutable layout, the editable field overlay, the
// debounced save pipeline, the backend-confirmed undo/redo stacks and the AI
// suggestion lifecycle.
//
// All state lives behind a single mutex and every action method updates it
// in one critical section. Backend calls are made without holding that
// mutex; operations that produce or move versions (save, undo, redo, AI
// insert) are additionally serialized so the final CurrentVersionID always
// comes from the last server response. Responses that arrive after the
// draft was cleared or replaced are dropped.
package editor

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"draftline/internal/debounce"
	"draftline/internal/draft"
	"draftline/internal/layout"
)

// Backend is the transport collaborator.
type Backend interface {
	GetDraft(ctx context.Context, draftID string) (draft.Payload, error)
	UpdateFields(ctx context.Context, draftID string, fields draft.Fields) (draft.SaveResult, error)
	Undo(ctx context.Context, draftID string) (draft.VersionShift, error)
	Redo(ctx context.Context, draftID string) (draft.VersionShift, error)
	Suggest(ctx context.Context, draftID string, req draft.SuggestRequest) (draft.Suggestion, error)
	// InsertSuggestion must fail with draft.ErrSuggestionProcessed when the
	// suggestion was already inserted or rejected.
	InsertSuggestion(ctx context.Context, draftID, suggestionID string) (draft.InsertResult, error)
	RejectSuggestion(ctx context.Context, draftID, suggestionID string) error
	ListEvidence(ctx context.Context, draftID string) ([]draft.EvidenceFile, error)
	UploadEvidence(ctx context.Context, draftID, name string, r io.Reader, size int64) (draft.EvidenceFile, error)
}

const (
	DefaultSaveDelay = 2 * time.Second
	MaxUndoEntries   = 50
)

type EntryKind string

const (
	KindFormUpdate EntryKind = "form_update"
	KindAIInsert   EntryKind = "ai_insert"
)

// VersionEntry is one confirmed mutation on the undo or redo stack. Only the
// server-issued id is kept, never a diff.
type VersionEntry struct {
	VersionID string
	Kind      EntryKind
	At        time.Time
}

type Options struct {
	SaveDelay    time.Duration
	ResponseSize draft.ResponseSize
	Logger       *log.Logger
	Now          func() time.Time
}

// State is a copy of everything UI consumers observe.
type State struct {
	DraftID           string
	Title             string
	Status            draft.Status
	TemplateVersionID string
	CurrentVersionID  string
	Pages             []layout.Page
	HasLayout         bool
	FallbackHTML      string
	Fields            draft.Fields
	Schema            *draft.Schema

	PendingChanges draft.Fields
	Dirty          bool
	Saving         bool
	LastSavedAt    time.Time

	UndoStack []VersionEntry
	RedoStack []VersionEntry

	PendingSuggestions []draft.Suggestion
	Chat               []draft.ChatMessage
	AILoading          bool

	Evidence         []draft.EvidenceFile
	SelectedEvidence []string

	Loading bool
	// LoadErr blocks rendering; Retry clears it.
	LoadErr error
	// Notice is a dismissible, non-blocking error.
	Notice *Error
}

func (s State) CanUndo() bool { return len(s.UndoStack) > 0 }

func (s State) CanRedo() bool { return len(s.RedoStack) > 0 }

type state struct {
	State
	aiInFlight int
	processed  map[string]struct{}
}

type Controller struct {
	backend Backend
	log     *log.Logger
	now     func() time.Time
	size    draft.ResponseSize
	saver   *debounce.Debouncer

	mu            sync.Mutex
	st            state
	gen           uint64
	lastRequested string

	// versionMu serializes every operation that moves CurrentVersionID.
	versionMu sync.Mutex
	// saveDone is signalled, with mu, whenever a save request returns.
	saveDone *sync.Cond
}

func New(backend Backend, opts Options) *Controller {
	if opts.SaveDelay <= 0 {
		opts.SaveDelay = DefaultSaveDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ResponseSize == "" {
		opts.ResponseSize = draft.ResponseMedium
	}
	c := &Controller{
		backend: backend,
		log:     opts.Logger,
		now:     opts.Now,
		size:    opts.ResponseSize,
		st:      emptyState(),
	}
	c.saveDone = sync.NewCond(&c.mu)
	c.saver = debounce.New(opts.SaveDelay, c.debouncedSave)
	return c
}

func emptyState() state {
	return state{processed: make(map[string]struct{})}
}

// Load fetches the draft and replaces all transient state. Staged edits of
// the current draft, including ones made while a save was in flight, are
// saved first. Chat history survives only when the same draft is loaded
// again.
func (c *Controller) Load(ctx context.Context, draftID string) error {
	if err := c.drainSaves(ctx); err != nil && !errors.Is(err, ErrFinalized) {
		c.log.Printf("WARNING: saving staged edits before load failed: %v", err)
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	var chat []draft.ChatMessage
	if c.st.DraftID == draftID {
		chat = c.st.Chat
	}
	c.st = emptyState()
	c.st.DraftID = draftID
	c.st.Loading = true
	c.st.Chat = chat
	c.lastRequested = draftID
	c.mu.Unlock()

	payload, err := c.backend.GetDraft(ctx, draftID)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	c.st.Loading = false
	if err != nil {
		failure := apiFailure("load", err)
		c.st.LoadErr = failure
		c.mu.Unlock()
		return failure
	}
	d := payload.Hydrate()
	c.applyDraft(d)
	c.st.CurrentVersionID = d.CurrentVersionID
	if orphans := draft.OrphanKeys(d.Fields, draft.KnownKeys(d.Pages, d.Schema)); len(orphans) > 0 {
		c.log.Printf("WARNING: draft %s has fields without a block or schema entry: %v", draftID, orphans)
	}
	c.mu.Unlock()

	go c.loadEvidence(context.WithoutCancel(ctx), draftID, gen)
	return nil
}

// Retry re-runs the last Load, typically after a blocking load error.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	draftID := c.lastRequested
	c.mu.Unlock()
	if draftID == "" {
		return ErrNoDraft
	}
	return c.Load(ctx, draftID)
}

// Clear drops the draft and every piece of transient state. A pending
// debounced save is discarded; use Close to persist it first.
func (c *Controller) Clear() {
	c.saver.Cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.st = emptyState()
	c.lastRequested = ""
	c.saveDone.Broadcast()
}

// Close is the teardown path: it waits for a save in flight, sends every
// edit still staged, then clears the draft.
func (c *Controller) Close(ctx context.Context) error {
	err := c.drainSaves(ctx)
	c.Clear()
	if errors.Is(err, ErrFinalized) {
		return nil
	}
	return err
}

// reload refreshes the draft from the server after a version change. Stacks,
// suggestions and chat are kept; unsaved pending changes are laid back over
// the server's fields.
func (c *Controller) reload(ctx context.Context, draftID string, gen uint64) error {
	payload, err := c.backend.GetDraft(ctx, draftID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live(draftID, gen) {
		return nil
	}
	if err != nil {
		failure := apiFailure("reload", err)
		c.st.Notice = failure
		return failure
	}
	d := payload.Hydrate()
	c.applyDraft(d)
	c.st.CurrentVersionID = d.CurrentVersionID
	for key, value := range c.st.PendingChanges {
		c.st.Fields[key] = value
	}
	c.st.Dirty = len(c.st.PendingChanges) > 0
	return nil
}

func (c *Controller) applyDraft(d draft.Draft) {
	c.st.Title = d.Title
	c.st.Status = d.Status
	c.st.TemplateVersionID = d.TemplateVersionID
	c.st.Pages = d.Pages
	c.st.HasLayout = d.HasLayout()
	c.st.FallbackHTML = d.FallbackHTML
	c.st.Fields = d.Fields
	c.st.Schema = d.Schema
}

// live reports whether a response for draftID issued at generation gen still
// applies. Callers hold c.mu.
func (c *Controller) live(draftID string, gen uint64) bool {
	return c.gen == gen && c.st.DraftID == draftID
}

// begin checks the entry guards shared by every mutation. Callers hold c.mu.
func (c *Controller) begin() (string, uint64, error) {
	if c.st.DraftID == "" || c.st.Loading || c.st.LoadErr != nil {
		return "", 0, ErrNoDraft
	}
	if c.st.Status.Terminal() {
		return "", 0, ErrFinalized
	}
	return c.st.DraftID, c.gen, nil
}

// Field is getField.
func (c *Controller) Field(key string) (draft.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.st.Fields[key]
	return value, ok
}

// Layout is getLayout: a copy of the draft's pages.
func (c *Controller) Layout() []layout.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return layout.ClonePages(c.st.Pages)
}

func (c *Controller) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.CanUndo()
}

func (c *Controller) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.CanRedo()
}

func (c *Controller) DismissNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.Notice = nil
}

// Report is the result of the field-integrity lint.
type Report struct {
	Orphans  []string
	Problems []draft.FieldError
}

func (r Report) OK() bool {
	return len(r.Orphans) == 0 && len(r.Problems) == 0
}

// Validate lints the current field map against the layout and schema.
func (c *Controller) Validate() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Report{
		Orphans:  draft.OrphanKeys(c.st.Fields, draft.KnownKeys(c.st.Pages, c.st.Schema)),
		Problems: c.st.Schema.Validate(c.st.Fields),
	}
}

// Snapshot returns a deep copy of the observable state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.st.State
	s.Pages = layout.ClonePages(c.st.Pages)
	s.Fields = c.st.Fields.Clone()
	s.PendingChanges = c.st.PendingChanges.Clone()
	s.UndoStack = append([]VersionEntry(nil), c.st.UndoStack...)
	s.RedoStack = append([]VersionEntry(nil), c.st.RedoStack...)
	s.PendingSuggestions = append([]draft.Suggestion(nil), c.st.PendingSuggestions...)
	s.Chat = append([]draft.ChatMessage(nil), c.st.Chat...)
	s.Evidence = append([]draft.EvidenceFile(nil), c.st.Evidence...)
	s.SelectedEvidence = append([]string(nil), c.st.SelectedEvidence...)
	return s
}
