package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"draftline/internal/config"
	"draftline/internal/draft"
	"draftline/internal/evidence"
	"draftline/internal/export"
	"draftline/internal/gitrepo"
	"draftline/internal/history"
	"draftline/internal/layout"
	"draftline/internal/search"
	"draftline/internal/store"
	"draftline/internal/suggest"
	"draftline/internal/util"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

const (
	editorAuthor = "Draft Editor"
	// excerptBytes is how much of each evidence file reaches the generator.
	excerptBytes = 4 << 10
	// MaxEvidenceBytes caps a single evidence upload.
	MaxEvidenceBytes = 20 << 20
)

type dataStore interface {
	ListDrafts(ctx context.Context) ([]store.Draft, error)
	GetDraft(ctx context.Context, draftID string) (store.Draft, error)
	InsertDraft(ctx context.Context, item store.Draft) error
	DraftCount(ctx context.Context) (int, error)
	UpdateDraftVersion(ctx context.Context, draftID, versionID string) error
	UpdateDraftStatus(ctx context.Context, draftID, status string) error
	InsertSuggestion(ctx context.Context, item store.Suggestion) error
	GetSuggestion(ctx context.Context, draftID, suggestionID string) (store.Suggestion, error)
	SettleSuggestion(ctx context.Context, suggestionID, status, versionID string) (bool, error)
	InsertEvidence(ctx context.Context, item store.EvidenceFile) error
	ListEvidence(ctx context.Context, draftID string) ([]store.EvidenceFile, error)
	GetEvidence(ctx context.Context, draftID string, ids []string) ([]store.EvidenceFile, error)
	Ping(ctx context.Context) error
}

type versionRepo interface {
	EnsureDraftRepo(draftID string, initial gitrepo.Content, author string) (store.CommitInfo, error)
	CommitFields(draftID string, content gitrepo.Content, author, message string) (store.CommitInfo, error)
	HeadContent(draftID string) (gitrepo.Content, store.CommitInfo, error)
	ResetTo(draftID, hash string) (store.CommitInfo, error)
	History(draftID string, limit int) ([]store.CommitInfo, error)
	ContentAt(draftID, hash string) (gitrepo.Content, error)
}

type historyStore interface {
	RecordVersion(ctx context.Context, draftID, replacedVersionID string) error
	Shift(ctx context.Context, draftID string, from history.Stack, currentVersionID string) (string, error)
	Clear(ctx context.Context, draftID string) error
	Depth(ctx context.Context, draftID string) (undo, redo int64, err error)
	ClaimSuggestion(ctx context.Context, suggestionID string) (bool, error)
	ReleaseSuggestion(ctx context.Context, suggestionID string) error
	Ping(ctx context.Context) error
}

type blobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Ping(ctx context.Context) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexDraft(d search.DraftRecord)
	IndexSuggestion(s search.SuggestionRecord)
	ReindexAll(ctx context.Context, drafts []search.DraftRecord)
}

type exporter interface {
	Export(ctx context.Context, doc export.Document, format export.Format) (*export.Result, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	git       versionRepo
	history   historyStore
	blobs     blobStore
	generator suggest.Generator
	exporter  exporter
	search    searchIndex
	validate  *validator.Validate

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// Deps groups the collaborators of a Service. Blobs and Search may be nil
// when evidence storage or search is not configured.
type Deps struct {
	Store     dataStore
	Git       versionRepo
	History   historyStore
	Blobs     blobStore
	Generator suggest.Generator
	Exporter  exporter
	Search    searchIndex
}

func New(cfg config.Config, deps Deps) *Service {
	generator := deps.Generator
	if generator == nil {
		generator = suggest.Template{}
	}
	exp := deps.Exporter
	if exp == nil {
		exp = export.NewService()
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		git:       deps.Git,
		history:   deps.History,
		blobs:     deps.Blobs,
		generator: generator,
		exporter:  exp,
		search:    deps.Search,
		validate:  validator.New(),
		locks:     make(map[string]*sync.Mutex),
	}
}

// DraftSummary is one entry of the draft list.
type DraftSummary struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Status           string    `json:"status"`
	CurrentVersionID string    `json:"currentVersionId"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (s *Service) draftLock(draftID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[draftID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[draftID] = lock
	return lock
}

// Bootstrap seeds a sample agreement when the store is empty and rebuilds
// the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	count, err := s.store.DraftCount(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		if err := s.seed(ctx); err != nil {
			return err
		}
	}
	s.reindex(ctx)
	return nil
}

func (s *Service) seed(ctx context.Context) error {
	seed := sampleAgreement()
	layoutJSON, err := json.Marshal(draft.Layout{Pages: seed.Pages})
	if err != nil {
		return fmt.Errorf("marshal seed layout: %w", err)
	}
	schemaJSON, err := json.Marshal(seed.Schema)
	if err != nil {
		return fmt.Errorf("marshal seed schema: %w", err)
	}

	draftID := util.NewID("drf")
	head, err := s.git.EnsureDraftRepo(draftID, gitrepo.Content{Fields: seed.Fields}, editorAuthor)
	if err != nil {
		return err
	}
	return s.store.InsertDraft(ctx, store.Draft{
		ID:                draftID,
		Title:             seed.Title,
		Status:            string(draft.StatusDraft),
		TemplateVersionID: seed.TemplateVersionID,
		CurrentVersionID:  head.Hash,
		Layout:            layoutJSON,
		Schema:            schemaJSON,
	})
}

// CreateDraft registers a generated document and its initial field values.
func (s *Service) CreateDraft(ctx context.Context, item draft.Draft) (draft.Payload, error) {
	if strings.TrimSpace(item.Title) == "" {
		return draft.Payload{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if item.ID == "" {
		item.ID = util.NewID("drf")
	}
	layoutJSON, err := json.Marshal(draft.Layout{Pages: item.Pages})
	if err != nil {
		return draft.Payload{}, fmt.Errorf("marshal layout: %w", err)
	}
	var schemaJSON json.RawMessage
	if item.Schema != nil {
		if schemaJSON, err = json.Marshal(item.Schema); err != nil {
			return draft.Payload{}, fmt.Errorf("marshal schema: %w", err)
		}
	}

	head, err := s.git.EnsureDraftRepo(item.ID, gitrepo.Content{Fields: item.Fields}, editorAuthor)
	if err != nil {
		return draft.Payload{}, err
	}
	if err := s.store.InsertDraft(ctx, store.Draft{
		ID:                item.ID,
		Title:             item.Title,
		Status:            string(draft.StatusDraft),
		TemplateVersionID: item.TemplateVersionID,
		CurrentVersionID:  head.Hash,
		Layout:            layoutJSON,
		Schema:            schemaJSON,
		FallbackHTML:      item.FallbackHTML,
	}); err != nil {
		return draft.Payload{}, err
	}
	s.indexDraft(ctx, item.ID)
	return s.GetDraft(ctx, item.ID)
}

func (s *Service) ListDrafts(ctx context.Context) ([]DraftSummary, error) {
	rows, err := s.store.ListDrafts(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]DraftSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, DraftSummary{
			ID:               row.ID,
			Title:            row.Title,
			Status:           row.Status,
			CurrentVersionID: row.CurrentVersionID,
			UpdatedAt:        row.UpdatedAt,
		})
	}
	return items, nil
}

// GetDraft returns the stored row with the fields of the head version.
func (s *Service) GetDraft(ctx context.Context, draftID string) (draft.Payload, error) {
	row, err := s.store.GetDraft(ctx, draftID)
	if err != nil {
		return draft.Payload{}, err
	}
	content, head, err := s.git.HeadContent(draftID)
	if err != nil {
		return draft.Payload{}, err
	}
	return payloadFromRow(row, content.Fields, head.Hash)
}

func payloadFromRow(row store.Draft, fields draft.Fields, headHash string) (draft.Payload, error) {
	payload := draft.Payload{
		ID:                row.ID,
		Title:             row.Title,
		Status:            draft.Status(row.Status),
		TemplateVersionID: row.TemplateVersionID,
		CurrentVersionID:  headHash,
		Fields:            fields,
		FallbackHTML:      row.FallbackHTML,
	}
	if payload.Fields == nil {
		payload.Fields = draft.Fields{}
	}
	if len(row.Layout) > 0 {
		if err := json.Unmarshal(row.Layout, &payload.Layout); err != nil {
			return draft.Payload{}, fmt.Errorf("decode layout for %s: %w", row.ID, err)
		}
	}
	if len(row.Schema) > 0 && string(row.Schema) != "null" {
		var schema draft.Schema
		if err := json.Unmarshal(row.Schema, &schema); err != nil {
			return draft.Payload{}, fmt.Errorf("decode schema for %s: %w", row.ID, err)
		}
		payload.Schema = &schema
	}
	return payload, nil
}

// mutableDraft loads the row and refuses terminal drafts.
func (s *Service) mutableDraft(ctx context.Context, draftID string) (store.Draft, error) {
	row, err := s.store.GetDraft(ctx, draftID)
	if err != nil {
		return store.Draft{}, err
	}
	if draft.Status(row.Status).Terminal() {
		return store.Draft{}, domainError(http.StatusConflict, "DRAFT_FINALIZED", "Draft is finalized", nil)
	}
	return row, nil
}

// UpdateFields merges fields into the head version and commits the result.
// A merge that changes nothing returns the current version.
func (s *Service) UpdateFields(ctx context.Context, draftID string, fields draft.Fields) (draft.SaveResult, error) {
	if len(fields) == 0 {
		return draft.SaveResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "fields are required", nil)
	}
	lock := s.draftLock(draftID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.mutableDraft(ctx, draftID); err != nil {
		return draft.SaveResult{}, err
	}
	current, head, err := s.git.HeadContent(draftID)
	if err != nil {
		return draft.SaveResult{}, err
	}
	next := gitrepo.Content{Fields: current.Fields.Clone()}
	for key, value := range fields {
		next.Fields[key] = value
	}
	changed := gitrepo.ChangedKeys(current, next)
	if len(changed) == 0 {
		versionNo, err := s.versionNo(draftID)
		if err != nil {
			return draft.SaveResult{}, err
		}
		return draft.SaveResult{VersionID: head.Hash, VersionNo: versionNo}, nil
	}

	commit, err := s.commitVersion(ctx, draftID, head.Hash, next, "form_update: "+strings.Join(changed, ", "))
	if err != nil {
		return draft.SaveResult{}, err
	}
	s.indexDraft(ctx, draftID)
	versionNo, err := s.versionNo(draftID)
	if err != nil {
		return draft.SaveResult{}, err
	}
	return draft.SaveResult{VersionID: commit.Hash, VersionNo: versionNo}, nil
}

// commitVersion writes content as a new version and records the replaced
// one for undo. Callers hold the draft lock.
func (s *Service) commitVersion(ctx context.Context, draftID, replaced string, content gitrepo.Content, message string) (store.CommitInfo, error) {
	commit, err := s.git.CommitFields(draftID, content, editorAuthor, message)
	if err != nil {
		return store.CommitInfo{}, err
	}
	if err := s.history.RecordVersion(ctx, draftID, replaced); err != nil {
		return store.CommitInfo{}, fmt.Errorf("record version: %w", err)
	}
	if err := s.store.UpdateDraftVersion(ctx, draftID, commit.Hash); err != nil {
		return store.CommitInfo{}, err
	}
	return commit, nil
}

func (s *Service) versionNo(draftID string) (int, error) {
	items, err := s.git.History(draftID, 0)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// VersionEntry is one commit in a draft's version log.
type VersionEntry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// VersionLog lists the versions reachable from the current one, newest
// first, with the depth of both history stacks.
type VersionLog struct {
	CurrentVersionID string         `json:"currentVersionId"`
	Versions         []VersionEntry `json:"versions"`
	UndoDepth        int64          `json:"undoDepth"`
	RedoDepth        int64          `json:"redoDepth"`
}

func (s *Service) Versions(ctx context.Context, draftID string, limit int) (VersionLog, error) {
	if _, err := s.store.GetDraft(ctx, draftID); err != nil {
		return VersionLog{}, err
	}
	if limit < 0 {
		limit = 0
	}
	items, err := s.git.History(draftID, limit)
	if err != nil {
		return VersionLog{}, err
	}
	undo, redo, err := s.history.Depth(ctx, draftID)
	if err != nil {
		return VersionLog{}, err
	}
	out := VersionLog{Versions: make([]VersionEntry, 0, len(items)), UndoDepth: undo, RedoDepth: redo}
	for _, item := range items {
		out.Versions = append(out.Versions, VersionEntry{ID: item.Hash, Message: item.Message, Author: item.Author, CreatedAt: item.CreatedAt})
	}
	if len(items) > 0 {
		out.CurrentVersionID = items[0].Hash
	}
	return out, nil
}

// VersionFields returns the field map as it was at one version of the
// draft's log.
func (s *Service) VersionFields(ctx context.Context, draftID, versionID string) (draft.Fields, error) {
	if _, err := s.store.GetDraft(ctx, draftID); err != nil {
		return nil, err
	}
	items, err := s.git.History(draftID, 0)
	if err != nil {
		return nil, err
	}
	known := false
	for _, item := range items {
		if item.Hash == versionID {
			known = true
			break
		}
	}
	if !known {
		return nil, domainError(http.StatusNotFound, "VERSION_NOT_FOUND", "Version not found", map[string]any{"versionId": versionID})
	}
	content, err := s.git.ContentAt(draftID, versionID)
	if err != nil {
		return nil, err
	}
	if content.Fields == nil {
		return draft.Fields{}, nil
	}
	return content.Fields, nil
}

func (s *Service) Undo(ctx context.Context, draftID string) (draft.VersionShift, error) {
	return s.shift(ctx, draftID, history.Undo)
}

func (s *Service) Redo(ctx context.Context, draftID string) (draft.VersionShift, error) {
	return s.shift(ctx, draftID, history.Redo)
}

// shift moves main to the top of one stack and parks the current version on
// the other. A failed reset puts both stacks back.
func (s *Service) shift(ctx context.Context, draftID string, from history.Stack) (draft.VersionShift, error) {
	lock := s.draftLock(draftID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.mutableDraft(ctx, draftID); err != nil {
		return draft.VersionShift{}, err
	}
	_, head, err := s.git.HeadContent(draftID)
	if err != nil {
		return draft.VersionShift{}, err
	}

	target, err := s.history.Shift(ctx, draftID, from, head.Hash)
	if errors.Is(err, history.ErrEmpty) {
		if from == history.Undo {
			return draft.VersionShift{}, domainError(http.StatusConflict, "NOTHING_TO_UNDO", "Nothing to undo", nil)
		}
		return draft.VersionShift{}, domainError(http.StatusConflict, "NOTHING_TO_REDO", "Nothing to redo", nil)
	}
	if err != nil {
		return draft.VersionShift{}, fmt.Errorf("shift %s stack: %w", from, err)
	}

	if _, err := s.git.ResetTo(draftID, target); err != nil {
		opposite := history.Redo
		if from == history.Redo {
			opposite = history.Undo
		}
		if _, restoreErr := s.history.Shift(ctx, draftID, opposite, target); restoreErr != nil {
			log.Printf("WARNING: could not restore %s stack for draft %s: %v", from, draftID, restoreErr)
		}
		return draft.VersionShift{}, err
	}
	if err := s.store.UpdateDraftVersion(ctx, draftID, target); err != nil {
		return draft.VersionShift{}, err
	}
	s.indexDraft(ctx, draftID)
	return draft.VersionShift{PreviousVersionID: head.Hash, CurrentVersionID: target}, nil
}

// Suggest asks the generator for a value for one field and stores it as a
// pending suggestion.
func (s *Service) Suggest(ctx context.Context, draftID string, req draft.SuggestRequest) (draft.Suggestion, error) {
	req.TargetBlock = strings.TrimSpace(req.TargetBlock)
	if err := s.validate.Struct(req); err != nil {
		return draft.Suggestion{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid suggestion request", validationDetails(err))
	}

	row, err := s.mutableDraft(ctx, draftID)
	if err != nil {
		return draft.Suggestion{}, err
	}
	payload, err := s.GetDraft(ctx, draftID)
	if err != nil {
		return draft.Suggestion{}, err
	}

	block, inLayout := layout.FindBlockByKey(layout.Flatten(payload.Layout.Pages), req.TargetBlock)
	schemaField, inSchema := payload.Schema.Field(req.TargetBlock)
	if !inLayout && !inSchema {
		return draft.Suggestion{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown target block", map[string]any{"targetBlock": req.TargetBlock})
	}

	genReq := suggest.Request{
		DraftTitle:   row.Title,
		TargetBlock:  req.TargetBlock,
		Label:        schemaField.Label,
		BlockText:    block.Text,
		CurrentValue: payload.Fields[req.TargetBlock].Text(),
		Instruction:  strings.TrimSpace(req.Instruction),
		Size:         req.ResponseSize,
	}
	if req.StateAware {
		genReq.Fields = make(map[string]string)
		for key, value := range payload.Fields {
			if key != req.TargetBlock && !value.Empty() {
				genReq.Fields[key] = value.Text()
			}
		}
	}
	if len(req.FileIDs) > 0 {
		genReq.Evidence, err = s.excerpts(ctx, draftID, req.FileIDs)
		if err != nil {
			return draft.Suggestion{}, err
		}
	}

	content, err := s.generator.Generate(ctx, genReq)
	if err != nil {
		log.Printf("WARNING: suggestion for draft %s block %s failed: %v", draftID, req.TargetBlock, err)
		return draft.Suggestion{}, domainError(http.StatusBadGateway, "SUGGESTION_FAILED", "Could not generate a suggestion", nil)
	}
	content = strings.TrimSpace(content)

	item := store.Suggestion{
		ID:          util.NewID("sug"),
		DraftID:     draftID,
		TargetBlock: req.TargetBlock,
		Instruction: genReq.Instruction,
		Content:     content,
		Status:      string(draft.SuggestionPending),
	}
	if err := s.store.InsertSuggestion(ctx, item); err != nil {
		return draft.Suggestion{}, err
	}
	s.indexSuggestion(item)
	return draft.Suggestion{
		SuggestionID: item.ID,
		TargetBlock:  item.TargetBlock,
		Content:      item.Content,
		Status:       draft.SuggestionPending,
	}, nil
}

// excerpts reads the head of each selected evidence file. Files that cannot
// be read are skipped.
func (s *Service) excerpts(ctx context.Context, draftID string, fileIDs []string) ([]suggest.Excerpt, error) {
	files, err := s.store.GetEvidence(ctx, draftID, fileIDs)
	if err != nil {
		return nil, err
	}
	if len(files) != len(uniqueStrings(fileIDs)) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown evidence file", map[string]any{"fileIds": fileIDs})
	}
	if s.blobs == nil {
		return nil, nil
	}
	out := make([]suggest.Excerpt, 0, len(files))
	for _, file := range files {
		reader, err := s.blobs.Get(ctx, file.ObjectKey)
		if err != nil {
			log.Printf("WARNING: evidence %s unavailable: %v", file.ID, err)
			continue
		}
		data, err := io.ReadAll(io.LimitReader(reader, excerptBytes))
		reader.Close()
		if err != nil {
			log.Printf("WARNING: evidence %s unreadable: %v", file.ID, err)
			continue
		}
		out = append(out, suggest.Excerpt{Name: file.Name, Text: string(data)})
	}
	return out, nil
}

// InsertSuggestion commits a pending suggestion as an ai_insert version.
// Only the first call per suggestion succeeds; later ones get
// SUGGESTION_ALREADY_PROCESSED.
func (s *Service) InsertSuggestion(ctx context.Context, draftID, suggestionID string) (draft.InsertResult, error) {
	lock := s.draftLock(draftID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.mutableDraft(ctx, draftID); err != nil {
		return draft.InsertResult{}, err
	}
	item, err := s.store.GetSuggestion(ctx, draftID, suggestionID)
	if err != nil {
		return draft.InsertResult{}, err
	}
	if item.Status != string(draft.SuggestionPending) {
		return draft.InsertResult{}, alreadyProcessed(item.Status)
	}
	claimed, err := s.history.ClaimSuggestion(ctx, suggestionID)
	if err != nil {
		return draft.InsertResult{}, fmt.Errorf("claim suggestion: %w", err)
	}
	if !claimed {
		return draft.InsertResult{}, alreadyProcessed(item.Status)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := s.history.ReleaseSuggestion(context.WithoutCancel(ctx), suggestionID); err != nil {
			log.Printf("WARNING: release claim %s: %v", suggestionID, err)
		}
	}()

	current, head, err := s.git.HeadContent(draftID)
	if err != nil {
		return draft.InsertResult{}, err
	}
	next := gitrepo.Content{Fields: current.Fields.Clone()}
	next.Fields[item.TargetBlock] = draft.String(item.Content)

	commit, err := s.git.CommitFields(draftID, next, editorAuthor, "ai_insert: "+item.TargetBlock)
	if err != nil {
		return draft.InsertResult{}, err
	}
	committed = true

	settled, err := s.store.SettleSuggestion(ctx, suggestionID, string(draft.SuggestionInserted), commit.Hash)
	if err != nil {
		return draft.InsertResult{}, err
	}
	if !settled {
		// Another writer settled the row first; drop the commit.
		if _, err := s.git.ResetTo(draftID, head.Hash); err != nil {
			return draft.InsertResult{}, fmt.Errorf("reset after lost settle: %w", err)
		}
		latest, err := s.store.GetSuggestion(ctx, draftID, suggestionID)
		if err != nil {
			return draft.InsertResult{}, err
		}
		return draft.InsertResult{}, alreadyProcessed(latest.Status)
	}
	if err := s.history.RecordVersion(ctx, draftID, head.Hash); err != nil {
		return draft.InsertResult{}, fmt.Errorf("record version: %w", err)
	}
	if err := s.store.UpdateDraftVersion(ctx, draftID, commit.Hash); err != nil {
		return draft.InsertResult{}, err
	}
	item.Status = string(draft.SuggestionInserted)
	item.VersionID = commit.Hash
	s.indexSuggestion(item)
	s.indexDraft(ctx, draftID)
	return draft.InsertResult{VersionID: commit.Hash, TargetBlock: item.TargetBlock}, nil
}

// RejectSuggestion is idempotent for rejected suggestions. Inserted ones
// cannot be rejected.
func (s *Service) RejectSuggestion(ctx context.Context, draftID, suggestionID string) error {
	lock := s.draftLock(draftID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.mutableDraft(ctx, draftID); err != nil {
		return err
	}
	item, err := s.store.GetSuggestion(ctx, draftID, suggestionID)
	if err != nil {
		return err
	}
	switch draft.SuggestionStatus(item.Status) {
	case draft.SuggestionRejected:
		return nil
	case draft.SuggestionInserted:
		return alreadyProcessed(item.Status)
	}
	// An insert on another instance holds the claim until it settles.
	claimed, err := s.history.ClaimSuggestion(ctx, suggestionID)
	if err != nil {
		return fmt.Errorf("claim suggestion: %w", err)
	}
	if !claimed {
		latest, err := s.store.GetSuggestion(ctx, draftID, suggestionID)
		if err != nil {
			return err
		}
		if latest.Status == string(draft.SuggestionRejected) {
			return nil
		}
		return alreadyProcessed(latest.Status)
	}
	settled, err := s.store.SettleSuggestion(ctx, suggestionID, string(draft.SuggestionRejected), "")
	if err != nil {
		if rerr := s.history.ReleaseSuggestion(context.WithoutCancel(ctx), suggestionID); rerr != nil {
			log.Printf("WARNING: release claim %s: %v", suggestionID, rerr)
		}
		return err
	}
	if !settled {
		latest, err := s.store.GetSuggestion(ctx, draftID, suggestionID)
		if err != nil {
			return err
		}
		if latest.Status != string(draft.SuggestionRejected) {
			return alreadyProcessed(latest.Status)
		}
		return nil
	}
	item.Status = string(draft.SuggestionRejected)
	s.indexSuggestion(item)
	return nil
}

func alreadyProcessed(status string) error {
	return domainError(http.StatusConflict, "SUGGESTION_ALREADY_PROCESSED", "Suggestion was already processed", map[string]any{"status": status})
}

func (s *Service) ListEvidence(ctx context.Context, draftID string) ([]draft.EvidenceFile, error) {
	if _, err := s.store.GetDraft(ctx, draftID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListEvidence(ctx, draftID)
	if err != nil {
		return nil, err
	}
	files := make([]draft.EvidenceFile, 0, len(rows))
	for _, row := range rows {
		files = append(files, evidenceView(row))
	}
	return files, nil
}

// UploadEvidence stores the blob and then its metadata. The content type is
// sniffed from the first bytes when the caller sent none.
func (s *Service) UploadEvidence(ctx context.Context, draftID, name, contentType string, r io.Reader, size int64) (draft.EvidenceFile, error) {
	if s.blobs == nil {
		return draft.EvidenceFile{}, domainError(http.StatusServiceUnavailable, "EVIDENCE_UNAVAILABLE", "Evidence storage is not configured", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return draft.EvidenceFile{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file name is required", nil)
	}
	if size > MaxEvidenceBytes {
		return draft.EvidenceFile{}, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the upload limit", map[string]any{"maxBytes": MaxEvidenceBytes})
	}
	if _, err := s.mutableDraft(ctx, draftID); err != nil {
		return draft.EvidenceFile{}, err
	}

	buffered := bufio.NewReaderSize(r, 3072)
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := buffered.Peek(3072)
		contentType = mimetype.Detect(head).String()
	}

	fileID := util.NewID("evd")
	key := evidence.ObjectKey(draftID, fileID, name)
	written, err := s.blobs.Put(ctx, key, buffered, size, contentType)
	if err != nil {
		return draft.EvidenceFile{}, err
	}
	row := store.EvidenceFile{
		ID:          fileID,
		DraftID:     draftID,
		Name:        name,
		ObjectKey:   key,
		Size:        written,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.InsertEvidence(ctx, row); err != nil {
		return draft.EvidenceFile{}, err
	}
	return evidenceView(row), nil
}

func evidenceView(row store.EvidenceFile) draft.EvidenceFile {
	return draft.EvidenceFile{
		ID:          row.ID,
		Name:        row.Name,
		Size:        row.Size,
		ContentType: row.ContentType,
		CreatedAt:   row.CreatedAt,
	}
}

// Export renders the head version. Exporting a draft in the draft state
// moves it to exported.
func (s *Service) Export(ctx context.Context, draftID, format string) (*export.Result, error) {
	parsed, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be html or pdf", map[string]any{"format": format})
	}
	payload, err := s.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	result, err := s.exporter.Export(ctx, export.Document{
		Title:        payload.Title,
		Status:       payload.Status,
		VersionID:    payload.CurrentVersionID,
		Pages:        payload.Layout.Pages,
		Fields:       payload.Fields,
		FallbackHTML: payload.FallbackHTML,
	}, parsed)
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
	}
	if err != nil {
		return nil, err
	}
	if payload.Status == draft.StatusDraft {
		if err := s.store.UpdateDraftStatus(ctx, draftID, string(draft.StatusExported)); err != nil {
			return nil, err
		}
		s.indexDraft(ctx, draftID)
	}
	return result, nil
}

// Finalize makes the draft read-only and drops its undo history.
func (s *Service) Finalize(ctx context.Context, draftID string) error {
	lock := s.draftLock(draftID)
	lock.Lock()
	defer lock.Unlock()

	row, err := s.store.GetDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if draft.Status(row.Status).Terminal() {
		return nil
	}
	if err := s.store.UpdateDraftStatus(ctx, draftID, string(draft.StatusFinalized)); err != nil {
		return err
	}
	if err := s.history.Clear(ctx, draftID); err != nil {
		log.Printf("WARNING: clear history for finalized draft %s: %v", draftID, err)
	}
	s.indexDraft(ctx, draftID)
	return nil
}

// Search finds drafts and suggestions by text.
func (s *Service) Search(q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
	}
	switch q.FilterType {
	case "", search.ResultDraft, search.ResultSuggestion:
	default:
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be draft or suggestion", nil)
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	return s.search.Search(q), nil
}

func (s *Service) draftRecord(ctx context.Context, draftID string) (search.DraftRecord, error) {
	row, err := s.store.GetDraft(ctx, draftID)
	if err != nil {
		return search.DraftRecord{}, err
	}
	content, _, err := s.git.HeadContent(draftID)
	if err != nil {
		return search.DraftRecord{}, err
	}
	return search.DraftRecord{
		ID:     row.ID,
		Title:  row.Title,
		Status: row.Status,
		Fields: fieldsText(content.Fields),
	}, nil
}

// indexDraft refreshes the search entry of one draft. Failures only log.
func (s *Service) indexDraft(ctx context.Context, draftID string) {
	if s.search == nil {
		return
	}
	record, err := s.draftRecord(ctx, draftID)
	if err != nil {
		log.Printf("WARNING: index draft %s: %v", draftID, err)
		return
	}
	s.search.IndexDraft(record)
}

func (s *Service) indexSuggestion(item store.Suggestion) {
	if s.search == nil {
		return
	}
	s.search.IndexSuggestion(search.SuggestionRecord{
		ID:          item.ID,
		DraftID:     item.DraftID,
		TargetBlock: item.TargetBlock,
		Instruction: item.Instruction,
		Content:     item.Content,
		Status:      item.Status,
	})
}

func (s *Service) reindex(ctx context.Context) {
	if s.search == nil {
		return
	}
	rows, err := s.store.ListDrafts(ctx)
	if err != nil {
		log.Printf("WARNING: reindex: %v", err)
		return
	}
	records := make([]search.DraftRecord, 0, len(rows))
	for _, row := range rows {
		record, err := s.draftRecord(ctx, row.ID)
		if err != nil {
			log.Printf("WARNING: reindex draft %s: %v", row.ID, err)
			continue
		}
		records = append(records, record)
	}
	s.search.ReindexAll(ctx, records)
}

// fieldsText flattens non-empty values to sorted "key: value" lines.
func fieldsText(fields draft.Fields) string {
	keys := make([]string, 0, len(fields))
	for key, value := range fields {
		if !value.Empty() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+": "+fields[key].Text())
	}
	return strings.Join(lines, "\n")
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Checks pings every backing service by name. A nil error means healthy.
func (s *Service) Checks(ctx context.Context) map[string]error {
	checks := map[string]error{
		"database": s.store.Ping(ctx),
		"redis":    s.history.Ping(ctx),
	}
	if s.blobs != nil {
		checks["evidence"] = s.blobs.Ping(ctx)
	}
	return checks
}

func validationDetails(err error) any {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

// sampleDraft is the seed used by Bootstrap.
type sampleDraft struct {
	Title             string
	TemplateVersionID string
	Pages             []layout.Page
	Fields            draft.Fields
	Schema            *draft.Schema
}

func sampleAgreement() sampleDraft {
	maxName := 120
	minFee := 0.0
	return sampleDraft{
		Title:             "Services Agreement",
		TemplateVersionID: "tpl-services-v1",
		Pages: layout.GroupBlocksByPage([]layout.Block{
			{Key: "title", Text: "SERVICES AGREEMENT", Type: layout.BlockHeading, PageNo: 1, Meta: layout.Meta{Align: "center", Bold: true}},
			{Key: "intro", Text: "This agreement is made between the parties named below.", Type: layout.BlockParagraph, PageNo: 1},
			{Key: "partyName", Text: "Client: ______________", Type: layout.BlockField, PageNo: 1, Editable: true},
			{Key: "effectiveDate", Text: "Effective date: __________", Type: layout.BlockField, PageNo: 1, Editable: true},
			{Key: "scope", Text: "Scope of services: ____________________", Type: layout.BlockField, PageNo: 1, Editable: true},
			{Key: "fee", Text: "Monthly fee (USD): ________", Type: layout.BlockField, PageNo: 2, Editable: true},
			{Key: "governingLaw", Text: "This agreement is governed by the laws of ______________.", Type: layout.BlockField, PageNo: 2, Editable: true},
			{Key: "signature", Text: "Signed: ____________________", Type: layout.BlockSignature, PageNo: 2},
		}),
		Fields: draft.Fields{
			"partyName":     draft.Null(),
			"effectiveDate": draft.Null(),
			"scope":         draft.Null(),
			"fee":           draft.Null(),
			"governingLaw":  draft.String("the State of New York"),
		},
		Schema: &draft.Schema{
			TemplateVersionID: "tpl-services-v1",
			Fields: []draft.SchemaField{
				{Key: "partyName", Label: "Client name", Type: draft.TypeString, Required: true, MaxLength: &maxName},
				{Key: "effectiveDate", Label: "Effective date", Type: draft.TypeDate, Required: true},
				{Key: "fee", Label: "Monthly fee", Type: draft.TypeNumber, Min: &minFee},
			},
		},
	}
}
