package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"draftline/internal/draft"
	"draftline/internal/layout"
)

var errBackendDown = errors.New("backend down")

// fakeBackend keeps a tiny version history with the same pointer semantics as
// the real server: undo and redo move between existing version ids.
type fakeBackend struct {
	mu sync.Mutex

	status   draft.Status
	versions map[string]draft.Fields
	head     string
	undo     []string
	redo     []string
	seq      int

	suggestions map[string]*draft.Suggestion
	evidence    []draft.EvidenceFile

	calls   map[string]int
	updates []draft.Fields
	lastReq draft.SuggestRequest

	getErr     error
	updateErr  error
	undoErr    error
	suggestErr error
	insertErr  error
	rejectErr  error

	// Hooks run before the call touches state; tests use them to block.
	onGet     func()
	onUpdate  func()
	onSuggest func()
	onInsert  func()
}

func newFakeBackend(initial draft.Fields) *fakeBackend {
	return &fakeBackend{
		status:      draft.StatusDraft,
		versions:    map[string]draft.Fields{"v1": initial},
		head:        "v1",
		seq:         1,
		suggestions: map[string]*draft.Suggestion{},
		calls:       map[string]int{},
	}
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) mutatingCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, name := range []string{"UpdateFields", "Undo", "Redo", "Suggest", "InsertSuggestion", "RejectSuggestion", "UploadEvidence"} {
		total += f.calls[name]
	}
	return total
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeBackend) commit(changes draft.Fields) string {
	next := f.versions[f.head].Clone()
	if next == nil {
		next = draft.Fields{}
	}
	for key, value := range changes {
		next[key] = value
	}
	f.seq++
	id := fmt.Sprintf("v%d", f.seq)
	f.versions[id] = next
	f.undo = append(f.undo, f.head)
	f.redo = nil
	f.head = id
	return id
}

func testPages() []layout.Page {
	return []layout.Page{{
		PageNo: 1,
		Blocks: []layout.Block{
			{Key: "title", Text: "SERVICES AGREEMENT", Type: layout.BlockHeading},
			{Key: "partyName", Text: "This agreement is made with ____.", Type: layout.BlockField, Editable: true},
			{Key: "fee", Text: "Fee: ____", Type: layout.BlockField, Editable: true},
		},
	}}
}

func (f *fakeBackend) GetDraft(_ context.Context, draftID string) (draft.Payload, error) {
	f.mu.Lock()
	hook := f.onGet
	f.calls["GetDraft"]++
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return draft.Payload{}, f.getErr
	}
	return draft.Payload{
		ID:               draftID,
		Title:            "Services Agreement",
		Status:           f.status,
		CurrentVersionID: f.head,
		Layout:           draft.Layout{Pages: testPages()},
		Fields:           f.versions[f.head].Clone(),
	}, nil
}

func (f *fakeBackend) UpdateFields(_ context.Context, _ string, fields draft.Fields) (draft.SaveResult, error) {
	f.mu.Lock()
	hook := f.onUpdate
	f.calls["UpdateFields"]++
	f.updates = append(f.updates, fields.Clone())
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return draft.SaveResult{}, f.updateErr
	}
	id := f.commit(fields)
	return draft.SaveResult{VersionID: id, VersionNo: len(f.undo) + 1}, nil
}

func (f *fakeBackend) Undo(_ context.Context, _ string) (draft.VersionShift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Undo"]++
	if f.undoErr != nil {
		return draft.VersionShift{}, f.undoErr
	}
	if len(f.undo) == 0 {
		return draft.VersionShift{}, errors.New("nothing to undo")
	}
	prev := f.head
	f.head = f.undo[len(f.undo)-1]
	f.undo = f.undo[:len(f.undo)-1]
	f.redo = append(f.redo, prev)
	return draft.VersionShift{PreviousVersionID: prev, CurrentVersionID: f.head}, nil
}

func (f *fakeBackend) Redo(_ context.Context, _ string) (draft.VersionShift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Redo"]++
	if len(f.redo) == 0 {
		return draft.VersionShift{}, errors.New("nothing to redo")
	}
	prev := f.head
	f.head = f.redo[len(f.redo)-1]
	f.redo = f.redo[:len(f.redo)-1]
	f.undo = append(f.undo, prev)
	return draft.VersionShift{PreviousVersionID: prev, CurrentVersionID: f.head}, nil
}

func (f *fakeBackend) Suggest(_ context.Context, _ string, req draft.SuggestRequest) (draft.Suggestion, error) {
	f.mu.Lock()
	hook := f.onSuggest
	f.calls["Suggest"]++
	f.lastReq = req
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.suggestErr != nil {
		return draft.Suggestion{}, f.suggestErr
	}
	id := fmt.Sprintf("s%d", len(f.suggestions)+1)
	s := &draft.Suggestion{SuggestionID: id, TargetBlock: req.TargetBlock, Content: "Acme Corp", Status: draft.SuggestionPending}
	f.suggestions[id] = s
	return *s, nil
}

func (f *fakeBackend) InsertSuggestion(_ context.Context, _ string, suggestionID string) (draft.InsertResult, error) {
	f.mu.Lock()
	hook := f.onInsert
	f.calls["InsertSuggestion"]++
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return draft.InsertResult{}, f.insertErr
	}
	s, ok := f.suggestions[suggestionID]
	if !ok {
		return draft.InsertResult{}, errors.New("unknown suggestion")
	}
	if s.Status.Terminal() {
		return draft.InsertResult{}, draft.ErrSuggestionProcessed
	}
	s.Status = draft.SuggestionInserted
	id := f.commit(draft.Fields{s.TargetBlock: draft.String(s.Content)})
	return draft.InsertResult{VersionID: id, TargetBlock: s.TargetBlock}, nil
}

func (f *fakeBackend) RejectSuggestion(_ context.Context, _ string, suggestionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["RejectSuggestion"]++
	if f.rejectErr != nil {
		return f.rejectErr
	}
	if s, ok := f.suggestions[suggestionID]; ok {
		if s.Status.Terminal() {
			return draft.ErrSuggestionProcessed
		}
		s.Status = draft.SuggestionRejected
	}
	return nil
}

func (f *fakeBackend) ListEvidence(_ context.Context, _ string) ([]draft.EvidenceFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListEvidence"]++
	return append([]draft.EvidenceFile(nil), f.evidence...), nil
}

func (f *fakeBackend) UploadEvidence(_ context.Context, _ string, name string, r io.Reader, _ int64) (draft.EvidenceFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return draft.EvidenceFile{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UploadEvidence"]++
	file := draft.EvidenceFile{ID: fmt.Sprintf("f%d", len(f.evidence)+1), Name: name, Size: int64(len(data))}
	f.evidence = append(f.evidence, file)
	return file, nil
}
