package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"draftline/internal/draft"
)

const suggestionFailedMessage = "Sorry, I couldn't generate a suggestion right now. Please try again."

// RequestSuggestion asks the backend for a proposed value for targetBlock.
// The user's turn is appended to the chat before the request goes out; the
// outcome (suggestion or apology) is appended when it returns.
func (c *Controller) RequestSuggestion(ctx context.Context, targetBlock, instruction string) (draft.Suggestion, error) {
	c.mu.Lock()
	draftID, gen, err := c.begin()
	if err != nil {
		c.mu.Unlock()
		return draft.Suggestion{}, err
	}
	prompt := instruction
	if prompt == "" {
		prompt = fmt.Sprintf("Suggest a value for %s", targetBlock)
	}
	c.appendChat(draft.RoleUser, prompt, nil)
	c.st.aiInFlight++
	c.st.AILoading = true
	req := draft.SuggestRequest{
		TargetBlock:  targetBlock,
		Instruction:  instruction,
		FileIDs:      append([]string(nil), c.st.SelectedEvidence...),
		StateAware:   true,
		ResponseSize: c.size,
	}
	c.mu.Unlock()

	suggestion, err := c.backend.Suggest(ctx, draftID, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live(draftID, gen) {
		return suggestion, err
	}
	c.st.aiInFlight--
	c.st.AILoading = c.st.aiInFlight > 0
	if err != nil {
		c.appendChat(draft.RoleAssistant, suggestionFailedMessage, nil)
		failure := apiFailure("suggest", err)
		c.st.Notice = failure
		return draft.Suggestion{}, failure
	}
	if suggestion.Status == "" {
		suggestion.Status = draft.SuggestionPending
	}
	if suggestion.TargetBlock == "" {
		suggestion.TargetBlock = targetBlock
	}
	c.st.PendingSuggestions = append(c.st.PendingSuggestions, suggestion)
	embedded := suggestion
	c.appendChat(draft.RoleAssistant, suggestion.Content, &embedded)
	return suggestion, nil
}

// InsertSuggestion applies a pending suggestion. The content is written to
// the field map immediately; the backend then commits it as a new version and
// the draft is reloaded. A backend answer of draft.ErrSuggestionProcessed
// means a duplicate insert already went through and is treated as success.
// On any other failure the suggestion stays pending and the optimistic value
// stays in place.
func (c *Controller) InsertSuggestion(ctx context.Context, suggestionID string) error {
	c.mu.Lock()
	draftID, gen, err := c.begin()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if _, done := c.st.processed[suggestionID]; done {
		c.mu.Unlock()
		return nil
	}
	if i := c.findSuggestion(suggestionID); i >= 0 {
		suggestion := c.st.PendingSuggestions[i]
		if c.st.Fields == nil {
			c.st.Fields = draft.Fields{}
		}
		c.st.Fields[suggestion.TargetBlock] = draft.String(suggestion.Content)
		// The insert is now the latest write to this key; an older staged
		// manual edit must not overwrite it on the next save.
		delete(c.st.PendingChanges, suggestion.TargetBlock)
		c.st.Dirty = true
	}
	c.mu.Unlock()

	c.versionMu.Lock()
	defer c.versionMu.Unlock()

	c.mu.Lock()
	if _, done := c.st.processed[suggestionID]; done && c.live(draftID, gen) {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	result, err := c.backend.InsertSuggestion(ctx, draftID, suggestionID)

	c.mu.Lock()
	if !c.live(draftID, gen) {
		c.mu.Unlock()
		return nil
	}
	switch {
	case errors.Is(err, draft.ErrSuggestionProcessed):
		c.settleSuggestion(suggestionID)
	case err != nil:
		failure := apiFailure("insert suggestion", err)
		c.st.Notice = failure
		// The optimistic value is kept but is not a staged change.
		c.st.Dirty = len(c.st.PendingChanges) > 0
		c.mu.Unlock()
		return failure
	default:
		now := c.now()
		c.pushUndo(VersionEntry{VersionID: result.VersionID, Kind: KindAIInsert, At: now})
		c.st.RedoStack = nil
		c.st.CurrentVersionID = result.VersionID
		c.settleSuggestion(suggestionID)
	}
	c.mu.Unlock()

	return c.reload(ctx, draftID, gen)
}

// RejectSuggestion discards a pending suggestion. It leaves the pending list
// right away and is not put back if the backend call fails.
func (c *Controller) RejectSuggestion(ctx context.Context, suggestionID string) error {
	c.mu.Lock()
	draftID, gen, err := c.begin()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if _, done := c.st.processed[suggestionID]; done {
		c.mu.Unlock()
		return nil
	}
	c.settleSuggestion(suggestionID)
	c.mu.Unlock()

	err = c.backend.RejectSuggestion(ctx, draftID, suggestionID)
	if err == nil || errors.Is(err, draft.ErrSuggestionProcessed) {
		return nil
	}
	c.log.Printf("WARNING: reject suggestion %s on draft %s failed: %v", suggestionID, draftID, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live(draftID, gen) {
		return nil
	}
	return apiFailure("reject suggestion", err)
}

// settleSuggestion removes a suggestion from the pending list and remembers
// it as terminal. Callers hold c.mu.
func (c *Controller) settleSuggestion(suggestionID string) {
	if i := c.findSuggestion(suggestionID); i >= 0 {
		pending := c.st.PendingSuggestions
		c.st.PendingSuggestions = append(append([]draft.Suggestion(nil), pending[:i]...), pending[i+1:]...)
	}
	c.st.processed[suggestionID] = struct{}{}
}

func (c *Controller) findSuggestion(suggestionID string) int {
	for i, suggestion := range c.st.PendingSuggestions {
		if suggestion.SuggestionID == suggestionID {
			return i
		}
	}
	return -1
}

func (c *Controller) appendChat(role draft.Role, content string, suggestion *draft.Suggestion) {
	c.st.Chat = append(c.st.Chat, draft.ChatMessage{
		ID:         ulid.Make().String(),
		Role:       role,
		Content:    content,
		Suggestion: suggestion,
		CreatedAt:  c.now(),
	})
}
