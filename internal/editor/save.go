package editor

import (
	"context"
	"fmt"

	"draftline/internal/draft"
)

// SetField writes a value into the local field map, marks the draft dirty and
// queues the key for the next save. Keys outside the known block/schema set
// are accepted with a warning.
func (c *Controller) SetField(key string, value draft.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setFieldLocked(key, value)
}

func (c *Controller) setFieldLocked(key string, value draft.Value) error {
	if _, _, err := c.begin(); err != nil {
		return err
	}
	if !value.Finite() {
		return fmt.Errorf("field %q: %w", key, draft.ErrNotFinite)
	}
	if _, ok := draft.KnownKeys(c.st.Pages, c.st.Schema)[key]; !ok {
		c.log.Printf("WARNING: field %q is not defined by the layout or schema of draft %s", key, c.st.DraftID)
	}
	if c.st.Fields == nil {
		c.st.Fields = draft.Fields{}
	}
	if c.st.PendingChanges == nil {
		c.st.PendingChanges = draft.Fields{}
	}
	c.st.Fields[key] = value
	c.st.PendingChanges[key] = value
	c.st.Dirty = true
	return nil
}

// UpdateField stages an edit and restarts the save debounce. It never does
// network I/O itself.
func (c *Controller) UpdateField(key string, value draft.Value) error {
	if err := c.SetField(key, value); err != nil {
		return err
	}
	c.saver.Trigger()
	return nil
}

// Flush runs a pending debounced save right away.
func (c *Controller) Flush() bool {
	return c.saver.Flush()
}

func (c *Controller) debouncedSave() {
	if _, err := c.SaveFields(context.Background()); err != nil {
		c.log.Printf("WARNING: debounced save failed: %v", err)
	}
}

// SaveFields sends the staged changes as one request. It returns false
// without side effects when there is no draft, nothing is pending, or a save
// is already in flight. On failure the staged changes stay in place so the
// next save still carries them.
func (c *Controller) SaveFields(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.st.DraftID == "" || c.st.Loading || c.st.LoadErr != nil {
		c.mu.Unlock()
		return false, nil
	}
	draftID, gen, err := c.begin()
	if err != nil {
		c.mu.Unlock()
		return false, err
	}
	if len(c.st.PendingChanges) == 0 || c.st.Saving {
		c.mu.Unlock()
		return false, nil
	}
	c.st.Saving = true
	batch := c.st.PendingChanges.Clone()
	c.mu.Unlock()

	c.versionMu.Lock()
	defer c.versionMu.Unlock()

	result, err := c.backend.UpdateFields(ctx, draftID, batch)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.saveDone.Broadcast()
	if !c.live(draftID, gen) {
		return false, nil
	}
	c.st.Saving = false
	if err != nil {
		failure := apiFailure("save", err)
		c.st.Notice = failure
		return false, failure
	}

	// Keys edited again while the request was in flight keep their newer
	// value queued.
	for key, sent := range batch {
		if current, ok := c.st.PendingChanges[key]; ok && current.Equal(sent) {
			delete(c.st.PendingChanges, key)
		}
	}
	now := c.now()
	c.st.Dirty = len(c.st.PendingChanges) > 0
	c.st.CurrentVersionID = result.VersionID
	c.st.LastSavedAt = now
	c.pushUndo(VersionEntry{VersionID: result.VersionID, Kind: KindFormUpdate, At: now})
	c.st.RedoStack = nil
	if c.st.Dirty {
		c.saver.Trigger()
	}
	return true, nil
}

// pushUndo appends an entry and drops the oldest beyond MaxUndoEntries.
// Callers hold c.mu.
func (c *Controller) pushUndo(entry VersionEntry) {
	c.st.UndoStack = append(c.st.UndoStack, entry)
	if overflow := len(c.st.UndoStack) - MaxUndoEntries; overflow > 0 {
		c.st.UndoStack = append([]VersionEntry(nil), c.st.UndoStack[overflow:]...)
	}
}

// drainSaves cancels the debounce, waits out a save already in flight and
// keeps saving until nothing is staged. It stops on the first failure or
// when the draft is replaced.
func (c *Controller) drainSaves(ctx context.Context) error {
	c.saver.Cancel()
	c.mu.Lock()
	gen := c.gen
	for {
		if c.gen != gen || c.st.DraftID == "" || c.st.Loading || c.st.LoadErr != nil {
			c.mu.Unlock()
			return nil
		}
		if c.st.Saving {
			c.saveDone.Wait()
			continue
		}
		if len(c.st.PendingChanges) == 0 {
			c.mu.Unlock()
			c.saver.Cancel()
			return nil
		}
		c.mu.Unlock()
		if _, err := c.SaveFields(ctx); err != nil {
			c.saver.Cancel()
			return err
		}
		c.mu.Lock()
	}
}
