package editor

import (
	"context"

	"draftline/internal/draft"
)

// Undo asks the server to roll back one version, moves the top undo entry to
// the redo stack, adopts the server's version id and reloads the draft. It is
// a no-op when there is nothing to undo. Edits still waiting on the debounce
// are saved first so they are what gets undone.
//
// A failed call leaves both stacks untouched. When the undo succeeds but the
// reconciliation reload fails, Undo reports true together with the reload
// error.
func (c *Controller) Undo(ctx context.Context) (bool, error) {
	return c.shift(ctx, "undo")
}

// Redo is the mirror of Undo.
func (c *Controller) Redo(ctx context.Context) (bool, error) {
	return c.shift(ctx, "redo")
}

func (c *Controller) shift(ctx context.Context, op string) (bool, error) {
	c.saver.Flush()

	c.mu.Lock()
	draftID, gen, err := c.begin()
	if err != nil {
		c.mu.Unlock()
		return false, err
	}
	if !c.canShift(op) {
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()

	c.versionMu.Lock()
	defer c.versionMu.Unlock()

	// The stacks may have moved while this call waited its turn.
	c.mu.Lock()
	if !c.live(draftID, gen) || !c.canShift(op) {
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()

	var result draft.VersionShift
	if op == "undo" {
		result, err = c.backend.Undo(ctx, draftID)
	} else {
		result, err = c.backend.Redo(ctx, draftID)
	}

	c.mu.Lock()
	if !c.live(draftID, gen) {
		c.mu.Unlock()
		return false, nil
	}
	if err != nil {
		failure := apiFailure(op, err)
		c.st.Notice = failure
		c.mu.Unlock()
		return false, failure
	}
	if op == "undo" {
		entry := c.st.UndoStack[len(c.st.UndoStack)-1]
		c.st.UndoStack = c.st.UndoStack[:len(c.st.UndoStack)-1]
		c.st.RedoStack = append(c.st.RedoStack, entry)
	} else {
		entry := c.st.RedoStack[len(c.st.RedoStack)-1]
		c.st.RedoStack = c.st.RedoStack[:len(c.st.RedoStack)-1]
		entry.VersionID = result.CurrentVersionID
		c.pushUndo(entry)
	}
	c.st.CurrentVersionID = result.CurrentVersionID
	c.mu.Unlock()

	if err := c.reload(ctx, draftID, gen); err != nil {
		return true, err
	}
	return true, nil
}

// canShift is called with c.mu held.
func (c *Controller) canShift(op string) bool {
	if op == "undo" {
		return c.st.CanUndo()
	}
	return c.st.CanRedo()
}
