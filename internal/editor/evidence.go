package editor

import (
	"context"
	"io"

	"draftline/internal/draft"
)

// loadEvidence runs in the background after Load. Failures are logged only.
func (c *Controller) loadEvidence(ctx context.Context, draftID string, gen uint64) {
	files, err := c.backend.ListEvidence(ctx, draftID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live(draftID, gen) {
		return
	}
	if err != nil {
		c.log.Printf("WARNING: load evidence for draft %s: %v", draftID, err)
		return
	}
	c.st.Evidence = files
}

// ToggleEvidence flips whether a file is sent as context with suggestion
// requests and reports the new selection state.
func (c *Controller) ToggleEvidence(fileID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, id := range c.st.SelectedEvidence {
		if id == fileID {
			c.st.SelectedEvidence = append(append([]string(nil), c.st.SelectedEvidence[:i]...), c.st.SelectedEvidence[i+1:]...)
			return false
		}
	}
	c.st.SelectedEvidence = append(c.st.SelectedEvidence, fileID)
	return true
}

func (c *Controller) SelectedEvidence() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.st.SelectedEvidence...)
}

// UploadEvidence stores a file through the backend and selects it.
func (c *Controller) UploadEvidence(ctx context.Context, name string, r io.Reader, size int64) (draft.EvidenceFile, error) {
	c.mu.Lock()
	draftID, gen, err := c.begin()
	c.mu.Unlock()
	if err != nil {
		return draft.EvidenceFile{}, err
	}

	file, err := c.backend.UploadEvidence(ctx, draftID, name, r, size)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live(draftID, gen) {
		return file, err
	}
	if err != nil {
		failure := apiFailure("upload evidence", err)
		c.st.Notice = failure
		return draft.EvidenceFile{}, failure
	}
	c.st.Evidence = append(c.st.Evidence, file)
	c.st.SelectedEvidence = append(c.st.SelectedEvidence, file.ID)
	return file, nil
}
