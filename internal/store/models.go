package store

import (
	"encoding/json"
	"time"
)

type Draft struct {
	ID                string
	Title             string
	Status            string
	TemplateVersionID string
	CurrentVersionID  string
	// Layout and Schema are stored as the JSON the client receives.
	Layout       json.RawMessage
	Schema       json.RawMessage
	FallbackHTML string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Suggestion struct {
	ID          string
	DraftID     string
	TargetBlock string
	Instruction string
	Content     string
	Status      string
	VersionID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type EvidenceFile struct {
	ID          string
	DraftID     string
	Name        string
	ObjectKey   string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
