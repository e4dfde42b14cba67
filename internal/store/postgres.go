package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const draftColumns = `id, title, status, template_version_id, current_version_id, layout, schema, fallback_html, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (Draft, error) {
	var item Draft
	var layout, schema []byte
	if err := row.Scan(&item.ID, &item.Title, &item.Status, &item.TemplateVersionID, &item.CurrentVersionID,
		&layout, &schema, &item.FallbackHTML, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Draft{}, err
	}
	item.Layout = layout
	item.Schema = schema
	return item, nil
}

func (s *PostgresStore) ListDrafts(ctx context.Context) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+draftColumns+` FROM drafts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	items := make([]Draft, 0)
	for rows.Next() {
		item, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}
	return items, nil
}

// GetDraft returns sql.ErrNoRows unwrapped when the draft does not exist.
func (s *PostgresStore) GetDraft(ctx context.Context, draftID string) (Draft, error) {
	return scanDraft(s.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id=$1`, draftID))
}

func (s *PostgresStore) InsertDraft(ctx context.Context, item Draft) error {
	var schema any
	if len(item.Schema) > 0 {
		schema = []byte(item.Schema)
	}
	status := item.Status
	if status == "" {
		status = "draft"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (id, title, status, template_version_id, current_version_id, layout, schema, fallback_html)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Title, status, item.TemplateVersionID, item.CurrentVersionID, []byte(item.Layout), schema, item.FallbackHTML)
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) DraftCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drafts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count drafts: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpdateDraftVersion(ctx context.Context, draftID, versionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE drafts SET current_version_id=$2, updated_at=NOW() WHERE id=$1
	`, draftID, versionID)
	if err != nil {
		return fmt.Errorf("update draft version: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDraftStatus(ctx context.Context, draftID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE drafts SET status=$2, updated_at=NOW() WHERE id=$1
	`, draftID, status)
	if err != nil {
		return fmt.Errorf("update draft status: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertSuggestion(ctx context.Context, item Suggestion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suggestions (id, draft_id, target_block, instruction, content, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.DraftID, item.TargetBlock, item.Instruction, item.Content, item.Status)
	if err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSuggestion(ctx context.Context, draftID, suggestionID string) (Suggestion, error) {
	var item Suggestion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, draft_id, target_block, instruction, content, status, version_id, created_at, updated_at
		FROM suggestions
		WHERE id=$1 AND draft_id=$2
	`, suggestionID, draftID).Scan(&item.ID, &item.DraftID, &item.TargetBlock, &item.Instruction, &item.Content,
		&item.Status, &item.VersionID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Suggestion{}, err
	}
	return item, nil
}

// SettleSuggestion moves a pending suggestion to status. It reports false
// when the suggestion was no longer pending.
func (s *PostgresStore) SettleSuggestion(ctx context.Context, suggestionID, status, versionID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE suggestions
		SET status=$2, version_id=$3, updated_at=NOW()
		WHERE id=$1 AND status='pending'
	`, suggestionID, status, versionID)
	if err != nil {
		return false, fmt.Errorf("settle suggestion: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("settle suggestion rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertEvidence(ctx context.Context, item EvidenceFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence_files (id, draft_id, name, object_key, size, content_type)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.DraftID, item.Name, item.ObjectKey, item.Size, item.ContentType)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEvidence(ctx context.Context, draftID string) ([]EvidenceFile, error) {
	return s.queryEvidence(ctx, `
		SELECT id, draft_id, name, object_key, size, content_type, created_at
		FROM evidence_files
		WHERE draft_id=$1
		ORDER BY created_at ASC
	`, draftID)
}

// GetEvidence returns the files of draftID among ids. Unknown ids are skipped.
func (s *PostgresStore) GetEvidence(ctx context.Context, draftID string, ids []string) ([]EvidenceFile, error) {
	if len(ids) == 0 {
		return []EvidenceFile{}, nil
	}
	return s.queryEvidence(ctx, `
		SELECT id, draft_id, name, object_key, size, content_type, created_at
		FROM evidence_files
		WHERE draft_id=$1 AND id = ANY($2)
		ORDER BY created_at ASC
	`, draftID, ids)
}

func (s *PostgresStore) queryEvidence(ctx context.Context, query string, args ...any) ([]EvidenceFile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	items := make([]EvidenceFile, 0)
	for rows.Next() {
		var item EvidenceFile
		if err := rows.Scan(&item.ID, &item.DraftID, &item.Name, &item.ObjectKey, &item.Size, &item.ContentType, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
