package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// Draft field values live in the version repositories, so only titles are
// searchable here.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; the API does not run without Postgres.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across drafts and suggestions using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultDraft {
		draftWhere := "d.fts @@ " + tsQuery
		if q.FilterDraftID != "" {
			draftWhere += fmt.Sprintf(" AND d.id = $%d", argN)
			args = append(args, q.FilterDraftID)
			argN++
		}
		if q.FilterStatus != "" {
			draftWhere += fmt.Sprintf(" AND d.status = $%d", argN)
			args = append(args, q.FilterStatus)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'draft'::text AS type, d.id, d.id AS draft_id, d.title,
				ts_headline('english', d.title, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				d.status,
				ts_rank(d.fts, %s) AS rank
			FROM drafts d
			WHERE %s`, tsQuery, tsQuery, draftWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultSuggestion {
		sugWhere := "s.fts @@ " + tsQuery
		if q.FilterDraftID != "" {
			sugWhere += fmt.Sprintf(" AND s.draft_id = $%d", argN)
			args = append(args, q.FilterDraftID)
			argN++
		}
		if q.FilterStatus != "" {
			sugWhere += fmt.Sprintf(" AND s.status = $%d", argN)
			args = append(args, q.FilterStatus)
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'suggestion'::text AS type, s.id, s.draft_id, s.target_block AS title,
				ts_headline('english', s.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				s.status,
				ts_rank(s.fts, %s) AS rank
			FROM suggestions s
			WHERE %s`, tsQuery, tsQuery, sugWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, draft_id, title, snippet, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.DraftID, &r.Title, &r.Snippet, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadSuggestions returns every suggestion for full reindexing.
func (p *PgFTS) LoadSuggestions(ctx context.Context) ([]SuggestionRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, draft_id, target_block, instruction, content, status
		FROM suggestions
	`)
	if err != nil {
		return nil, fmt.Errorf("load suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := make([]SuggestionRecord, 0)
	for rows.Next() {
		var s SuggestionRecord
		if err := rows.Scan(&s.ID, &s.DraftID, &s.TargetBlock, &s.Instruction, &s.Content, &s.Status); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return suggestions, nil
}
