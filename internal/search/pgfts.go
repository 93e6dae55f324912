package search

import (
	"context"
	"database/sql"
	"fmt"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over post titles and content, ranked with
// ts_rank and snippeted with ts_headline.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if q.Text == "" {
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

	const tsQuery = "plainto_tsquery('english', $1)"
	where := "to_tsvector('english', coalesce(p.title, '') || ' ' || p.content) @@ " + tsQuery
	args := []any{q.Text}
	argN := 2

	if q.DiscussionID != "" {
		where += fmt.Sprintf(" AND p.discussion_id = $%d", argN)
		args = append(args, q.DiscussionID)
		argN++
	}
	if q.PostType != "" {
		where += fmt.Sprintf(" AND p.post_type = $%d", argN)
		args = append(args, q.PostType)
		argN++
	}
	if !q.IncludeArchived {
		where += " AND p.is_archived = FALSE"
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.discussion_id, p.title,
			ts_headline('english', p.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			p.post_type, p.is_archived,
			COUNT(*) OVER () AS total
		FROM posts p
		WHERE %s
		ORDER BY ts_rank(to_tsvector('english', coalesce(p.title, '') || ' ' || p.content), %s) DESC
		LIMIT %d OFFSET %d`, tsQuery, where, tsQuery, limit, offset)

	rows, err := p.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.DiscussionID, &r.Title, &r.Snippet, &r.PostType, &r.IsArchived, &total); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgfts iterate: %w", err)
	}
	return results, total, nil
}

// LoadAllRecords reads every post for reindexing into Meilisearch.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PostRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, discussion_id, coalesce(title, ''), content, post_type, is_archived
		FROM posts
	`)
	if err != nil {
		return nil, fmt.Errorf("load posts for reindex: %w", err)
	}
	defer rows.Close()

	var records []PostRecord
	for rows.Next() {
		var r PostRecord
		if err := rows.Scan(&r.ID, &r.DiscussionID, &r.Title, &r.Content, &r.PostType, &r.IsArchived); err != nil {
			return nil, fmt.Errorf("scan post for reindex: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts for reindex: %w", err)
	}
	return records, nil
}
