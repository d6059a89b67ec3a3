package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const knowledgeColumns = `id, title, category, content, tags, created_at, updated_at`

type knowledgeScan struct {
	k                          KnowledgeDoc
	tags, createdAt, updatedAt string
}

func (r *knowledgeScan) dest() []any {
	return []any{&r.k.ID, &r.k.Title, &r.k.Category, &r.k.Content, &r.tags, &r.createdAt, &r.updatedAt}
}

func (r *knowledgeScan) build() (KnowledgeDoc, error) {
	k := r.k
	var err error
	if k.Tags, err = decodeTags(r.tags); err != nil {
		return KnowledgeDoc{}, err
	}
	if k.CreatedAt, err = parseTime(r.createdAt); err != nil {
		return KnowledgeDoc{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if k.UpdatedAt, err = parseTime(r.updatedAt); err != nil {
		return KnowledgeDoc{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return k, nil
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListKnowledgeDocs returns knowledge docs most recently updated first.
// Search is a case-insensitive substring match on title or content; Tag
// requires the tag to be present in the doc's tag set.
func (s *Store) ListKnowledgeDocs(ctx context.Context, f KnowledgeFilter) ([]KnowledgeDoc, error) {
	var where []string
	var args []any
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		where = append(where, `(unicode_lower(title) LIKE ? ESCAPE '\' OR unicode_lower(content) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if f.Category != "" && f.Category != "all" {
		where = append(where, `category = ?`)
		args = append(args, f.Category)
	}
	if f.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(knowledge_docs.tags) WHERE json_each.value = ?)`)
		args = append(args, f.Tag)
	}

	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_docs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY updated_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []KnowledgeDoc{}
	for rows.Next() {
		var r knowledgeScan
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		k, err := r.build()
		if err != nil {
			return nil, err
		}
		results = append(results, k)
	}
	return results, rows.Err()
}

func (s *Store) GetKnowledgeDoc(ctx context.Context, id string) (KnowledgeDoc, error) {
	var r knowledgeScan
	err := s.db.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_docs WHERE id = ?`, id).Scan(r.dest()...)
	if err == sql.ErrNoRows {
		return KnowledgeDoc{}, ErrNotFound
	}
	if err != nil {
		return KnowledgeDoc{}, err
	}
	return r.build()
}

func (s *Store) CreateKnowledgeDoc(ctx context.Context, in KnowledgeDocInput) (KnowledgeDoc, error) {
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return KnowledgeDoc{}, err
	}
	id := uuid.New().String()
	now := formatTime(nowFunc())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_docs (id, title, category, content, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.Title, in.Category, in.Content, tags, now, now,
	)
	if err != nil {
		return KnowledgeDoc{}, err
	}
	return s.GetKnowledgeDoc(ctx, id)
}

// UpdateKnowledgeDoc changes only title, category, content and tags.
func (s *Store) UpdateKnowledgeDoc(ctx context.Context, id string, patch KnowledgeDocPatch) (KnowledgeDoc, error) {
	var u updateBuilder
	u.setString("title", patch.Title)
	u.setString("category", patch.Category)
	u.setString("content", patch.Content)
	if patch.Tags != nil {
		tags, err := encodeTags(*patch.Tags)
		if err != nil {
			return KnowledgeDoc{}, err
		}
		u.set("tags", tags)
	}
	if err := u.exec(ctx, s.db, "knowledge_docs", id); err != nil {
		return KnowledgeDoc{}, err
	}
	return s.GetKnowledgeDoc(ctx, id)
}

func (s *Store) DeleteKnowledgeDoc(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "knowledge_docs", id)
}
