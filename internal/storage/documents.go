package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const documentColumns = `id, prospect_id, title, description, filename, file_path, content_type, file_size,
	text_status, created_at, updated_at`

type documentScan struct {
	d                    Document
	description          sql.NullString
	createdAt, updatedAt string
}

func (r *documentScan) dest() []any {
	return []any{
		&r.d.ID, &r.d.ProspectID, &r.d.Title, &r.description, &r.d.Filename, &r.d.FilePath,
		&r.d.ContentType, &r.d.FileSize, &r.d.TextStatus, &r.createdAt, &r.updatedAt,
	}
}

func (r *documentScan) build() (Document, error) {
	d := r.d
	d.Description = stringPtr(r.description)
	var err error
	if d.CreatedAt, err = parseTime(r.createdAt); err != nil {
		return Document{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTime(r.updatedAt); err != nil {
		return Document{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return d, nil
}

func (s *Store) ListDocuments(ctx context.Context, f ChildFilter) ([]Document, error) {
	embed := f.ProspectID == ""
	query := `SELECT ` + prefixed("d", documentColumns)
	if embed {
		query += `, ` + prefixed("p", prospectColumns) + ` FROM documents d JOIN prospects p ON p.id = d.prospect_id`
	} else {
		query += ` FROM documents d WHERE d.prospect_id = ?`
	}
	query += ` ORDER BY d.created_at DESC, d.rowid DESC`

	var args []any
	if !embed {
		args = append(args, f.ProspectID)
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Document{}
	for rows.Next() {
		var r documentScan
		var pr prospectScan
		dest := r.dest()
		if embed {
			dest = append(dest, pr.dest()...)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		d, err := r.build()
		if err != nil {
			return nil, err
		}
		if embed {
			p, err := pr.build()
			if err != nil {
				return nil, err
			}
			d.Prospect = &p
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// GetDocument returns one document with its owning prospect embedded.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	var r documentScan
	var pr prospectScan
	err := s.db.QueryRowContext(ctx,
		`SELECT `+prefixed("d", documentColumns)+`, `+prefixed("p", prospectColumns)+`
		FROM documents d JOIN prospects p ON p.id = d.prospect_id WHERE d.id = ?`, id,
	).Scan(append(r.dest(), pr.dest()...)...)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	d, err := r.build()
	if err != nil {
		return Document{}, err
	}
	p, err := pr.build()
	if err != nil {
		return Document{}, err
	}
	d.Prospect = &p
	return d, nil
}

func (s *Store) getDocumentRow(ctx context.Context, id string) (Document, error) {
	var r documentScan
	err := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id).Scan(r.dest()...)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return r.build()
}

// CreateDocument records metadata for an uploaded file. ID and timestamps
// are assigned here; an empty TextStatus defaults to "none".
func (s *Store) CreateDocument(ctx context.Context, d Document) (Document, error) {
	id := uuid.New().String()
	now := formatTime(nowFunc())
	status := d.TextStatus
	if status == "" {
		status = TextStatusNone
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, prospect_id, title, description, filename, file_path, content_type, file_size,
			text_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, d.ProspectID, d.Title, nullString(d.Description), d.Filename, d.FilePath, d.ContentType, d.FileSize,
		status, now, now,
	)
	if err != nil {
		return Document{}, err
	}
	return s.getDocumentRow(ctx, id)
}

// UpdateDocument changes only the title and description.
func (s *Store) UpdateDocument(ctx context.Context, id string, patch DocumentPatch) (Document, error) {
	var u updateBuilder
	u.setString("title", patch.Title)
	u.setString("description", patch.Description)
	if err := u.exec(ctx, s.db, "documents", id); err != nil {
		return Document{}, err
	}
	return s.getDocumentRow(ctx, id)
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "documents", id)
}

// SetDocumentText records the outcome of text extraction.
func (s *Store) SetDocumentText(ctx context.Context, id, status, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET text_status = ?, text_content = ?, updated_at = ? WHERE id = ?`,
		status, text, formatTime(nowFunc()), id,
	)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// GetDocumentText returns the extraction status and extracted text.
func (s *Store) GetDocumentText(ctx context.Context, id string) (status, text string, err error) {
	var content sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT text_status, text_content FROM documents WHERE id = ?`, id,
	).Scan(&status, &content)
	if err == sql.ErrNoRows {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return status, content.String, nil
}
