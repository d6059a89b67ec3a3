package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const noteColumns = `id, prospect_id, content, type, is_pinned, created_at, updated_at`

type noteScan struct {
	n                    Note
	createdAt, updatedAt string
}

func (r *noteScan) dest() []any {
	return []any{&r.n.ID, &r.n.ProspectID, &r.n.Content, &r.n.Type, &r.n.IsPinned, &r.createdAt, &r.updatedAt}
}

func (r *noteScan) build() (Note, error) {
	n := r.n
	var err error
	if n.CreatedAt, err = parseTime(r.createdAt); err != nil {
		return Note{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if n.UpdatedAt, err = parseTime(r.updatedAt); err != nil {
		return Note{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return n, nil
}

// NoteFilter scopes ListNotes. PinnedFirst orders pinned notes ahead of the
// rest; otherwise notes are strictly newest first.
type NoteFilter struct {
	ChildFilter
	PinnedFirst bool
}

func (s *Store) ListNotes(ctx context.Context, f NoteFilter) ([]Note, error) {
	embed := f.ProspectID == ""
	query := `SELECT ` + prefixed("n", noteColumns)
	if embed {
		query += `, ` + prefixed("p", prospectColumns) + ` FROM notes n JOIN prospects p ON p.id = n.prospect_id`
	} else {
		query += ` FROM notes n WHERE n.prospect_id = ?`
	}
	query += ` ORDER BY `
	if f.PinnedFirst {
		query += `n.is_pinned DESC, `
	}
	query += `n.created_at DESC, n.rowid DESC`

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

	results := []Note{}
	for rows.Next() {
		var r noteScan
		var pr prospectScan
		dest := r.dest()
		if embed {
			dest = append(dest, pr.dest()...)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		n, err := r.build()
		if err != nil {
			return nil, err
		}
		if embed {
			p, err := pr.build()
			if err != nil {
				return nil, err
			}
			n.Prospect = &p
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

// GetNote returns one note with its owning prospect embedded.
func (s *Store) GetNote(ctx context.Context, id string) (Note, error) {
	var r noteScan
	var pr prospectScan
	err := s.db.QueryRowContext(ctx,
		`SELECT `+prefixed("n", noteColumns)+`, `+prefixed("p", prospectColumns)+`
		FROM notes n JOIN prospects p ON p.id = n.prospect_id WHERE n.id = ?`, id,
	).Scan(append(r.dest(), pr.dest()...)...)
	if err == sql.ErrNoRows {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}
	n, err := r.build()
	if err != nil {
		return Note{}, err
	}
	p, err := pr.build()
	if err != nil {
		return Note{}, err
	}
	n.Prospect = &p
	return n, nil
}

func (s *Store) getNoteRow(ctx context.Context, id string) (Note, error) {
	var r noteScan
	err := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id).Scan(r.dest()...)
	if err == sql.ErrNoRows {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, err
	}
	return r.build()
}

func (s *Store) CreateNote(ctx context.Context, in NoteInput) (Note, error) {
	typ := in.Type
	if typ == "" {
		typ = "general"
	}
	id := uuid.New().String()
	now := formatTime(nowFunc())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, prospect_id, content, type, is_pinned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.ProspectID, in.Content, typ, in.IsPinned, now, now,
	)
	if err != nil {
		return Note{}, err
	}
	return s.getNoteRow(ctx, id)
}

func (s *Store) UpdateNote(ctx context.Context, id string, patch NotePatch) (Note, error) {
	var u updateBuilder
	u.setString("prospect_id", patch.ProspectID)
	u.setString("content", patch.Content)
	u.setString("type", patch.Type)
	if patch.IsPinned != nil {
		u.set("is_pinned", *patch.IsPinned)
	}
	if err := u.exec(ctx, s.db, "notes", id); err != nil {
		return Note{}, err
	}
	return s.getNoteRow(ctx, id)
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "notes", id)
}
