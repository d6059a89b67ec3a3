package storage

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *Store) GetProfile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, role, created_at FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Email, &p.Name, &p.Role, &createdAt)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Profile{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return p, nil
}

// UpsertProfile creates the profile or refreshes its email, name and role.
// An empty role defaults to COMMERCIAL.
func (s *Store) UpsertProfile(ctx context.Context, p Profile) error {
	role := p.Role
	if role == "" {
		role = RoleCommercial
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, name, role, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name, role = excluded.role`,
		p.ID, p.Email, p.Name, role, formatTime(nowFunc()),
	)
	return err
}
