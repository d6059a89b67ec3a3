package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const prospectColumns = `id, company_name, contact_name, email, phone, website, status, priority,
	potential_need, confirmed_need, source, tags, last_exchange, created_at, updated_at`

// prefixed returns cols with every column qualified by alias.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// prospectScan holds the raw column values of one prospect row.
type prospectScan struct {
	p                                                          Prospect
	email, phone, website, potential, confirmed, source, lastEx sql.NullString
	tags, createdAt, updatedAt                                 string
}

func (r *prospectScan) dest() []any {
	return []any{
		&r.p.ID, &r.p.CompanyName, &r.p.ContactName, &r.email, &r.phone, &r.website,
		&r.p.Status, &r.p.Priority, &r.potential, &r.confirmed, &r.source,
		&r.tags, &r.lastEx, &r.createdAt, &r.updatedAt,
	}
}

func (r *prospectScan) build() (Prospect, error) {
	p := r.p
	p.Email = stringPtr(r.email)
	p.Phone = stringPtr(r.phone)
	p.Website = stringPtr(r.website)
	p.PotentialNeed = stringPtr(r.potential)
	p.ConfirmedNeed = stringPtr(r.confirmed)
	p.Source = stringPtr(r.source)

	var err error
	if p.Tags, err = decodeTags(r.tags); err != nil {
		return Prospect{}, err
	}
	if p.LastExchange, err = parseNullTime(r.lastEx); err != nil {
		return Prospect{}, fmt.Errorf("parsing last_exchange: %w", err)
	}
	if p.CreatedAt, err = parseTime(r.createdAt); err != nil {
		return Prospect{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(r.updatedAt); err != nil {
		return Prospect{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return p, nil
}

// ListProspects returns every prospect, newest first.
func (s *Store) ListProspects(ctx context.Context) ([]Prospect, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Prospect{}
	for rows.Next() {
		var r prospectScan
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, err
		}
		p, err := r.build()
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (s *Store) GetProspect(ctx context.Context, id string) (Prospect, error) {
	var r prospectScan
	err := s.db.QueryRowContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE id = ?`, id,
	).Scan(r.dest()...)
	if err == sql.ErrNoRows {
		return Prospect{}, ErrNotFound
	}
	if err != nil {
		return Prospect{}, err
	}
	return r.build()
}

// CreateProspect inserts a prospect. Empty status and priority take the
// column defaults ("lead", "medium"); values outside the known sets are kept.
func (s *Store) CreateProspect(ctx context.Context, in ProspectInput) (Prospect, error) {
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return Prospect{}, err
	}
	status := in.Status
	if status == "" {
		status = "lead"
	}
	priority := in.Priority
	if priority == "" {
		priority = "medium"
	}

	id := uuid.New().String()
	now := formatTime(nowFunc())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prospects (id, company_name, contact_name, email, phone, website, status, priority,
			potential_need, confirmed_need, source, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.CompanyName, in.ContactName, nullString(in.Email), nullString(in.Phone), nullString(in.Website),
		status, priority, nullString(in.PotentialNeed), nullString(in.ConfirmedNeed), nullString(in.Source),
		tags, now, now,
	)
	if err != nil {
		return Prospect{}, err
	}
	return s.GetProspect(ctx, id)
}

// UpdateProspect applies the non-nil fields of patch and returns the updated row.
func (s *Store) UpdateProspect(ctx context.Context, id string, patch ProspectPatch) (Prospect, error) {
	var u updateBuilder
	u.setString("company_name", patch.CompanyName)
	u.setString("contact_name", patch.ContactName)
	u.setString("email", patch.Email)
	u.setString("phone", patch.Phone)
	u.setString("website", patch.Website)
	u.setString("status", patch.Status)
	u.setString("priority", patch.Priority)
	u.setString("potential_need", patch.PotentialNeed)
	u.setString("confirmed_need", patch.ConfirmedNeed)
	u.setString("source", patch.Source)
	if patch.Tags != nil {
		tags, err := encodeTags(*patch.Tags)
		if err != nil {
			return Prospect{}, err
		}
		u.set("tags", tags)
	}
	if err := u.exec(ctx, s.db, "prospects", id); err != nil {
		return Prospect{}, err
	}
	return s.GetProspect(ctx, id)
}

// DeleteProspect removes a prospect together with its exchanges, notes and
// document rows. Stored files are not touched.
func (s *Store) DeleteProspect(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "prospects", id)
}
