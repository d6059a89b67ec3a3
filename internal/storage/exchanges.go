package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const exchangeColumns = `id, prospect_id, type, subject, content, direction, status, scheduled_at, created_at, updated_at`

type exchangeScan struct {
	e                                   Exchange
	subject, content, direction, status sql.NullString
	scheduledAt                         sql.NullString
	createdAt, updatedAt                string
}

func (r *exchangeScan) dest() []any {
	return []any{
		&r.e.ID, &r.e.ProspectID, &r.e.Type, &r.subject, &r.content, &r.direction, &r.status,
		&r.scheduledAt, &r.createdAt, &r.updatedAt,
	}
}

func (r *exchangeScan) build() (Exchange, error) {
	e := r.e
	e.Subject = stringPtr(r.subject)
	e.Content = stringPtr(r.content)
	e.Direction = stringPtr(r.direction)
	e.Status = stringPtr(r.status)

	var err error
	if e.ScheduledAt, err = parseNullTime(r.scheduledAt); err != nil {
		return Exchange{}, fmt.Errorf("parsing scheduled_at: %w", err)
	}
	if e.CreatedAt, err = parseTime(r.createdAt); err != nil {
		return Exchange{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(r.updatedAt); err != nil {
		return Exchange{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return e, nil
}

// ChildFilter scopes a child-entity listing. With an empty ProspectID every
// row is returned with its owning prospect embedded. Limit <= 0 means no limit.
type ChildFilter struct {
	ProspectID string
	Limit      int
}

// ListExchanges returns exchanges newest first.
func (s *Store) ListExchanges(ctx context.Context, f ChildFilter) ([]Exchange, error) {
	embed := f.ProspectID == ""
	query := `SELECT ` + prefixed("e", exchangeColumns)
	if embed {
		query += `, ` + prefixed("p", prospectColumns) + ` FROM exchanges e JOIN prospects p ON p.id = e.prospect_id`
	} else {
		query += ` FROM exchanges e WHERE e.prospect_id = ?`
	}
	query += ` ORDER BY e.created_at DESC, e.rowid DESC`

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

	results := []Exchange{}
	for rows.Next() {
		var r exchangeScan
		var pr prospectScan
		dest := r.dest()
		if embed {
			dest = append(dest, pr.dest()...)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		e, err := r.build()
		if err != nil {
			return nil, err
		}
		if embed {
			p, err := pr.build()
			if err != nil {
				return nil, err
			}
			e.Prospect = &p
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// GetExchange returns one exchange with its owning prospect embedded.
func (s *Store) GetExchange(ctx context.Context, id string) (Exchange, error) {
	var r exchangeScan
	var pr prospectScan
	err := s.db.QueryRowContext(ctx,
		`SELECT `+prefixed("e", exchangeColumns)+`, `+prefixed("p", prospectColumns)+`
		FROM exchanges e JOIN prospects p ON p.id = e.prospect_id WHERE e.id = ?`, id,
	).Scan(append(r.dest(), pr.dest()...)...)
	if err == sql.ErrNoRows {
		return Exchange{}, ErrNotFound
	}
	if err != nil {
		return Exchange{}, err
	}
	e, err := r.build()
	if err != nil {
		return Exchange{}, err
	}
	p, err := pr.build()
	if err != nil {
		return Exchange{}, err
	}
	e.Prospect = &p
	return e, nil
}

func (s *Store) getExchangeRow(ctx context.Context, id string) (Exchange, error) {
	var r exchangeScan
	err := s.db.QueryRowContext(ctx,
		`SELECT `+exchangeColumns+` FROM exchanges WHERE id = ?`, id,
	).Scan(r.dest()...)
	if err == sql.ErrNoRows {
		return Exchange{}, ErrNotFound
	}
	if err != nil {
		return Exchange{}, err
	}
	return r.build()
}

// CreateExchange inserts an exchange and stamps the prospect's last_exchange.
func (s *Store) CreateExchange(ctx context.Context, in ExchangeInput) (Exchange, error) {
	id := uuid.New().String()
	now := formatTime(nowFunc())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, prospect_id, type, subject, content, direction, status, scheduled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.ProspectID, in.Type, nullString(in.Subject), nullString(in.Content),
		nullString(in.Direction), nullString(in.Status), nullTime(in.ScheduledAt), now, now,
	)
	if err != nil {
		return Exchange{}, err
	}
	return s.getExchangeRow(ctx, id)
}

func (s *Store) UpdateExchange(ctx context.Context, id string, patch ExchangePatch) (Exchange, error) {
	var u updateBuilder
	u.setString("prospect_id", patch.ProspectID)
	u.setString("type", patch.Type)
	u.setString("subject", patch.Subject)
	u.setString("content", patch.Content)
	u.setString("direction", patch.Direction)
	u.setString("status", patch.Status)
	if patch.ScheduledAt != nil {
		u.set("scheduled_at", formatTime(*patch.ScheduledAt))
	}
	if err := u.exec(ctx, s.db, "exchanges", id); err != nil {
		return Exchange{}, err
	}
	return s.getExchangeRow(ctx, id)
}

func (s *Store) DeleteExchange(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "exchanges", id)
}
