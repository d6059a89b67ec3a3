package assistant

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/prospekt/internal/storage"
)

// DefaultHistoryLimit bounds the exchanges and notes pulled into a prompt.
const DefaultHistoryLimit = 10

// Source is the slice of the data store the fetcher reads.
type Source interface {
	GetProspect(ctx context.Context, id string) (storage.Prospect, error)
	ListExchanges(ctx context.Context, f storage.ChildFilter) ([]storage.Exchange, error)
	ListNotes(ctx context.Context, f storage.NoteFilter) ([]storage.Note, error)
}

// ProspectContext is a prospect with its most recent history.
type ProspectContext struct {
	Prospect  *storage.Prospect  `json:"prospect"`
	Exchanges []storage.Exchange `json:"exchanges"`
	Notes     []storage.Note     `json:"notes"`
}

// Fetcher loads the context a prompt is built from.
type Fetcher struct {
	src    Source
	limit  int
	logger *slog.Logger
}

func NewFetcher(src Source, limit int) *Fetcher {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Fetcher{src: src, limit: limit, logger: slog.Default()}
}

// Fetch returns an error only when the prospect itself cannot be loaded.
// Exchanges and notes are queried together; a failure of either is logged
// and leaves that list empty.
func (f *Fetcher) Fetch(ctx context.Context, prospectID string) (ProspectContext, error) {
	p, err := f.src.GetProspect(ctx, prospectID)
	if err != nil {
		return ProspectContext{}, err
	}
	pc := ProspectContext{Prospect: &p}

	var g errgroup.Group
	g.Go(func() error {
		exchanges, err := f.src.ListExchanges(ctx, storage.ChildFilter{ProspectID: prospectID, Limit: f.limit})
		if err != nil {
			f.logger.Warn("assistant: loading exchanges failed", "prospect_id", prospectID, "error", err)
			return nil
		}
		pc.Exchanges = exchanges
		return nil
	})
	g.Go(func() error {
		notes, err := f.src.ListNotes(ctx, storage.NoteFilter{
			ChildFilter: storage.ChildFilter{ProspectID: prospectID, Limit: f.limit},
		})
		if err != nil {
			f.logger.Warn("assistant: loading notes failed", "prospect_id", prospectID, "error", err)
			return nil
		}
		pc.Notes = notes
		return nil
	})
	g.Wait()

	return pc, nil
}
