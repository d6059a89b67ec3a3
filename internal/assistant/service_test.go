package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/prospekt/internal/storage"
)

// fakeSource serves one prospect and optionally fails the history queries.
type fakeSource struct {
	prospect     storage.Prospect
	exchanges    []storage.Exchange
	notes        []storage.Note
	exchangesErr error
	notesErr     error

	mu         sync.Mutex
	gotLimits  []int
	notesOrder []bool
}

func (f *fakeSource) GetProspect(_ context.Context, id string) (storage.Prospect, error) {
	if id != f.prospect.ID {
		return storage.Prospect{}, storage.ErrNotFound
	}
	return f.prospect, nil
}

func (f *fakeSource) ListExchanges(_ context.Context, cf storage.ChildFilter) ([]storage.Exchange, error) {
	f.mu.Lock()
	f.gotLimits = append(f.gotLimits, cf.Limit)
	f.mu.Unlock()
	return f.exchanges, f.exchangesErr
}

func (f *fakeSource) ListNotes(_ context.Context, nf storage.NoteFilter) ([]storage.Note, error) {
	f.mu.Lock()
	f.gotLimits = append(f.gotLimits, nf.Limit)
	f.notesOrder = append(f.notesOrder, nf.PinnedFirst)
	f.mu.Unlock()
	return f.notes, f.notesErr
}

// recordingCompleter returns a canned reply and remembers its inputs.
type recordingCompleter struct {
	reply   Reply
	err     error
	system  string
	message string
	calls   int
}

func (r *recordingCompleter) Complete(_ context.Context, system, message string) (Reply, error) {
	r.calls++
	r.system = system
	r.message = message
	return r.reply, r.err
}

func newSource() *fakeSource {
	return &fakeSource{
		prospect: storage.Prospect{ID: "p1", ContactName: "Jeanne", CompanyName: "Acme", Status: "lead", Priority: "high"},
		exchanges: []storage.Exchange{
			{Type: "call", Subject: strPtr("Premier appel")},
		},
		notes: []storage.Note{
			{Content: "Intéressée par l'offre annuelle"},
		},
	}
}

func TestFetcher_LoadsHistoryWithLimit(t *testing.T) {
	src := newSource()
	f := NewFetcher(src, 0)

	pc, err := f.Fetch(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, pc.Prospect)
	assert.Equal(t, "Jeanne", pc.Prospect.ContactName)
	assert.Len(t, pc.Exchanges, 1)
	assert.Len(t, pc.Notes, 1)
	assert.Equal(t, []int{DefaultHistoryLimit, DefaultHistoryLimit}, src.gotLimits)
	assert.Equal(t, []bool{false}, src.notesOrder, "notes are plain newest first")
}

func TestFetcher_HistoryFailuresDegrade(t *testing.T) {
	src := newSource()
	src.exchangesErr = errors.New("boom")
	f := NewFetcher(src, 5)

	pc, err := f.Fetch(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, pc.Exchanges)
	assert.Len(t, pc.Notes, 1)

	src.notesErr = errors.New("boom")
	pc, err = f.Fetch(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, pc.Notes)
	assert.NotNil(t, pc.Prospect)
}

func TestFetcher_MissingProspectIsFatal(t *testing.T) {
	f := NewFetcher(newSource(), 10)
	_, err := f.Fetch(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestService_MissingKey(t *testing.T) {
	s := NewService(ClientConfig{APIKey: ""}, nil)

	chk := s.Check()
	require.NotNil(t, chk)
	assert.Equal(t, KindMissingAPIKey, chk.Kind)
	assert.False(t, s.Available())

	_, err := s.Ask(context.Background(), Request{Message: "Bonjour"})
	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, KindMissingAPIKey, ae.Kind)
}

func TestService_MessageRequired(t *testing.T) {
	comp := &recordingCompleter{}
	s := NewServiceWithCompleter(comp, nil)

	_, err := s.Ask(context.Background(), Request{Message: "  "})
	assert.ErrorIs(t, err, ErrMessageRequired)
	assert.Zero(t, comp.calls)
}

func TestService_PersonalizedPrompt(t *testing.T) {
	comp := &recordingCompleter{reply: Reply{Message: "ok", Usage: Usage{InputTokens: 1, OutputTokens: 2}}}
	s := NewServiceWithCompleter(comp, NewFetcher(newSource(), 10))

	reply, err := s.Ask(context.Background(), Request{Message: "Que proposer ?", ProspectID: "p1", Context: "{}"})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Message)

	assert.Equal(t, "Que proposer ?", comp.message)
	assert.Contains(t, comp.system, "Prospect: Jeanne")
	assert.Contains(t, comp.system, "- [call] Premier appel")
	assert.Contains(t, comp.system, "- Intéressée par l'offre annuelle")
	assert.True(t, strings.HasSuffix(comp.system, "Contexte supplémentaire: {}"))
}

func TestService_UnknownProspectFallsBackToGenericPrompt(t *testing.T) {
	comp := &recordingCompleter{reply: Reply{Message: "ok"}}
	s := NewServiceWithCompleter(comp, NewFetcher(newSource(), 10))

	_, err := s.Ask(context.Background(), Request{Message: "hi", ProspectID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, BuildPrompt(nil, nil, nil, ""), comp.system)
}

func TestService_ClassifiesCompleterErrors(t *testing.T) {
	comp := &recordingCompleter{err: errors.New("socket closed")}
	s := NewServiceWithCompleter(comp, nil)

	_, err := s.Ask(context.Background(), Request{Message: "hi"})
	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, KindInternal, ae.Kind)
	assert.Equal(t, "socket closed", ae.UserMessage())
}
