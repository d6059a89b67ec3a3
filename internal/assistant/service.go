package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrMessageRequired is returned by Ask for an empty message.
var ErrMessageRequired = errors.New("message is required")

// Request is the body of an assistant call.
type Request struct {
	Message    string `json:"message"`
	ProspectID string `json:"prospectId,omitempty"`
	// Context is free text appended to the system prompt.
	Context string `json:"context,omitempty"`
}

// Asker answers one assistant request. Service implements it in-process;
// remote callers implement it over HTTP.
type Asker interface {
	Ask(ctx context.Context, req Request) (Reply, error)
}

// Service builds the prompt for a request and sends it to the model.
type Service struct {
	completer Completer
	initErr   *Error
	fetcher   *Fetcher
	logger    *slog.Logger
}

// NewService builds the chat client from cfg. A missing or unusable
// credential does not fail construction; Check reports it per request.
func NewService(cfg ClientConfig, fetcher *Fetcher) *Service {
	s := &Service{fetcher: fetcher, logger: slog.Default()}
	c, err := NewClient(cfg)
	if err != nil {
		s.initErr = Classify(err)
		return s
	}
	s.completer = c
	return s
}

// NewServiceWithCompleter wires an explicit Completer (used by tests).
func NewServiceWithCompleter(c Completer, fetcher *Fetcher) *Service {
	return &Service{completer: c, fetcher: fetcher, logger: slog.Default()}
}

// Check returns the configuration error that makes every call fail, or nil.
func (s *Service) Check() *Error {
	if s.initErr != nil {
		return s.initErr
	}
	if s.completer == nil {
		return &Error{Kind: KindClientInit}
	}
	return nil
}

// Available reports whether Check passes.
func (s *Service) Available() bool { return s.Check() == nil }

// Ask answers req. Errors other than ErrMessageRequired are *Error.
func (s *Service) Ask(ctx context.Context, req Request) (Reply, error) {
	if e := s.Check(); e != nil {
		return Reply{}, e
	}
	if strings.TrimSpace(req.Message) == "" {
		return Reply{}, ErrMessageRequired
	}

	system := BuildPrompt(nil, nil, nil, req.Context)
	if req.ProspectID != "" && s.fetcher != nil {
		pc, err := s.fetcher.Fetch(ctx, req.ProspectID)
		if err != nil {
			s.logger.Warn("assistant: prospect context unavailable", "prospect_id", req.ProspectID, "error", err)
		} else {
			system = BuildPrompt(pc.Prospect, pc.Exchanges, pc.Notes, req.Context)
		}
	}

	reply, err := s.completer.Complete(ctx, system, req.Message)
	if err != nil {
		return Reply{}, Classify(err)
	}
	return reply, nil
}
