package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// State is the lifecycle stage of a Panel.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateReady
	StateSending
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrBusy         = errors.New("a message is already being sent")
	ErrPanelClosed  = errors.New("panel is closed")
	ErrPanelNotOpen = errors.New("panel is not open")
	ErrEmptyMessage = errors.New("message is empty")
)

const (
	enrichmentPrompt  = "Analyse ce prospect et genere: 1) Un objectif pour l'appel 2) 3 questions strategiques a poser 3) 3 objections possibles"
	notConfiguredText = "L'assistant IA n'est pas configure. Veuillez contacter l'administrateur."
	rateLimitText     = "Trop de requetes. Veuillez reessayer dans quelques instants."
	overloadedText    = "Le service est temporairement surcharge. Veuillez reessayer plus tard."
	genericErrorText  = "Desole, une erreur s'est produite. Veuillez reessayer."
	networkErrorText  = "Impossible de contacter l'assistant. Verifiez votre connexion et reessayez."
)

// WelcomeMessage is shown as soon as a panel opens on a prospect.
func WelcomeMessage(contactName string) string {
	return "Bonjour! Je suis votre assistant IA pour vous aider avec " + contactName +
		". Je peux vous aider a preparer votre appel, repondre a vos questions, et gerer les objections."
}

// ErrorText maps a failed Ask to the assistant message shown in the panel.
// Errors that are not *Error are treated as transport failures.
func ErrorText(err error) string {
	var ae *Error
	if !errors.As(err, &ae) {
		return networkErrorText
	}
	switch ae.Kind {
	case KindMissingAPIKey, KindInvalidAPIKey:
		return firstNonEmpty(ae.Message, notConfiguredText)
	case KindRateLimit:
		return firstNonEmpty(ae.Message, rateLimitText)
	case KindOverloaded:
		return firstNonEmpty(ae.Message, overloadedText)
	}
	return firstNonEmpty(ae.Message, genericErrorText)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// PanelContext is what the panel knows about its prospect when it opens.
// It is serialized into the context field of every request.
type PanelContext struct {
	ProspectID string
	ProspectContext
}

// PanelOption configures a Panel.
type PanelOption func(*Panel)

// WithOnMessage registers a callback invoked after every append, outside
// the panel lock.
func WithOnMessage(fn func(Message)) PanelOption {
	return func(p *Panel) { p.onMessage = fn }
}

func WithPanelLogger(l *slog.Logger) PanelOption {
	return func(p *Panel) { p.logger = l }
}

// Panel drives one assistant conversation: a local welcome message, a
// best-effort background analysis of the prospect, then user turns one at
// a time.
type Panel struct {
	asker     Asker
	pctx      PanelContext
	conv      *Conversation
	onMessage func(Message)
	logger    *slog.Logger

	mu    sync.Mutex
	state State
	bg    sync.WaitGroup
}

func NewPanel(asker Asker, pctx PanelContext, opts ...PanelOption) *Panel {
	p := &Panel{
		asker:  asker,
		pctx:   pctx,
		conv:   NewConversation(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Messages returns the conversation so far.
func (p *Panel) Messages() []Message { return p.conv.Messages() }

// Open shows the welcome message and starts the background analysis when
// the panel has a prospect. Users may send while the analysis is running;
// its result is appended whenever it arrives.
func (p *Panel) Open(ctx context.Context) error {
	p.mu.Lock()
	if cur := p.state; cur != StateIdle {
		p.mu.Unlock()
		if cur == StateClosed {
			return ErrPanelClosed
		}
		return nil
	}
	p.state = StateInitializing
	p.mu.Unlock()

	if p.pctx.Prospect != nil {
		p.appendIfOpen(RoleAssistant, WelcomeMessage(p.pctx.Prospect.ContactName))
	}

	if p.pctx.ProspectID == "" || p.pctx.Prospect == nil {
		p.transition(StateInitializing, StateReady)
		return nil
	}

	req := Request{
		Message:    enrichmentPrompt,
		ProspectID: p.pctx.ProspectID,
		Context:    p.encodeContext(nil),
	}
	p.bg.Add(1)
	go func() {
		defer p.bg.Done()
		defer p.transition(StateInitializing, StateReady)
		p.enrich(ctx, req)
	}()
	return nil
}

func (p *Panel) enrich(ctx context.Context, req Request) {
	reply, err := p.asker.Ask(ctx, req)
	if err == nil {
		p.appendIfOpen(RoleSystem, reply.Message)
		return
	}

	var ae *Error
	if errors.As(err, &ae) && (ae.Kind == KindMissingAPIKey || ae.Kind == KindInvalidAPIKey) {
		p.appendIfOpen(RoleSystem, firstNonEmpty(ae.Message, notConfiguredText))
		return
	}
	p.logger.Debug("assistant: background analysis skipped", "error", err)
}

// Send appends the user's message, waits for the answer and appends it.
// Failures become assistant messages; the returned error only reports why
// the message could not be sent at all.
func (p *Panel) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	p.mu.Lock()
	switch p.state {
	case StateIdle:
		p.mu.Unlock()
		return Message{}, ErrPanelNotOpen
	case StateClosed:
		p.mu.Unlock()
		return Message{}, ErrPanelClosed
	case StateSending:
		p.mu.Unlock()
		return Message{}, ErrBusy
	}
	p.state = StateSending
	p.mu.Unlock()

	history := p.conv.Messages()
	p.appendIfOpen(RoleUser, text)

	reply, err := p.asker.Ask(ctx, Request{
		Message:    text,
		ProspectID: p.pctx.ProspectID,
		Context:    p.encodeContext(history),
	})

	content := reply.Message
	if err != nil {
		p.logger.Warn("assistant: send failed", "error", err)
		content = ErrorText(err)
	}

	if !p.transition(StateSending, StateReady) {
		return Message{}, ErrPanelClosed
	}
	return p.appendIfOpen(RoleAssistant, content), nil
}

// Close discards the conversation. Responses still in flight are dropped
// when they arrive.
func (p *Panel) Close() {
	p.mu.Lock()
	p.state = StateClosed
	p.mu.Unlock()
	p.conv.reset()
}

// Wait blocks until background work started by Open has finished.
func (p *Panel) Wait() { p.bg.Wait() }

func (p *Panel) transition(from, to State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != from {
		return p.state != StateClosed
	}
	p.state = to
	return true
}

func (p *Panel) appendIfOpen(role Role, content string) Message {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return Message{}
	}
	m := p.conv.Append(role, content)
	p.mu.Unlock()

	if p.onMessage != nil {
		p.onMessage(m)
	}
	return m
}

func (p *Panel) encodeContext(history []Message) string {
	payload := struct {
		ProspectContext
		ConversationHistory []Message `json:"conversationHistory,omitempty"`
	}{p.pctx.ProspectContext, history}
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(b)
}
