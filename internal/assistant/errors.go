package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
)

// Kind is the closed set of assistant failures surfaced to callers.
type Kind int

const (
	KindMissingAPIKey Kind = iota + 1
	KindClientInit
	KindInvalidAPIKey
	KindRateLimit
	KindOverloaded
	KindAPI
	KindInternal
)

// statusOverloaded is the non-standard status the completion API uses when
// it is out of capacity.
const statusOverloaded = 529

var kindCodes = map[Kind]string{
	KindMissingAPIKey: "MISSING_API_KEY",
	KindClientInit:    "CLIENT_INIT_ERROR",
	KindInvalidAPIKey: "INVALID_API_KEY",
	KindRateLimit:     "RATE_LIMIT",
	KindOverloaded:    "OVERLOADED",
	KindAPI:           "API_ERROR",
	KindInternal:      "INTERNAL_ERROR",
}

// Code returns the machine-readable code, e.g. "RATE_LIMIT".
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return ""
}

// KindFromCode is the inverse of Code. Unknown codes yield 0.
func KindFromCode(code string) Kind {
	for k, c := range kindCodes {
		if c == code {
			return k
		}
	}
	return 0
}

func (k Kind) String() string { return k.Code() }

// Label is the short English error title sent in the "error" field.
func (k Kind) Label() string {
	switch k {
	case KindMissingAPIKey, KindClientInit:
		return "Configuration error"
	case KindInvalidAPIKey:
		return "Authentication error"
	case KindRateLimit:
		return "Rate limit exceeded"
	case KindOverloaded:
		return "Service overloaded"
	case KindAPI:
		return "Anthropic API error"
	default:
		return "Internal server error"
	}
}

// Message is the user-facing French text for the kind.
func (k Kind) Message() string {
	switch k {
	case KindMissingAPIKey:
		return "L'assistant IA n'est pas configuré. Veuillez configurer la clé API Anthropic (ANTHROPIC_API_KEY) dans les variables d'environnement."
	case KindClientInit:
		return "Impossible d'initialiser le client Anthropic."
	case KindInvalidAPIKey:
		return "La clé API Anthropic est invalide. Veuillez vérifier votre configuration."
	case KindRateLimit:
		return "Trop de requêtes. Veuillez réessayer dans quelques instants."
	case KindOverloaded:
		return "Le service est temporairement surchargé. Veuillez réessayer plus tard."
	case KindAPI:
		return "Une erreur s'est produite avec l'API Anthropic."
	default:
		return "Une erreur inconnue s'est produite."
	}
}

// Error is an assistant failure classified into a Kind.
type Error struct {
	Kind Kind
	// Message overrides Kind.Message when set (upstream or local detail).
	Message string
	// Upstream is the provider's HTTP status for KindAPI, 0 when unknown.
	Upstream int
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind.Code(), e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.UserMessage())
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns Message, falling back to the kind's default text.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Message()
}

// HTTPStatus is the status the HTTP surface answers with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindMissingAPIKey, KindClientInit, KindOverloaded:
		return http.StatusServiceUnavailable
	case KindInvalidAPIKey:
		return http.StatusUnauthorized
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindAPI:
		if e.Upstream > 0 {
			return e.Upstream
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON body of a failed assistant call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Status  int    `json:"status,omitempty"`
}

func (e *Error) Response() ErrorResponse {
	resp := ErrorResponse{
		Error:   e.Kind.Label(),
		Message: e.UserMessage(),
		Code:    e.Kind.Code(),
	}
	if e.Kind == KindAPI {
		resp.Status = e.Upstream
	}
	return resp
}

// FromResponse rebuilds an Error from a decoded ErrorResponse.
func FromResponse(status int, r ErrorResponse) *Error {
	e := &Error{Kind: KindFromCode(r.Code), Message: r.Message, Upstream: r.Status}
	if e.Kind == 0 {
		e.Kind = KindInternal
		if e.Message == "" {
			e.Message = r.Error
		}
	}
	if e.Kind == KindAPI && e.Upstream == 0 {
		e.Upstream = status
	}
	return e
}

// Classify maps any error from the chat path onto an *Error. Provider
// responses are classified by status; everything else is INTERNAL_ERROR.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusUnauthorized:
			return &Error{Kind: KindInvalidAPIKey, Err: err}
		case http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimit, Err: err}
		case statusOverloaded:
			return &Error{Kind: KindOverloaded, Err: err}
		}
		return &Error{
			Kind:     KindAPI,
			Message:  upstreamMessage(apierr.RawJSON()),
			Upstream: apierr.StatusCode,
			Err:      err,
		}
	}

	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}

// upstreamMessage pulls error.message out of a provider error body.
func upstreamMessage(raw string) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return ""
	}
	return body.Error.Message
}
