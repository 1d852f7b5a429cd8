package proxy

import (
	"encoding/json"
	"fmt"

	"github.com/ashureev/bot-console/internal/domain"
)

// Markers prefixed to every fragment the console generates itself.
const (
	ErrorMarker       = "❌ Admin console backend error: "
	AuthFailureMarker = "❌ Unauthorized: "
)

// FailureKind classifies why a chat request produced no bot core payload.
type FailureKind int

const (
	FailureUnauthenticated FailureKind = iota + 1
	FailureBadRequest
	FailureRateLimited
	FailureTransport
	FailureTimeout
	FailureCanceled
	FailureStatus
	FailureDecode
)

func (k FailureKind) String() string {
	switch k {
	case FailureUnauthenticated:
		return "unauthenticated"
	case FailureBadRequest:
		return "bad_request"
	case FailureRateLimited:
		return "rate_limited"
	case FailureTransport:
		return "transport"
	case FailureTimeout:
		return "timeout"
	case FailureCanceled:
		return "canceled"
	case FailureStatus:
		return "upstream_status"
	case FailureDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Failure describes a failed chat request. It implements error.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// Content is the text shown to the operator in the chat window.
func (f *Failure) Content() string {
	if f.Kind == FailureUnauthenticated {
		return AuthFailureMarker + f.Message
	}
	if f.Err != nil {
		switch f.Kind {
		case FailureTransport, FailureTimeout, FailureDecode:
			return ErrorMarker + f.Message + ": " + f.Err.Error()
		}
	}
	return ErrorMarker + f.Message
}

// Result is either the bot core's raw JSON payload or a Failure.
// It is turned into the wire shape only at the HTTP boundary via Body.
type Result struct {
	payload json.RawMessage
	failure *Failure
}

// Passthrough wraps a successful bot core response.
func Passthrough(payload json.RawMessage) Result {
	return Result{payload: payload}
}

// Fail builds a failed result.
func Fail(kind FailureKind, message string, err error) Result {
	return Result{failure: &Failure{Kind: kind, Message: message, Err: err}}
}

// Unauthenticated is the result for a request that carries no identity.
func Unauthenticated() Result {
	return Fail(FailureUnauthenticated, "log in to the admin console to chat with the bot", nil)
}

// OK reports whether the result carries a bot core payload.
func (r Result) OK() bool { return r.failure == nil }

// Payload returns the raw bot core body, or nil on failure.
func (r Result) Payload() json.RawMessage { return r.payload }

// Failure returns the failure, or nil on success.
func (r Result) Failure() *Failure { return r.failure }

// Fragments returns the single error fragment for a failure, or nil on success.
func (r Result) Fragments() []domain.Fragment {
	if r.failure == nil {
		return nil
	}
	return domain.TextFragments(r.failure.Content())
}

// Body renders the response body: the payload verbatim, or the fragment list.
func (r Result) Body() []byte {
	if r.failure == nil {
		return r.payload
	}
	data, err := json.Marshal(r.Fragments())
	if err != nil {
		// Fragments are plain strings; Marshal cannot fail on them.
		return []byte(`[{"type":"text","content":"` + ErrorMarker + `"}]`)
	}
	return data
}
