package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit event.
type Kind string

// Event kinds.
const (
	// KindAuthentication records the outcome of validating a request
	// credential.
	KindAuthentication Kind = "authentication"

	// KindAuthorization records a rule table or policy decision.
	KindAuthorization Kind = "authorization"

	// KindLogin records a credential exchange at the login endpoint.
	KindLogin Kind = "login"

	// KindTokenIssue records a token minted for a subject.
	KindTokenIssue Kind = "token_issue"

	// KindTokenRevoke records a token invalidated at the logout endpoint.
	KindTokenRevoke Kind = "token_revoke"

	// KindConfigReload records a configuration reload attempt.
	KindConfigReload Kind = "config_reload"
)

// Decision is the outcome recorded on an event.
type Decision string

// Decisions.
const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Event is one audit record. Events marshal to a single JSON line.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Time is when the event occurred, in UTC.
	Time time.Time `json:"time"`

	// Kind classifies the event.
	Kind Kind `json:"kind"`

	// Subject is the identity the event concerns, when known.
	Subject string `json:"subject,omitempty"`

	// Path is the request path the decision applied to.
	Path string `json:"path,omitempty"`

	// Method is the HTTP method. Empty for gRPC events, where Path
	// carries the full method.
	Method string `json:"method,omitempty"`

	// Decision is the recorded outcome.
	Decision Decision `json:"decision,omitempty"`

	// Reason explains the decision.
	Reason string `json:"reason,omitempty"`

	// ClientIP is the originating client address.
	ClientIP string `json:"client_ip,omitempty"`

	// RequestID correlates the event with the access log.
	RequestID string `json:"request_id,omitempty"`

	// TraceID correlates the event with distributed traces.
	TraceID string `json:"trace_id,omitempty"`
}

// NewEvent creates an event of the given kind with a fresh identifier
// and the current time.
func NewEvent(kind Kind) *Event {
	return &Event{
		ID:   uuid.New().String(),
		Time: time.Now().UTC(),
		Kind: kind,
	}
}

// WithSubject sets the subject.
func (e *Event) WithSubject(subject string) *Event {
	e.Subject = subject
	return e
}

// WithDecision sets the decision and its reason.
func (e *Event) WithDecision(decision Decision, reason string) *Event {
	e.Decision = decision
	e.Reason = reason
	return e
}

// WithRoute sets the method and path the decision applied to.
func (e *Event) WithRoute(method, path string) *Event {
	e.Method = method
	e.Path = path
	return e
}

// WithClientIP sets the originating client address.
func (e *Event) WithClientIP(ip string) *Event {
	e.ClientIP = ip
	return e
}

// Authentication creates an authentication event.
func Authentication(subject string, decision Decision, reason string) *Event {
	return NewEvent(KindAuthentication).WithSubject(subject).WithDecision(decision, reason)
}

// Authorization creates an authorization event.
func Authorization(subject string, decision Decision, reason string) *Event {
	return NewEvent(KindAuthorization).WithSubject(subject).WithDecision(decision, reason)
}

// Login creates a login event.
func Login(subject string, decision Decision, reason string) *Event {
	return NewEvent(KindLogin).WithSubject(subject).WithDecision(decision, reason)
}

// TokenIssue creates a token issue event. kind names the token form,
// jwt or opaque.
func TokenIssue(subject, kind string) *Event {
	return NewEvent(KindTokenIssue).WithSubject(subject).WithDecision(DecisionAllow, kind)
}

// TokenRevoke creates a token revocation event.
func TokenRevoke(subject, kind string) *Event {
	return NewEvent(KindTokenRevoke).WithSubject(subject).WithDecision(DecisionAllow, kind)
}

// ConfigReload creates a configuration reload event. A rejected reload
// carries DecisionDeny with the validation error as the reason.
func ConfigReload(decision Decision, reason string) *Event {
	return NewEvent(KindConfigReload).WithDecision(decision, reason)
}
