// Package identity resolves the anonymous participant behind a request.
//
// Participants have no profile: an id is issued on first contact, kept in a
// signed cookie, and only ever compared for equality. Components receive a
// Provider in their constructor instead of reading a global, so tests can
// swap in a Fixed identity.
package identity

import (
	"context"

	"github.com/rs/xid"
)

// Provider resolves the current participant id. ok is false while no
// identity is available.
type Provider interface {
	CurrentID(ctx context.Context) (id string, ok bool)
}

// Fixed is a Provider that always returns the same participant. The empty
// Fixed models an identity that has not resolved yet.
type Fixed string

// CurrentID implements Provider.
func (f Fixed) CurrentID(context.Context) (string, bool) {
	return string(f), f != ""
}

type ctxKey string

const participantKey ctxKey = "participant"

// WithParticipant returns a context carrying the participant id.
func WithParticipant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, participantKey, id)
}

// ParticipantFrom returns the participant id stored in ctx.
func ParticipantFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(participantKey).(string)
	return id, ok && id != ""
}

// FromContext is the Provider used inside HTTP handlers: it returns whatever
// participant EnsureParticipant put in the request context.
var FromContext Provider = contextProvider{}

type contextProvider struct{}

func (contextProvider) CurrentID(ctx context.Context) (string, bool) {
	return ParticipantFrom(ctx)
}

// NewID issues a fresh participant id.
func NewID() string {
	return xid.New().String()
}
