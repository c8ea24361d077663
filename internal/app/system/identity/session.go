package identity

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const participantIDKey = "participant_id"

// SessionManager keeps the anonymous participant id in a signed cookie
// session.
type SessionManager struct {
	store *sessions.CookieStore
	name  string
	log   *zap.Logger
}

// NewSessionManager builds a cookie-backed session manager.
//
// In production (secure=true) cookies are Secure + SameSite=None so that
// shared links opened from other sites keep their identity. In local dev over
// http://localhost, use secure=false so the cookie is accepted.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		return nil, fmt.Errorf("session name is empty")
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// GetSession returns the participant session for r.
func (m *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return m.store.Get(r, m.name)
}

// EnsureParticipant resolves the participant for the request, issuing and
// persisting a new id on first contact, and puts it in the request context.
//
// If the cookie cannot be written the request continues without an identity;
// read-only routes still work and mutations report the identity as
// unavailable.
func (m *SessionManager) EnsureParticipant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A tampered or expired cookie yields a fresh, empty session.
		sess, _ := m.store.Get(r, m.name)

		id, _ := sess.Values[participantIDKey].(string)
		if id == "" {
			id = NewID()
			sess.Values[participantIDKey] = id
			if err := sess.Save(r, w); err != nil {
				m.log.Warn("failed to save participant session", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			m.log.Debug("issued participant id", zap.String("participant_id", id))
		}

		next.ServeHTTP(w, r.WithContext(WithParticipant(r.Context(), id)))
	})
}

// WithTestParticipant injects a participant into the request context,
// bypassing the cookie session. Tests only.
func WithTestParticipant(r *http.Request, id string) *http.Request {
	return r.WithContext(WithParticipant(r.Context(), id))
}
