// Package session ties a browser cookie to server-side session data. The
// cookie holds an HMAC-signed JWT whose id claim names the stored session.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wolfman30/medtrack/internal/accounts"
	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/pkg/logging"
)

const issuer = "medtrack"

type contextKey string

const sessionKey contextKey = "session"

// Session is the per-request view of a browser session.
type Session struct {
	id     string
	data   Data
	dirty  bool
	rotate bool
}

// Identity returns the signed-in identity, if any.
func (s *Session) Identity() (accounts.Identity, bool) {
	if s == nil || s.data.Identity == nil {
		return accounts.Identity{}, false
	}
	return *s.data.Identity, true
}

// HasRole reports whether the signed-in identity has the given role.
func (s *Session) HasRole(role records.Role) bool {
	id, ok := s.Identity()
	return ok && id.Role == role
}

// SignIn stores the identity and rotates the session id on save.
func (s *Session) SignIn(id accounts.Identity) {
	s.data.Identity = &id
	s.dirty = true
	s.rotate = true
}

// Refresh replaces the identity without rotating, e.g. after a name change.
func (s *Session) Refresh(id accounts.Identity) {
	s.data.Identity = &id
	s.dirty = true
}

// Clear drops the identity and any pending flashes. Anything added afterwards
// is saved under a new session id.
func (s *Session) Clear() {
	s.data = Data{}
	s.dirty = true
	s.rotate = true
}

// AddFlash queues a message for the next rendered page.
func (s *Session) AddFlash(msg string) {
	s.data.Flashes = append(s.data.Flashes, msg)
	s.dirty = true
}

// PopFlashes returns and removes all queued messages.
func (s *Session) PopFlashes() []string {
	if len(s.data.Flashes) == 0 {
		return nil
	}
	out := s.data.Flashes
	s.data.Flashes = nil
	s.dirty = true
	return out
}

// Config controls cookie signing and lifetime.
type Config struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager loads and saves sessions.
type Manager struct {
	store  Store
	cfg    Config
	logger *logging.Logger
	now    func() time.Time
}

// NewManager creates a session manager. The secret must be non-empty.
func NewManager(store Store, cfg Config, logger *logging.Logger) *Manager {
	if store == nil {
		panic("session: store cannot be nil")
	}
	if cfg.Secret == "" {
		panic("session: signing secret cannot be empty")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "medtrack_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Load returns the session for the request. Missing, tampered or expired
// cookies yield a fresh anonymous session.
func (m *Manager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return &Session{}
	}
	id, err := m.parseToken(cookie.Value)
	if err != nil {
		m.logger.Debug("session cookie rejected", "error", err)
		return &Session{}
	}
	data, err := m.store.Load(r.Context(), id)
	if err != nil {
		m.logger.Error("failed to load session", "error", err)
		return &Session{}
	}
	if data == nil {
		return &Session{}
	}
	return &Session{id: id, data: *data}
}

// Save persists a modified session and writes its cookie. Unmodified sessions
// are left alone; emptied sessions are deleted and their cookie expired.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s == nil || !s.dirty {
		return nil
	}

	if s.data.empty() {
		if s.id != "" {
			if err := m.store.Delete(ctx, s.id); err != nil {
				return err
			}
		}
		s.id = ""
		s.dirty = false
		m.expireCookie(w)
		return nil
	}

	if s.rotate && s.id != "" {
		if err := m.store.Delete(ctx, s.id); err != nil {
			return err
		}
		s.id = ""
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if err := m.store.Save(ctx, s.id, &s.data, m.cfg.TTL); err != nil {
		return err
	}
	token, err := m.signToken(s.id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.dirty = false
	s.rotate = false
	return nil
}

// Middleware loads the session into the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.Load(r)
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the request's session, or an empty one when the
// middleware did not run.
func FromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(sessionKey).(*Session); ok {
		return sess
	}
	return &Session{}
}

// WithSession stores a session on the context. Used by tests.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

func (m *Manager) signToken(id string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:        id,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.Secret))
}

func (m *Manager) parseToken(raw string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(m.cfg.Secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.ID == "" {
		return "", errors.New("session: token missing id")
	}
	return claims.ID, nil
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
