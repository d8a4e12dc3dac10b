package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// Claims is the signed session payload.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Session identifies the logged-in user of a request.
type Session struct {
	UserID   int64
	Username string
}

// SessionManager issues and verifies HS256 session cookies.
type SessionManager struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	clock      clockwork.Clock
}

// NewSessionManager returns a manager signing with secret. Secrets shorter
// than 16 bytes are rejected.
func NewSessionManager(secret, cookieName string, ttl time.Duration, secure bool, clock clockwork.Clock) (*SessionManager, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("session secret must be at least 16 bytes")
	}
	if cookieName == "" {
		cookieName = "session"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionManager{
		secret:     []byte(secret),
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		clock:      clock,
	}, nil
}

// Issue signs a token for the user.
func (m *SessionManager) Issue(userID int64, username string) (string, error) {
	now := m.clock.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns its session. Any signature, algorithm or
// expiry failure is ErrInvalidSession.
func (m *SessionManager) Parse(token string) (Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.UserID <= 0 {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return Session{UserID: claims.UserID, Username: claims.Username}, nil
}

// SetCookie issues a session for the user and writes it as an HttpOnly cookie.
func (m *SessionManager) SetCookie(w http.ResponseWriter, userID int64, username string) error {
	token, err := m.Issue(userID, username)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  m.clock.Now().Add(m.ttl),
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie expires the session cookie.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest returns the request's session, ErrNoSession when no cookie is
// present, or ErrInvalidSession when the cookie does not verify.
func (m *SessionManager) FromRequest(r *http.Request) (Session, error) {
	c, err := r.Cookie(m.cookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return m.Parse(c.Value)
}
