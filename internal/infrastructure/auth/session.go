package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "marketlive/pkg/errors"
)

// Session is the engine's view of the user's auth state. Token verification
// belongs to the backend; locally we only extract the subject and expiry so
// the engine knows who the current user is and whether sends are allowed.
type Session struct {
	token     string
	userID    string
	expiresAt time.Time
}

// NewSession parses a bearer token into a session. An empty token yields an
// anonymous session: reads work, sends are rejected with AUTH_REQUIRED.
func NewSession(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return &Session{}, nil
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, apperrors.AuthRequired("invalid session token", err)
	}

	s := &Session{token: token, userID: claims.Subject}
	if claims.ExpiresAt != nil {
		s.expiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// NewStatic returns a pre-resolved session. Used by dev tooling and tests.
func NewStatic(userID, token string) *Session {
	return &Session{token: token, userID: userID}
}

func (s *Session) Authenticated() bool {
	if s == nil || s.userID == "" {
		return false
	}
	if !s.expiresAt.IsZero() && time.Now().After(s.expiresAt) {
		return false
	}
	return true
}

func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.userID
}

func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}
