package auth

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tranvu/mercato/internal/crypto"
	"github.com/tranvu/mercato/internal/domain"
)

// DefaultSessionTTL is how long an issued session stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

var (
	ErrSessionExpired = errors.New("session expired")
	ErrSessionInvalid = errors.New("session invalid")
)

// Session is the identity payload sealed into the session cookie. The
// cookie carries everything needed to resolve the caller so no session
// table lookup is needed on each request.
type Session struct {
	UserID    uuid.UUID `json:"uid"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"exp"`
}

// User converts the session to the domain identity.
func (s Session) User() *domain.User {
	return &domain.User{ID: s.UserID, Email: s.Email, Role: s.Role}
}

// SealSession encrypts a session for the given user into a cookie value.
func SealSession(enc crypto.Encryptor, user *domain.User, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	payload, err := json.Marshal(Session{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return "", err
	}
	sealed, err := enc.Encrypt(payload)
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}

// OpenSession decrypts and validates a cookie value. Tampered or expired
// tokens are rejected.
func OpenSession(enc crypto.Encryptor, token string) (*Session, error) {
	payload, err := enc.Decrypt([]byte(token))
	if err != nil {
		return nil, ErrSessionInvalid
	}
	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, ErrSessionInvalid
	}
	if s.UserID == uuid.Nil || s.Email == "" {
		return nil, ErrSessionInvalid
	}
	if time.Now().After(s.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return &s, nil
}
