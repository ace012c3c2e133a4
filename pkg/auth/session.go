package auth

import "time"

// Session is a short-lived authenticated context derived from a device.
// Immutable; reconnecting yields a new Session.
type Session struct {
	DeviceID  string
	ExpiresAt time.Time
	Token     string
}

// NewSession builds a Session from a session token string.
func NewSession(token string) (*Session, error) {
	payload, err := ParseToken(token)
	if err != nil {
		return nil, err
	}
	return &Session{
		DeviceID:  payload.DeviceID,
		ExpiresAt: payload.ExpiresAt,
		Token:     token,
	}, nil
}

// Expired reports whether the session's expiry has passed. Tokens without
// an exp claim never expire.
func (s *Session) Expired() bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Before(s.ExpiresAt)
}
