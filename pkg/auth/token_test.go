package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signTestToken mints a syntactically valid JWT for tests. The signing key
// is irrelevant; signatures are never verified.
func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return token
}

func TestParseToken(t *testing.T) {
	issued := time.Now().Add(-time.Minute).Truncate(time.Second)
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signTestToken(t, jwt.MapClaims{
		"device-id":   "device-123",
		"device-desc": "browser-chrome",
		"iat":         issued.Unix(),
		"exp":         expires.Unix(),
	})

	payload, err := ParseToken(raw)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if payload.DeviceID != "device-123" {
		t.Errorf("DeviceID = %q", payload.DeviceID)
	}
	if payload.DeviceDescription != BrowserChrome {
		t.Errorf("DeviceDescription = %q", payload.DeviceDescription)
	}
	if !payload.IssuedAt.Equal(issued) {
		t.Errorf("IssuedAt = %v, want %v", payload.IssuedAt, issued)
	}
	if !payload.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", payload.ExpiresAt, expires)
	}
	if payload.Raw != raw {
		t.Error("Raw must keep the original token string")
	}
}

func TestParseTokenWithoutExpiry(t *testing.T) {
	raw := signTestToken(t, jwt.MapClaims{
		"device-id":   "device-123",
		"device-desc": "desktop-linux",
	})

	payload, err := ParseToken(raw)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if !payload.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero for tokens without exp", payload.ExpiresAt)
	}
}

func TestParseTokenNotAJWT(t *testing.T) {
	_, err := ParseToken("definitely-not-a-token")
	var invalid *InvalidTokenError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTokenError", err)
	}
}

func TestParseTokenMissingDeviceClaims(t *testing.T) {
	raw := signTestToken(t, jwt.MapClaims{
		"sub": "someone",
		"aud": "somewhere",
	})

	_, err := ParseToken(raw)
	var invalid *InvalidRemarkableTokenError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidRemarkableTokenError", err)
	}
	if len(invalid.Fields) != 2 || invalid.Fields[0] != "aud" || invalid.Fields[1] != "sub" {
		t.Errorf("Fields = %v, want sorted claim names", invalid.Fields)
	}
}

func TestSessionExpired(t *testing.T) {
	expired := signTestToken(t, jwt.MapClaims{
		"device-id":   "device-123",
		"device-desc": "browser-chrome",
		"exp":         time.Now().Add(-time.Hour).Unix(),
	})
	session, err := NewSession(expired)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if !session.Expired() {
		t.Error("session past its exp must report expired")
	}

	eternal := signTestToken(t, jwt.MapClaims{
		"device-id":   "device-123",
		"device-desc": "browser-chrome",
	})
	session, err = NewSession(eternal)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if session.Expired() {
		t.Error("session without exp must never report expired")
	}
}
