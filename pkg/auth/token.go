// Package auth manages the reMarkable Cloud credential lifecycle: the
// long-lived pair token obtained through device pairing, and the
// short-lived session tokens minted from it.
package auth

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT payload fields every reMarkable Cloud token must carry.
const (
	claimDeviceID   = "device-id"
	claimDeviceDesc = "device-desc"
)

// InvalidTokenError reports a token string that could not be decoded as a
// JWT at all.
type InvalidTokenError struct {
	Cause error
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("invalid token: %v", e.Cause)
}

func (e *InvalidTokenError) Unwrap() error {
	return e.Cause
}

// InvalidRemarkableTokenError reports a decodable token whose payload does
// not carry the device-id and device-desc fields the reMarkable Cloud API
// requires.
type InvalidRemarkableTokenError struct {
	Fields []string
}

func (e *InvalidRemarkableTokenError) Error() string {
	return fmt.Sprintf(
		"invalid reMarkable token: payload must contain %s and %s, found: %s",
		claimDeviceID, claimDeviceDesc, strings.Join(e.Fields, ", "),
	)
}

// TokenPayload is the decoded payload of a reMarkable Cloud JWT.
//
// Tokens are opaque bearer credentials to this client: only the payload
// shape is validated, never the signature. ExpiresAt is zero for tokens
// without an exp claim (pair tokens never expire).
type TokenPayload struct {
	Raw               string
	DeviceID          string
	DeviceDescription Description
	IssuedAt          time.Time
	ExpiresAt         time.Time
}

// ParseToken decodes a reMarkable Cloud token and validates its payload
// shape. It fails with InvalidTokenError when the string is not a JWT and
// with InvalidRemarkableTokenError when the device fields are missing.
func ParseToken(raw string) (*TokenPayload, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, &InvalidTokenError{Cause: err}
	}

	deviceID, okID := claims[claimDeviceID].(string)
	deviceDesc, okDesc := claims[claimDeviceDesc].(string)
	if !okID || !okDesc {
		fields := make([]string, 0, len(claims))
		for k := range claims {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		return nil, &InvalidRemarkableTokenError{Fields: fields}
	}

	payload := &TokenPayload{
		Raw:               raw,
		DeviceID:          deviceID,
		DeviceDescription: Description(deviceDesc),
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		payload.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		payload.ExpiresAt = exp.Time
	}
	return payload, nil
}
