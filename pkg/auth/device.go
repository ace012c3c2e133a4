package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmbridge/rmbridge/internal/logging"
	"github.com/rmbridge/rmbridge/internal/metrics"
	"github.com/rmbridge/rmbridge/pkg/transport"
)

// AuthenticationHost is the fixed host serving pairing and session
// endpoints. It is not advertised through service discovery.
const AuthenticationHost = "https://webapp-prod.cloud.remarkable.engineering"

const (
	pairPath    = "/token/json/2/device/new"
	sessionPath = "/token/json/2/user/new"
)

// Description is the enumerated kind of client connecting to the
// reMarkable Cloud.
type Description string

const (
	DesktopWindows Description = "desktop-windows"
	DesktopMacOS   Description = "desktop-macos"
	DesktopLinux   Description = "desktop-linux"
	MobileAndroid  Description = "mobile-android"
	MobileIOS      Description = "mobile-ios"
	BrowserChrome  Description = "browser-chrome"
)

// PairingFailedError reports a non-200 response from the pairing endpoint.
type PairingFailedError struct {
	StatusCode int
	Body       string
}

func (e *PairingFailedError) Error() string {
	return fmt.Sprintf("device pairing failed (%d): %s", e.StatusCode, e.Body)
}

// SessionCreationFailedError reports a non-200 response from the session
// endpoint.
type SessionCreationFailedError struct {
	StatusCode int
	Body       string
}

func (e *SessionCreationFailedError) Error() string {
	return fmt.Sprintf("session creation failed (%d): %s", e.StatusCode, e.Body)
}

// Device is a paired client identity. It holds the non-expiring pair token
// and is the capability to mint sessions. Immutable after construction.
type Device struct {
	ID          string
	Description Description
	PairToken   *TokenPayload

	client transport.Client
}

// NewDeviceID generates a fresh device identifier for pairing.
func NewDeviceID() string {
	return uuid.NewString()
}

// Pair exchanges a one-time code from my.remarkable.com for a device token
// and returns the paired Device. The code is single-use; pairing again
// requires a new one.
func Pair(ctx context.Context, client transport.Client, id string, description Description, oneTimeCode string) (*Device, error) {
	body, err := json.Marshal(map[string]string{
		"code":       oneTimeCode,
		"deviceID":   id,
		"deviceDesc": string(description),
	})
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(ctx, pairPath, body, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		metrics.RecordAuthAttempt("pair", false)
		return nil, fmt.Errorf("pair request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordAuthAttempt("pair", false)
		return nil, &PairingFailedError{StatusCode: resp.StatusCode, Body: resp.Text()}
	}

	device, err := NewDevice(resp.Text(), client)
	if err != nil {
		metrics.RecordAuthAttempt("pair", false)
		return nil, err
	}
	metrics.RecordAuthAttempt("pair", true)
	logging.Info("device paired", zap.String("device_id", device.ID))
	return device, nil
}

// NewDevice builds a Device from a previously issued device token. The
// token payload is validated before it is accepted; id and description
// come from the payload itself.
func NewDevice(token string, client transport.Client) (*Device, error) {
	payload, err := ParseToken(token)
	if err != nil {
		return nil, err
	}
	return &Device{
		ID:          payload.DeviceID,
		Description: payload.DeviceDescription,
		PairToken:   payload,
		client:      client,
	}, nil
}

// Connect mints a new Session from the pair token. Sessions are never
// refreshed in place; call Connect again once a session expires.
func (d *Device) Connect(ctx context.Context) (*Session, error) {
	resp, err := d.client.Post(ctx, sessionPath, nil, map[string]string{
		"Authorization": "Bearer " + d.PairToken.Raw,
	})
	if err != nil {
		metrics.RecordAuthAttempt("connect", false)
		return nil, fmt.Errorf("session request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordAuthAttempt("connect", false)
		return nil, &SessionCreationFailedError{StatusCode: resp.StatusCode, Body: resp.Text()}
	}

	session, err := NewSession(resp.Text())
	if err != nil {
		metrics.RecordAuthAttempt("connect", false)
		return nil, err
	}
	metrics.RecordAuthAttempt("connect", true)
	logging.Info("session created",
		zap.String("device_id", session.DeviceID),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return session, nil
}
