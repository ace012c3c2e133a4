// Package remarkable ties the rmbridge components into one client: device
// credentials in, file system reads and uploads out.
package remarkable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rmbridge/rmbridge/pkg/auth"
	"github.com/rmbridge/rmbridge/pkg/filesystem"
	"github.com/rmbridge/rmbridge/pkg/service"
	"github.com/rmbridge/rmbridge/pkg/storage"
	"github.com/rmbridge/rmbridge/pkg/transport"
	"github.com/rmbridge/rmbridge/pkg/tree"
)

// Config holds client configuration. Only DeviceToken is required; host
// overrides exist for tests and self-hosted deployments.
type Config struct {
	// DeviceToken is the long-lived pair token.
	DeviceToken string
	// SessionToken seeds the client with an existing session. When the
	// session is expired a new one is minted on first use.
	SessionToken string

	AuthHost      string
	DiscoveryHost string
	InternalHost  string
	Timeout       time.Duration
}

// Client is a connected reMarkable Cloud client. Safe for concurrent use;
// session renewal is serialized internally.
type Client struct {
	cfg    Config
	device *auth.Device

	mu       sync.Mutex
	session  *auth.Session
	resolver *service.Resolver
}

// New builds a client from a device token. The token payload is validated
// here; no network traffic happens until the first operation.
func New(cfg Config) (*Client, error) {
	if cfg.AuthHost == "" {
		cfg.AuthHost = auth.AuthenticationHost
	}

	authClient := transport.New(transport.Config{BaseURL: cfg.AuthHost, Timeout: cfg.Timeout})
	device, err := auth.NewDevice(cfg.DeviceToken, authClient)
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, device: device}
	if cfg.SessionToken != "" {
		session, err := auth.NewSession(cfg.SessionToken)
		if err != nil {
			return nil, err
		}
		c.adopt(session)
	}
	return c, nil
}

// Pair exchanges a one-time code for a device token and returns a
// connected client. The code comes from my.remarkable.com/device/desktop.
func Pair(ctx context.Context, id string, description auth.Description, oneTimeCode string, cfg Config) (*Client, error) {
	if cfg.AuthHost == "" {
		cfg.AuthHost = auth.AuthenticationHost
	}

	authClient := transport.New(transport.Config{BaseURL: cfg.AuthHost, Timeout: cfg.Timeout})
	device, err := auth.Pair(ctx, authClient, id, description, oneTimeCode)
	if err != nil {
		return nil, err
	}

	cfg.DeviceToken = device.PairToken.Raw
	return &Client{cfg: cfg, device: device}, nil
}

// Device returns the paired device identity.
func (c *Client) Device() *auth.Device {
	return c.device
}

// Session returns the current session, minting or renewing one when
// needed. Sessions are never refreshed in place; an expired session is
// replaced wholesale and the capability resolver rebuilt with it.
func (c *Client) Session(ctx context.Context) (*auth.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && !c.session.Expired() {
		return c.session, nil
	}

	session, err := c.device.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	c.adopt(session)
	return session, nil
}

// adopt installs a session and rebuilds the resolver scoped to it.
// Callers hold c.mu, except during construction.
func (c *Client) adopt(session *auth.Session) {
	c.session = session
	c.resolver = service.NewResolver(service.Config{
		Session:      session,
		DiscoveryURL: c.cfg.DiscoveryHost,
		InternalURL:  c.cfg.InternalHost,
	})
}

// FileSystem returns a file system view bound to a live session.
func (c *Client) FileSystem(ctx context.Context) (*filesystem.FileSystem, error) {
	resolver, err := c.serviceResolver(ctx)
	if err != nil {
		return nil, err
	}
	cloud := resolver.InternalCloudClient()
	trees := tree.NewResolver(tree.Config{
		Cloud:    cloud,
		Download: transport.NewURLFetcher(c.cfg.Timeout),
	})
	return filesystem.New(cloud, trees), nil
}

// Snapshot fetches the current file system snapshot.
func (c *Client) Snapshot(ctx context.Context) (*filesystem.Snapshot, error) {
	fs, err := c.FileSystem(ctx)
	if err != nil {
		return nil, err
	}
	return fs.Snapshot(ctx)
}

// Document fetches a fresh snapshot and looks up one document by id.
// Returns nil when the document does not exist.
func (c *Client) Document(ctx context.Context, id string) (*filesystem.Document, error) {
	fs, err := c.FileSystem(ctx)
	if err != nil {
		return nil, err
	}
	return fs.Document(ctx, id)
}

// HashTree resolves the full hash tree.
func (c *Client) HashTree(ctx context.Context) (*tree.Entry, error) {
	fs, err := c.FileSystem(ctx)
	if err != nil {
		return nil, err
	}
	return fs.HashTree(ctx)
}

// Upload pushes file content to the cloud root. Content must be PDF or
// EPUB; classification happens before any network traffic.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (*storage.DocumentReference, error) {
	resolver, err := c.serviceResolver(ctx)
	if err != nil {
		return nil, err
	}
	buffer, err := storage.NewFileBuffer(name, data, resolver.InternalCloudClient())
	if err != nil {
		return nil, err
	}
	return buffer.Upload(ctx)
}

// UploadFile reads a local file and uploads it.
func (c *Client) UploadFile(ctx context.Context, path string) (*storage.DocumentReference, error) {
	resolver, err := c.serviceResolver(ctx)
	if err != nil {
		return nil, err
	}
	buffer, err := storage.FromLocalFile(path, resolver.InternalCloudClient())
	if err != nil {
		return nil, err
	}
	return buffer.Upload(ctx)
}

// serviceResolver ensures a live session and returns the resolver scoped
// to it.
func (c *Client) serviceResolver(ctx context.Context) (*service.Resolver, error) {
	if _, err := c.Session(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolver, nil
}
