// Package service translates a Session into capability-scoped HTTP clients
// for the reMarkable Cloud API surfaces.
package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/rmbridge/rmbridge/internal/logging"
	"github.com/rmbridge/rmbridge/pkg/auth"
	"github.com/rmbridge/rmbridge/pkg/transport"
)

// Capability identifies one reMarkable Cloud API surface.
type Capability string

const (
	// DocumentStorage is the discovered document-storage service.
	DocumentStorage Capability = "document-storage"
	// InternalCloud is the fixed internal API surface (listing, upload,
	// signed-URL downloads). It is not advertised through discovery.
	InternalCloud Capability = "internal-cloud"
)

// Default hosts for the production reMarkable Cloud.
const (
	DiscoveryHost     = "https://service-manager-production-dot-remarkable-production.appspot.com"
	InternalCloudHost = "https://internal.cloud.remarkable.com"
)

const documentStoragePath = "/service/json/1/document-storage?environment=production&group=auth0%7C5a68dc51cb30df3877a1d7c4&apiVer=2"

// DefaultEndpointTTL bounds how long a discovered host is reused before
// discovery runs again.
const DefaultEndpointTTL = time.Hour

// DiscoveryError reports a failed service discovery round trip.
type DiscoveryError struct {
	Capability Capability
	StatusCode int
	Body       string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("service discovery for %s failed (%d): %s", e.Capability, e.StatusCode, e.Body)
}

// ClientFactory builds a transport client bound to a base URL with default
// headers. Injected in tests; production resolvers use transport.New.
type ClientFactory func(baseURL string, headers map[string]string) transport.Client

// Config holds resolver configuration. Zero values fall back to the
// production hosts.
type Config struct {
	Session      *auth.Session
	DiscoveryURL string
	InternalURL  string
	Factory      ClientFactory
	EndpointTTL  time.Duration
}

// Resolver produces capability-scoped clients for one session. Discovered
// endpoints are memoized per resolver instance; resolvers for different
// sessions never share cached hosts.
type Resolver struct {
	session   *auth.Session
	discovery transport.Client
	internal  string
	factory   ClientFactory
	endpoints *ttlcache.Cache[Capability, string]
}

// NewResolver creates a resolver for the given session.
func NewResolver(cfg Config) *Resolver {
	if cfg.DiscoveryURL == "" {
		cfg.DiscoveryURL = DiscoveryHost
	}
	if cfg.InternalURL == "" {
		cfg.InternalURL = InternalCloudHost
	}
	if cfg.Factory == nil {
		cfg.Factory = func(baseURL string, headers map[string]string) transport.Client {
			return transport.New(transport.Config{BaseURL: baseURL, Headers: headers})
		}
	}
	if cfg.EndpointTTL == 0 {
		cfg.EndpointTTL = DefaultEndpointTTL
	}

	r := &Resolver{
		session:  cfg.Session,
		internal: cfg.InternalURL,
		factory:  cfg.Factory,
		endpoints: ttlcache.New[Capability, string](
			ttlcache.WithTTL[Capability, string](cfg.EndpointTTL),
			ttlcache.WithDisableTouchOnHit[Capability, string](),
		),
	}
	r.discovery = cfg.Factory(cfg.DiscoveryURL, r.bearer())
	return r
}

// Session returns the session this resolver is scoped to.
func (r *Resolver) Session() *auth.Session {
	return r.session
}

// DocumentStorageClient returns a client bound to the discovered
// document-storage host. Discovery runs at most once per TTL window;
// concurrent first calls may race on discovery, which is idempotent.
func (r *Resolver) DocumentStorageClient(ctx context.Context) (transport.Client, error) {
	if item := r.endpoints.Get(DocumentStorage); item != nil {
		return r.factory(item.Value(), r.bearer()), nil
	}

	resp, err := r.discovery.Get(ctx, documentStoragePath, nil)
	if err != nil {
		return nil, fmt.Errorf("document storage discovery: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &DiscoveryError{Capability: DocumentStorage, StatusCode: resp.StatusCode, Body: resp.Text()}
	}

	var payload struct {
		Status string `json:"Status"`
		Host   string `json:"Host"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, fmt.Errorf("document storage discovery: parse response: %w", err)
	}
	if payload.Status != "OK" {
		return nil, &DiscoveryError{Capability: DocumentStorage, StatusCode: resp.StatusCode, Body: resp.Text()}
	}

	host := payload.Host
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	r.endpoints.Set(DocumentStorage, host, ttlcache.DefaultTTL)
	logging.Debug("service endpoint discovered",
		zap.String("capability", string(DocumentStorage)),
		zap.String("host", host),
	)

	return r.factory(host, r.bearer()), nil
}

// InternalCloudClient returns a client bound to the internal-cloud host.
// No discovery round trip is involved.
func (r *Resolver) InternalCloudClient() transport.Client {
	return r.factory(r.internal, r.bearer())
}

func (r *Resolver) bearer() map[string]string {
	return map[string]string{"Authorization": "Bearer " + r.session.Token}
}
