package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rmbridge/rmbridge/pkg/auth"
	"github.com/rmbridge/rmbridge/pkg/transport"
)

func newTestResolver(discoveryURL string) (*Resolver, *[]string) {
	var bound []string
	factory := func(baseURL string, headers map[string]string) transport.Client {
		bound = append(bound, baseURL)
		return transport.New(transport.Config{BaseURL: baseURL, Headers: headers})
	}
	r := NewResolver(Config{
		Session:      &auth.Session{DeviceID: "device-abc", Token: "session-token"},
		DiscoveryURL: discoveryURL,
		Factory:      factory,
	})
	return r, &bound
}

func TestDocumentStorageClientDiscovery(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/service/json/1/document-storage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer session-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"Status":"OK","Host":"storage.example.com"}`))
	}))
	defer server.Close()

	r, bound := newTestResolver(server.URL)

	if _, err := r.DocumentStorageClient(context.Background()); err != nil {
		t.Fatalf("DocumentStorageClient: %v", err)
	}
	last := (*bound)[len(*bound)-1]
	if last != "https://storage.example.com" {
		t.Errorf("bound host = %q, want https scheme prefixed", last)
	}

	// Second call must hit the memoized endpoint, not discovery.
	if _, err := r.DocumentStorageClient(context.Background()); err != nil {
		t.Fatalf("DocumentStorageClient (cached): %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("discovery calls = %d, want 1", calls.Load())
	}
}

func TestDocumentStorageClientKeepsExplicitScheme(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Status":"OK","Host":"http://localhost:9000"}`))
	}))
	defer server.Close()

	r, bound := newTestResolver(server.URL)
	if _, err := r.DocumentStorageClient(context.Background()); err != nil {
		t.Fatalf("DocumentStorageClient: %v", err)
	}
	last := (*bound)[len(*bound)-1]
	if last != "http://localhost:9000" {
		t.Errorf("bound host = %q, scheme must be kept", last)
	}
}

func TestDocumentStorageClientDiscoveryFailure(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		},
		"status not ok": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"Status":"MAINTENANCE","Host":""}`))
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()

			r, _ := newTestResolver(server.URL)
			_, err := r.DocumentStorageClient(context.Background())
			if _, ok := err.(*DiscoveryError); !ok {
				t.Fatalf("err = %v, want DiscoveryError", err)
			}
		})
	}
}

func TestInternalCloudClientSkipsDiscovery(t *testing.T) {
	r := NewResolver(Config{
		Session:     &auth.Session{Token: "session-token"},
		InternalURL: "https://internal.example.com",
	})
	client := r.InternalCloudClient()
	if client == nil {
		t.Fatal("InternalCloudClient returned nil")
	}
}
