package remarkable

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"device-id":   "device-abc",
		"device-desc": "browser-chrome",
	}
	if expiresIn != 0 {
		claims["exp"] = time.Now().Add(expiresIn).Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

// newAuthServer serves session creation, counting how often it runs.
func newAuthServer(t *testing.T, sessionToken string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var connects atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token/json/2/user/new", r.URL.Path)
		connects.Add(1)
		w.Write([]byte(sessionToken))
	}))
	return server, &connects
}

func TestNewRejectsInvalidDeviceToken(t *testing.T) {
	_, err := New(Config{DeviceToken: "not-a-token"})
	require.Error(t, err)
}

func TestSessionIsMintedOnceWhileValid(t *testing.T) {
	authServer, connects := newAuthServer(t, signTestToken(t, time.Hour))
	defer authServer.Close()

	client, err := New(Config{
		DeviceToken: signTestToken(t, 0),
		AuthHost:    authServer.URL,
	})
	require.NoError(t, err)

	first, err := client.Session(context.Background())
	require.NoError(t, err)
	second, err := client.Session(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), connects.Load())
}

func TestSessionRenewsWhenSeededExpired(t *testing.T) {
	authServer, connects := newAuthServer(t, signTestToken(t, time.Hour))
	defer authServer.Close()

	client, err := New(Config{
		DeviceToken:  signTestToken(t, 0),
		SessionToken: signTestToken(t, -time.Hour),
		AuthHost:     authServer.URL,
	})
	require.NoError(t, err)

	session, err := client.Session(context.Background())
	require.NoError(t, err)
	assert.False(t, session.Expired())
	assert.Equal(t, int32(1), connects.Load())
}

func TestUploadThroughClient(t *testing.T) {
	authServer, _ := newAuthServer(t, signTestToken(t, time.Hour))
	defer authServer.Close()

	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/doc/v2/files", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"docID":"doc-1","hash":"hash-1"}`))
	}))
	defer internal.Close()

	client, err := New(Config{
		DeviceToken:  signTestToken(t, 0),
		AuthHost:     authServer.URL,
		InternalHost: internal.URL,
	})
	require.NoError(t, err)

	ref, err := client.Upload(context.Background(), "paper.pdf", []byte("%PDF-1.7 body"))
	require.NoError(t, err)
	assert.Equal(t, "doc-1", ref.ID)
	assert.Equal(t, "hash-1", ref.Hash)
}

func TestUploadRejectsUnsupportedContentLocally(t *testing.T) {
	authServer, _ := newAuthServer(t, signTestToken(t, time.Hour))
	defer authServer.Close()

	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unsupported content must never reach the network")
	}))
	defer internal.Close()

	client, err := New(Config{
		DeviceToken:  signTestToken(t, 0),
		AuthHost:     authServer.URL,
		InternalHost: internal.URL,
	})
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), "notes.txt", []byte("plain text"))
	require.Error(t, err)
}

func TestSnapshotThroughClient(t *testing.T) {
	authServer, _ := newAuthServer(t, signTestToken(t, time.Hour))
	defer authServer.Close()

	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/doc/v2/files", r.URL.Path)
		w.Write([]byte(`[{"id":"f1","hash":"h1","type":"DocumentType","fileType":"pdf","visibleName":"Paper"}]`))
	}))
	defer internal.Close()

	client, err := New(Config{
		DeviceToken:  signTestToken(t, 0),
		AuthHost:     authServer.URL,
		InternalHost: internal.URL,
	})
	require.NoError(t, err)

	snapshot, err := client.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot.Document("f1"))
	assert.Equal(t, "Paper", snapshot.Document("f1").Name)
}
