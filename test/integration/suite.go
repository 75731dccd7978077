// Package integration exercises the device flow client end to end against a
// scripted provider
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/tokenstore"
)

// Timeouts for integration tests
const (
	SuiteTimeout = 30 * time.Second
)

// FakeProvider serves the RFC 8628 device authorization and token endpoints.
// Token responses are taken from Script in order; the last one repeats.
type FakeProvider struct {
	Server *httptest.Server
	Script []map[string]string

	mu    sync.Mutex
	polls int
}

// NewFakeProvider starts a provider answering token polls with script
func NewFakeProvider(t *testing.T, script ...map[string]string) *FakeProvider {
	t.Helper()
	p := &FakeProvider{Script: script}

	mux := http.NewServeMux()
	mux.HandleFunc("/device/code", p.handleDeviceCode)
	mux.HandleFunc("/token", p.handleToken)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

func (p *FakeProvider) handleDeviceCode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"device_code":      "device-code-1",
		"user_code":        "WDJB-MJHT",
		"verification_uri": p.Server.URL + "/device",
		"expires_in":       900,
		"interval":         5,
	})
}

func (p *FakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("device_code") != "device-code-1" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "incorrect_device_code"})
		return
	}

	p.mu.Lock()
	i := p.polls
	p.polls++
	p.mu.Unlock()

	if i >= len(p.Script) {
		i = len(p.Script) - 1
	}
	body := p.Script[i]
	status := http.StatusOK
	if body["error"] != "" {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, body)
}

// Polls returns the number of token requests received
func (p *FakeProvider) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

// TestSuite wires the real provider client, authenticator and file store
type TestSuite struct {
	T        *testing.T
	Ctx      context.Context
	Provider *FakeProvider
	Store    *tokenstore.FileStore
	Auth     *deviceflow.Authenticator
}

// NewSuite creates a new test suite with timeout
func NewSuite(t *testing.T, script ...map[string]string) *TestSuite {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), SuiteTimeout)
	t.Cleanup(cancel)

	fake := NewFakeProvider(t, script...)
	provider, err := oauth.NewProvider(oauth.Config{
		DeviceAuthURL: fake.Server.URL + "/device/code",
		TokenURL:      fake.Server.URL + "/token",
		HTTPClient:    fake.Server.Client(),
	})
	if err != nil {
		t.Fatalf("creating provider: %v", err)
	}

	store := tokenstore.NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	return &TestSuite{
		T:        t,
		Ctx:      ctx,
		Provider: fake,
		Store:    store,
		Auth:     deviceflow.NewAuthenticator(provider, store, "integration-client"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
