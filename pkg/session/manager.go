package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/elvisfernandes/ng-dfservice/pkg/resource"
	"github.com/elvisfernandes/ng-dfservice/pkg/tokenstore"
	"github.com/elvisfernandes/ng-dfservice/pkg/transport"
)

// StorageKeyPrefix namespaces persisted tokens. The API key is appended so
// managers for different applications never share a token.
const StorageKeyPrefix = "dfservice-session-token:"

// StorageKey returns the durable store key for apiKey.
func StorageKey(apiKey string) string {
	return StorageKeyPrefix + apiKey
}

// Gateway is the part of transport.Gateway the manager needs.
type Gateway interface {
	Create(ctx context.Context, loc *resource.Locator, rec resource.Record) (*transport.Response, error)
	Remove(ctx context.Context, loc *resource.Locator, rec resource.Record) (*transport.Response, error)
	Overwrite(ctx context.Context, loc *resource.Locator) (*transport.Response, error)
	SetHeaderSource(h transport.HeaderSource)
}

var _ Gateway = (*transport.Gateway)(nil)

// Config configures a Manager.
type Config struct {
	// APIKey is sent with every request and namespaces the persisted token.
	APIKey string

	// Store persists the session token. Defaults to an in-memory store.
	Store tokenstore.Store

	Logger hclog.Logger
}

// Manager owns the session token and the authentication headers derived from
// it.
type Manager struct {
	gw     Gateway
	store  tokenstore.Store
	logger hclog.Logger
	apiKey string

	mu    sync.RWMutex
	token string

	events broadcaster
}

var _ transport.HeaderSource = (*Manager)(nil)

// New creates a Manager, restores any persisted token and installs the
// manager as gw's header source.
func New(gw Gateway, cfg Config) (*Manager, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Store == nil {
		cfg.Store = tokenstore.NewMemory()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	m := &Manager{
		gw:     gw,
		store:  cfg.Store,
		logger: cfg.Logger.Named("session"),
		apiKey: cfg.APIKey,
	}

	if err := m.initialize(); err != nil {
		return nil, err
	}

	gw.SetHeaderSource(m)
	return m, nil
}

func (m *Manager) initialize() error {
	token, ok, err := m.store.Get(StorageKey(m.apiKey))
	if err != nil {
		return fmt.Errorf("error restoring session token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.token = token
		m.logger.Debug("restored session token", "active", isActiveToken(token))
	} else {
		m.token = ""
	}
	return nil
}

func sessionLocator() *resource.Locator {
	return resource.NewLocator("user", "", "session", 0)
}

// Login opens a session. On 200 the returned token is stored and LoginOK is
// emitted. A 401 emits LoginUnauthorized and leaves the current token alone.
// Any other failure is only reported through the returned error.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*transport.Response, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	loc := sessionLocator()
	loc.Body = map[string]any{
		"email":       creds.Email,
		"password":    creds.Password,
		"remember_me": true,
	}

	resp, err := m.gw.Create(ctx, loc, nil)
	if err != nil {
		if errors.Is(err, transport.ErrUnauthorized) {
			m.logger.Info("login rejected", "email", creds.Email)
			m.events.emit(LoginUnauthorized)
		}
		return resp, err
	}

	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	var body struct {
		SessionToken string `json:"session_token"`
	}
	if err := resp.JSON(&body); err != nil {
		return resp, err
	}
	if body.SessionToken == "" {
		return resp, fmt.Errorf("login response has no session_token")
	}

	if err := m.setToken(body.SessionToken); err != nil {
		return resp, err
	}

	m.logger.Info("logged in", "email", creds.Email)
	m.events.emit(LoginOK)
	return resp, nil
}

// Logout closes the session. On 200 the token is cleared and
// LoginDisconnected is emitted.
func (m *Manager) Logout(ctx context.Context) (*transport.Response, error) {
	resp, err := m.gw.Remove(ctx, sessionLocator(), nil)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	if err := m.setToken(""); err != nil {
		return resp, err
	}

	m.logger.Info("logged out")
	m.events.emit(LoginDisconnected)
	return resp, nil
}

// Refresh asks the server to extend the session. The response is returned
// untouched; callers that want the new token call AdoptToken with it.
func (m *Manager) Refresh(ctx context.Context) (*transport.Response, error) {
	return m.gw.Overwrite(ctx, sessionLocator())
}

// AdoptToken installs and persists a token obtained outside Login, for
// example from a Refresh response.
func (m *Manager) AdoptToken(token string) error {
	return m.setToken(token)
}

// IsActive reports whether a usable session token is held.
func (m *Manager) IsActive() bool {
	return isActiveToken(m.Token())
}

func isActiveToken(token string) bool {
	return token != "" && token != "null"
}

// Token returns the current session token, "" when there is none.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// APIKey returns the configured API key.
func (m *Manager) APIKey() string {
	return m.apiKey
}

// Headers implements transport.HeaderSource. The session token header is
// only present while a token is held.
func (m *Manager) Headers() http.Header {
	h := http.Header{}
	h.Set(transport.HeaderAPIKey, m.apiKey)
	if token := m.Token(); token != "" {
		h.Set(transport.HeaderSessionToken, token)
	}
	return h
}

// Subscribe returns a channel of session events and a function that stops
// delivery and closes the channel.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.events.subscribe()
}

// setToken stores token and persists it before returning.
func (m *Manager) setToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(StorageKey(m.apiKey), token); err != nil {
		return fmt.Errorf("error persisting session token: %w", err)
	}
	m.token = token
	return nil
}
