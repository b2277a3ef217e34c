package base

import (
	"fmt"

	"github.com/elvisfernandes/ng-dfservice/internal/config"
	"github.com/elvisfernandes/ng-dfservice/pkg/datastore"
	"github.com/elvisfernandes/ng-dfservice/pkg/resource"
	"github.com/elvisfernandes/ng-dfservice/pkg/session"
	"github.com/elvisfernandes/ng-dfservice/pkg/tokenstore"
	"github.com/elvisfernandes/ng-dfservice/pkg/transport"
)

// Client is everything a command needs to talk to the API.
type Client struct {
	Config  *config.Config
	Gateway *transport.Gateway
	Session *session.Manager
	Store   tokenstore.Store

	closeStore func() error
}

// Connect loads configuration and builds a Client. The session token is
// restored from the configured token store.
func (c *Command) Connect() (*Client, error) {
	cfg, err := config.Load(c.flagConfig)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	c.Log.SetLevel(cfg.Level())

	tc, err := cfg.Transport()
	if err != nil {
		return nil, err
	}

	store, closeStore, err := cfg.OpenTokenStore(c.Fs, c.Log)
	if err != nil {
		return nil, fmt.Errorf("error opening token store: %w", err)
	}

	gw, err := transport.New(tc, transport.WithLogger(c.Log))
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	mgr, err := session.New(gw, session.Config{
		APIKey: tc.APIKey,
		Store:  store,
		Logger: c.Log,
	})
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	return &Client{
		Config:     cfg,
		Gateway:    gw,
		Session:    mgr,
		Store:      store,
		closeStore: closeStore,
	}, nil
}

// Close releases the token store.
func (cl *Client) Close() error {
	return cl.closeStore()
}

// Records returns a data store of schemaless records for a table.
func (c *Command) Records(cl *Client, loc *resource.Locator) (*datastore.Store[resource.Map], error) {
	return datastore.New(datastore.Config[resource.Map]{
		Gateway: cl.Gateway,
		Locator: loc,
		Factory: resource.NewMap,
		Logger:  c.Log,
	})
}
