package auth

import (
	"flag"
	"time"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
	"github.com/elvisfernandes/ng-dfservice/pkg/database"
	"github.com/elvisfernandes/ng-dfservice/pkg/tokenstore"
)

type StatusCommand struct {
	*base.Command
}

func (c *StatusCommand) Synopsis() string {
	return "Show the endpoint and session state"
}

func (c *StatusCommand) Help() string {
	return `Usage: dfctl status [options]

  Shows the configured endpoint and whether a session is active. Claims in the
  session token are decoded but not verified.` + c.Flags().Help()
}

func (c *StatusCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("status", flag.ContinueOnError))
	c.ClientFlags(f)
	return f
}

func (c *StatusCommand) Run(args []string) int {
	if _, ok := c.ParseFlags(c.Flags(), args); !ok {
		return 1
	}

	client, err := c.Connect()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer client.Close()

	status := map[string]any{
		"endpoint":    client.Gateway.BaseURL(),
		"token_store": client.Config.TokenStore.Driver,
		"active":      client.Session.IsActive(),
	}

	if claims, err := client.Session.TokenClaims(); err == nil {
		if claims.Subject != "" {
			status["subject"] = claims.Subject
		}
		if !claims.ExpiresAt.IsZero() {
			status["expires_at"] = claims.ExpiresAt.Format(time.RFC3339)
			status["expired"] = claims.Expired(time.Now())
		}
	} else if client.Session.IsActive() {
		c.Log.Debug("session token is not a JWT", "error", err)
	}

	if sqlStore, ok := client.Store.(*tokenstore.SQL); ok {
		stats, err := database.GetPoolStats(sqlStore.DB())
		if err != nil {
			c.Log.Warn("error reading token store pool stats", "error", err)
		} else {
			status["token_store_pool"] = map[string]any{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
			}
		}
	}

	if err := c.Output(status); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}
