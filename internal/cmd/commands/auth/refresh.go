package auth

import (
	"flag"
	"fmt"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
	"github.com/elvisfernandes/ng-dfservice/pkg/session"
)

type RefreshCommand struct {
	*base.Command
}

func (c *RefreshCommand) Synopsis() string {
	return "Extend the current session"
}

func (c *RefreshCommand) Help() string {
	return `Usage: dfctl refresh [options]

  Asks the server to refresh the current session. When the server returns a
  new token it replaces the stored one.` + c.Flags().Help()
}

func (c *RefreshCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("refresh", flag.ContinueOnError))
	c.ClientFlags(f)
	return f
}

func (c *RefreshCommand) Run(args []string) int {
	if _, ok := c.ParseFlags(c.Flags(), args); !ok {
		return 1
	}

	client, err := c.Connect()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer client.Close()

	if !client.Session.IsActive() {
		c.UI.Error(session.ErrNoSession.Error())
		return 1
	}

	ctx, cancel := c.Context()
	defer cancel()

	resp, err := client.Session.Refresh(ctx)
	if err != nil {
		c.UI.Error(fmt.Sprintf("refresh failed: %v", err))
		return 1
	}

	var body struct {
		SessionToken string `json:"session_token"`
	}
	if err := resp.JSON(&body); err == nil && body.SessionToken != "" {
		if err := client.Session.AdoptToken(body.SessionToken); err != nil {
			c.UI.Error(err.Error())
			return 1
		}
	}

	c.UI.Info("Session refreshed")
	return 0
}
