package auth

import (
	"flag"
	"fmt"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
)

type LogoutCommand struct {
	*base.Command
}

func (c *LogoutCommand) Synopsis() string {
	return "Close the session"
}

func (c *LogoutCommand) Help() string {
	return `Usage: dfctl logout [options]

  Closes the current session on the server and clears the stored token.` + c.Flags().Help()
}

func (c *LogoutCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("logout", flag.ContinueOnError))
	c.ClientFlags(f)
	return f
}

func (c *LogoutCommand) Run(args []string) int {
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
		c.UI.Info("Not logged in")
		return 0
	}

	ctx, cancel := c.Context()
	defer cancel()

	if _, err := client.Session.Logout(ctx); err != nil {
		c.UI.Error(fmt.Sprintf("logout failed: %v", err))
		return 1
	}

	c.UI.Info("Logged out")
	return 0
}
