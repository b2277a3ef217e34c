package auth

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
	"github.com/elvisfernandes/ng-dfservice/pkg/session"
)

type LoginCommand struct {
	*base.Command

	flagEmail    string
	flagPassword string
}

func (c *LoginCommand) Synopsis() string {
	return "Open a session and store its token"
}

func (c *LoginCommand) Help() string {
	return `Usage: dfctl login [options]

  Logs in with an email and password. The session token is persisted in the
  configured token store and sent with every later command. The password is
  prompted for when neither -password nor DF_PASSWORD is set.` + c.Flags().Help()
}

func (c *LoginCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("login", flag.ContinueOnError))
	c.ClientFlags(f)

	f.StringVar(
		&c.flagEmail, "email", "",
		"[DF_EMAIL] Email address to log in with",
	)
	f.StringVar(
		&c.flagPassword, "password", "",
		"[DF_PASSWORD] Password",
	)

	return f
}

func (c *LoginCommand) Run(args []string) int {
	if _, ok := c.ParseFlags(c.Flags(), args); !ok {
		return 1
	}

	email := c.flagEmail
	if val, ok := os.LookupEnv("DF_EMAIL"); ok && email == "" {
		email = val
	}
	password := c.flagPassword
	if val, ok := os.LookupEnv("DF_PASSWORD"); ok && password == "" {
		password = val
	}
	if email == "" {
		c.UI.Error("email is required (-email or DF_EMAIL)")
		return 1
	}
	if password == "" {
		var err error
		password, err = c.UI.AskSecret("Password:")
		if err != nil {
			c.UI.Error(fmt.Sprintf("error reading password: %v", err))
			return 1
		}
	}

	client, err := c.Connect()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer client.Close()

	ctx, cancel := c.Context()
	defer cancel()

	events, unsubscribe := client.Session.Subscribe()
	defer unsubscribe()

	if _, err := client.Session.Login(ctx, session.Credentials{Email: email, Password: password}); err != nil {
		c.UI.Error(fmt.Sprintf("login failed: %v", err))
		return 1
	}

	select {
	case ev := <-events:
		if ev != session.LoginOK {
			c.UI.Error(fmt.Sprintf("login failed: %s", ev))
			return 1
		}
	default:
		c.UI.Error("login failed: server did not open a session")
		return 1
	}

	c.UI.Info(fmt.Sprintf("Logged in as %s", email))
	if claims, err := client.Session.TokenClaims(); err == nil && !claims.ExpiresAt.IsZero() {
		c.UI.Info(fmt.Sprintf("Session expires %s", claims.ExpiresAt.Format(time.RFC3339)))
	}
	return 0
}
