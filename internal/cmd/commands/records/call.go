package records

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
	"github.com/elvisfernandes/ng-dfservice/pkg/resource"
	"github.com/elvisfernandes/ng-dfservice/pkg/transport"
)

type CallCommand struct {
	*base.Command

	flagKind   string
	flagMethod string
	flagData   string
}

func (c *CallCommand) Synopsis() string {
	return "Call a stored procedure or function"
}

func (c *CallCommand) Help() string {
	return `Usage: dfctl call [options] SERVICE NAME

  Calls SERVICE/_proc/NAME (or _func with -kind=func) and prints the raw
  response. -data is sent as the request body.` + c.Flags().Help()
}

func (c *CallCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("call", flag.ContinueOnError))
	c.ClientFlags(f)

	f.StringVar(&c.flagKind, "kind", "proc", "Resource kind: proc or func")
	f.StringVar(&c.flagMethod, "method", http.MethodPost, "HTTP method: GET, POST or PUT")
	f.StringVar(&c.flagData, "data", "", "Request body as JSON")

	return f
}

func (c *CallCommand) Run(args []string) int {
	args, ok := c.ParseFlags(c.Flags(), args)
	if !ok {
		return 1
	}
	if len(args) != 2 {
		c.UI.Error(fmt.Sprintf("expected arguments SERVICE NAME, got %d argument(s)", len(args)))
		return 1
	}

	var kind string
	switch c.flagKind {
	case "proc":
		kind = resource.KindProcedure
	case "func":
		kind = resource.KindFunction
	default:
		c.UI.Error(fmt.Sprintf("unknown kind %q", c.flagKind))
		return 1
	}
	loc := resource.NewLocator(args[0], kind, args[1], 0)

	if c.flagData != "" {
		var body any
		if err := json.Unmarshal([]byte(c.flagData), &body); err != nil {
			c.UI.Error(fmt.Sprintf("invalid -data: %v", err))
			return 1
		}
		loc.Body = body
	}

	client, err := c.Connect()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer client.Close()

	ctx, cancel := c.Context()
	defer cancel()

	var callErr error
	switch c.flagMethod {
	case http.MethodGet:
		resp, err := client.Gateway.Fetch(ctx, loc)
		callErr = c.print(resp, err)
	case http.MethodPost:
		resp, err := client.Gateway.Create(ctx, loc, nil)
		callErr = c.print(resp, err)
	case http.MethodPut:
		resp, err := client.Gateway.Overwrite(ctx, loc)
		callErr = c.print(resp, err)
	default:
		callErr = fmt.Errorf("unsupported method %q", c.flagMethod)
	}
	if callErr != nil {
		c.UI.Error(callErr.Error())
		return 1
	}
	return 0
}

func (c *CallCommand) print(resp *transport.Response, err error) error {
	if err != nil {
		return fmt.Errorf("call failed: %w", err)
	}
	var body any
	if err := resp.JSON(&body); err != nil {
		return err
	}
	return c.Output(body)
}
