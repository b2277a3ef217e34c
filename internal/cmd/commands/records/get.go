package records

import (
	"flag"
	"fmt"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
)

type GetCommand struct {
	*base.Command

	flagFields  string
	flagRelated string
}

func (c *GetCommand) Synopsis() string {
	return "Show a single record"
}

func (c *GetCommand) Help() string {
	return `Usage: dfctl get [options] SERVICE TABLE ID

  Retrieves the record with the given id.` + c.Flags().Help()
}

func (c *GetCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("get", flag.ContinueOnError))
	c.ClientFlags(f)

	f.StringVar(&c.flagFields, "fields", "", "Comma-separated fields to return")
	f.StringVar(&c.flagRelated, "related", "", "Comma-separated relations to include")

	return f
}

func (c *GetCommand) Run(args []string) int {
	args, ok := c.ParseFlags(c.Flags(), args)
	if !ok {
		return 1
	}
	loc, id, ok := tableArgs(c.Command, args, true)
	if !ok {
		return 1
	}
	loc.Params.Fields = c.flagFields
	loc.Params.Related = c.flagRelated

	client, err := c.Connect()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer client.Close()

	store, err := c.Records(client, loc)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	ctx, cancel := c.Context()
	defer cancel()

	out, err := store.RetrieveByID(ctx, id)
	if !report(c.Command, "get", out, err) {
		return 1
	}

	rec, ok := store.LookupByID(id)
	if !ok {
		c.UI.Error(fmt.Sprintf("record %d not found", id))
		return 1
	}
	if err := c.Output(map[string]any(rec)); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}
