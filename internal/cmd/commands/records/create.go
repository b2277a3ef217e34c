package records

import (
	"flag"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
)

type CreateCommand struct {
	*base.Command

	flagData string
}

func (c *CreateCommand) Synopsis() string {
	return "Create a record"
}

func (c *CreateCommand) Help() string {
	return `Usage: dfctl create [options] SERVICE TABLE

  Creates a record from a JSON object and prints the stored version.

  Example:

      $ dfctl create -data '{"name":"Ada"}' db contact` + c.Flags().Help()
}

func (c *CreateCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("create", flag.ContinueOnError))
	c.ClientFlags(f)

	f.StringVar(&c.flagData, "data", "", "Record fields as a JSON object")

	return f
}

func (c *CreateCommand) Run(args []string) int {
	args, ok := c.ParseFlags(c.Flags(), args)
	if !ok {
		return 1
	}
	loc, _, ok := tableArgs(c.Command, args, false)
	if !ok {
		return 1
	}
	rec, err := parseData(c.flagData)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	delete(rec, "id")

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

	out, err := store.Create(ctx, rec)
	if !report(c.Command, "create", out, err) {
		return 1
	}

	// The store starts empty, so the created record is the only one.
	snap := store.Snapshot()
	if err := c.Output(map[string]any(snap.At(snap.Len() - 1))); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}
