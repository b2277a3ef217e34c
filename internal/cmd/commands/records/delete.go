package records

import (
	"flag"
	"fmt"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
	"github.com/elvisfernandes/ng-dfservice/pkg/resource"
)

type DeleteCommand struct {
	*base.Command
}

func (c *DeleteCommand) Synopsis() string {
	return "Delete a record"
}

func (c *DeleteCommand) Help() string {
	return `Usage: dfctl delete [options] SERVICE TABLE ID

  Deletes the record with the given id.` + c.Flags().Help()
}

func (c *DeleteCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("delete", flag.ContinueOnError))
	c.ClientFlags(f)
	return f
}

func (c *DeleteCommand) Run(args []string) int {
	args, ok := c.ParseFlags(c.Flags(), args)
	if !ok {
		return 1
	}
	loc, id, ok := tableArgs(c.Command, args, true)
	if !ok {
		return 1
	}

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

	out, err = store.Delete(ctx, resource.Map{"id": id})
	if !report(c.Command, "delete", out, err) {
		return 1
	}

	c.UI.Info(fmt.Sprintf("Deleted record %d", id))
	return 0
}
