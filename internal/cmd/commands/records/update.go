package records

import (
	"flag"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
	"github.com/elvisfernandes/ng-dfservice/pkg/resource"
)

type UpdateCommand struct {
	*base.Command

	flagData string
}

func (c *UpdateCommand) Synopsis() string {
	return "Update fields of a record"
}

func (c *UpdateCommand) Help() string {
	return `Usage: dfctl update [options] SERVICE TABLE ID

  Changes the given fields of a record. Fields not present in -data are left
  as they are.` + c.Flags().Help()
}

func (c *UpdateCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("update", flag.ContinueOnError))
	c.ClientFlags(f)

	f.StringVar(&c.flagData, "data", "", "Fields to change as a JSON object")

	return f
}

func (c *UpdateCommand) Run(args []string) int {
	args, ok := c.ParseFlags(c.Flags(), args)
	if !ok {
		return 1
	}
	loc, id, ok := tableArgs(c.Command, args, true)
	if !ok {
		return 1
	}
	changes, err := parseData(c.flagData)
	if err != nil {
		c.UI.Error(err.Error())
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

	// Updates only apply to records the store already holds.
	out, err := store.RetrieveByID(ctx, id)
	if !report(c.Command, "get", out, err) {
		return 1
	}
	current, _ := store.LookupByID(id)

	rec := current.ToRemote()
	for k, v := range changes {
		rec[k] = v
	}
	rec["id"] = id

	out, err = store.Update(ctx, resource.Map(rec))
	if !report(c.Command, "update", out, err) {
		return 1
	}

	updated, _ := store.LookupByID(id)
	if err := c.Output(map[string]any(updated)); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}
