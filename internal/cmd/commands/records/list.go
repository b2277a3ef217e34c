package records

import (
	"flag"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
	"github.com/elvisfernandes/ng-dfservice/pkg/resource"
)

type ListCommand struct {
	*base.Command

	params resource.QueryParams
}

func (c *ListCommand) Synopsis() string {
	return "List records of a table"
}

func (c *ListCommand) Help() string {
	return `Usage: dfctl list [options] SERVICE TABLE

  Retrieves records from SERVICE/_table/TABLE.` + c.Flags().Help()
}

func (c *ListCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("list", flag.ContinueOnError))
	c.ClientFlags(f)

	c.params = resource.DefaultQueryParams()
	f.StringVar(&c.params.Fields, "fields", "", "Comma-separated fields to return")
	f.StringVar(&c.params.Related, "related", "", "Comma-separated relations to include")
	f.StringVar(&c.params.Filter, "filter", "", "SQL-like filter, e.g. \"name like 'A%'\"")
	f.IntVar(&c.params.Limit, "limit", resource.DefaultLimit, "Maximum number of records")
	f.IntVar(&c.params.Offset, "offset", 0, "Number of records to skip")
	f.StringVar(&c.params.Order, "order", "", "Sort order, e.g. \"id desc\"")
	f.StringVar(&c.params.Group, "group", "", "Fields to group by")
	f.StringVar(&c.params.IDs, "ids", "", "Comma-separated record ids")
	f.BoolVar(&c.params.IncludeCount, "include-count", false, "Ask the server to include a record count")

	return f
}

func (c *ListCommand) Run(args []string) int {
	args, ok := c.ParseFlags(c.Flags(), args)
	if !ok {
		return 1
	}
	loc, _, ok := tableArgs(c.Command, args, false)
	if !ok {
		return 1
	}
	loc.Params = c.params

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

	out, err := store.LoadInitialData(ctx)
	if !report(c.Command, "list", out, err) {
		return 1
	}

	if err := c.Output(rows(store.Snapshot().Records())); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}
