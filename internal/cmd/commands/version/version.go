package version

import (
	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
	"github.com/elvisfernandes/ng-dfservice/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the dfctl version"
}

func (c *Command) Help() string {
	return "Usage: dfctl version"
}

func (c *Command) Run(_ []string) int {
	c.UI.Output("dfctl " + version.FullVersion())
	return 0
}
