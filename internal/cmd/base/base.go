// Package base holds the pieces shared by dfctl commands.
package base

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"
)

// Command is embedded by every dfctl command.
type Command struct {
	UI  cli.Ui
	Log hclog.Logger

	// Fs is where file-backed token stores live.
	Fs afero.Fs

	flagConfig string
	flagFormat string
}

// NewCommand returns a Command.
func NewCommand(ui cli.Ui, log hclog.Logger, fs afero.Fs) *Command {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Command{UI: ui, Log: log, Fs: fs}
}

// FlagSet wraps flag.FlagSet to render help text.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps f. Parse errors are returned instead of printed.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	f.SetOutput(io.Discard)
	f.Usage = func() {}
	return &FlagSet{FlagSet: f}
}

// Help renders the flags for a command's help output.
func (f *FlagSet) Help() string {
	var b strings.Builder
	b.WriteString("\n\nOptions:\n")
	f.VisitAll(func(fl *flag.Flag) {
		fmt.Fprintf(&b, "\n  -%s", fl.Name)
		if fl.DefValue != "" && fl.DefValue != "false" {
			fmt.Fprintf(&b, "=%s", fl.DefValue)
		}
		fmt.Fprintf(&b, "\n      %s\n", fl.Usage)
	})
	return strings.TrimRight(b.String(), "\n")
}

// ClientFlags adds the flags used by commands that talk to the API.
func (c *Command) ClientFlags(f *FlagSet) {
	f.StringVar(
		&c.flagConfig, "config", "",
		"[DF_CONFIG] Path to the configuration file (default ~/.dfctl/config.hcl)",
	)
	c.OutputFlags(f)
}

// OutputFlags adds the -format flag.
func (c *Command) OutputFlags(f *FlagSet) {
	f.StringVar(
		&c.flagFormat, "format", FormatTable,
		"Output format: table, json or yaml",
	)
}

// ParseFlags parses args and reports errors through the UI. It returns the
// remaining positional arguments and false if parsing failed.
func (c *Command) ParseFlags(f *FlagSet, args []string) ([]string, bool) {
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return nil, false
	}
	switch c.flagFormat {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		c.UI.Error(fmt.Sprintf("unknown output format %q", c.flagFormat))
		return nil, false
	}
	return f.Args(), true
}

// Context returns a context cancelled on interrupt.
func (c *Command) Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
