package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd/base"
	"github.com/elvisfernandes/ng-dfservice/internal/cmd/commands/auth"
	"github.com/elvisfernandes/ng-dfservice/internal/cmd/commands/records"
	"github.com/elvisfernandes/ng-dfservice/internal/cmd/commands/version"
)

// commands builds the command table. Each factory returns a fresh command so
// flag state never leaks between runs.
func commands(log hclog.Logger, ui cli.Ui, fs afero.Fs) map[string]cli.CommandFactory {
	b := func() *base.Command {
		return base.NewCommand(ui, log, fs)
	}

	return map[string]cli.CommandFactory{
		"login": func() (cli.Command, error) {
			return &auth.LoginCommand{Command: b()}, nil
		},
		"logout": func() (cli.Command, error) {
			return &auth.LogoutCommand{Command: b()}, nil
		},
		"refresh": func() (cli.Command, error) {
			return &auth.RefreshCommand{Command: b()}, nil
		},
		"status": func() (cli.Command, error) {
			return &auth.StatusCommand{Command: b()}, nil
		},
		"list": func() (cli.Command, error) {
			return &records.ListCommand{Command: b()}, nil
		},
		"get": func() (cli.Command, error) {
			return &records.GetCommand{Command: b()}, nil
		},
		"create": func() (cli.Command, error) {
			return &records.CreateCommand{Command: b()}, nil
		},
		"update": func() (cli.Command, error) {
			return &records.UpdateCommand{Command: b()}, nil
		},
		"delete": func() (cli.Command, error) {
			return &records.DeleteCommand{Command: b()}, nil
		},
		"call": func() (cli.Command, error) {
			return &records.CallCommand{Command: b()}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b()}, nil
		},
	}
}
