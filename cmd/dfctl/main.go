package main

import (
	"os"

	"github.com/elvisfernandes/ng-dfservice/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
