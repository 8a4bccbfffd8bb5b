package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/lchiayu/cardfeed/pkg/logging"
)

func main() {
	logger := logging.Setup(logging.FromEnv())

	args := os.Args[1:]
	name := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name = args[0]
		args = args[1:]
	}

	var err error
	switch name {
	case "run":
		err = runCardfeed(logger, args)
	case "setup":
		err = runSetup(logger, args)
	case "backfill":
		err = runBackfill(logger, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\nusage: cardfeed [run|setup|backfill] [flags]\n", name)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", name, "error", err)
		os.Exit(1)
	}
}
