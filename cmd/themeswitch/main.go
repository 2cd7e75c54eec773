package main

import (
	"context"
	"os"

	"github.com/matthewsawatzky/themeswitch/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	v := cli.VersionInfo{Version: version, Commit: commit, Date: date}
	if err := cli.Execute(context.Background(), v, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
