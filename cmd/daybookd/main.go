package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lherron/daybook/internal/cli"
)

func main() {
	addr := flag.String("addr", "", "Listen address (default DAYBOOKD_ADDR or 127.0.0.1:7411)")
	unixPath := flag.String("unix", os.Getenv("DAYBOOKD_UNIX"), "Listen on unix socket path")
	token := flag.String("token", "", "Shared token for local auth (default DAYBOOKD_TOKEN)")
	dbPath := flag.String("db", "", "Database path override (defaults to config)")
	flag.Parse()

	opts := cli.DaemonOptions{
		Addr:   *addr,
		Unix:   *unixPath,
		Token:  *token,
		DBPath: *dbPath,
	}

	if err := cli.ServeDaemon(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
