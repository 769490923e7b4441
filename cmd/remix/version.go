package main

import (
	"flag"
	"fmt"
	"io"
)

// version is set at build time.
var version = "dev"

type versionCommand struct {
	out io.Writer
}

func (cmd *versionCommand) Name() string {
	return "version"
}

func (cmd *versionCommand) Help() string {
	return "Print the version"
}

func (cmd *versionCommand) Register(*flag.FlagSet) {}

func (cmd *versionCommand) Run() error {
	fmt.Fprintf(cmd.out, "remix %s\n", version)
	return nil
}
