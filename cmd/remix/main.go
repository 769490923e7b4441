package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

type command interface {
	Name() string
	Help() string
	Run() error
	Register(*flag.FlagSet)
}

type cli struct {
	args     []string
	out      io.Writer
	commands []command
}

func (c *cli) run() int {
	cmdName, args := parseArgs(c.args)
	if cmdName == "" {
		c.printUsage()
		return errorExitCode
	}

	for _, cmd := range c.commands {
		if cmd.Name() != cmdName {
			continue
		}
		flags := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		flags.SetOutput(c.out)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			return errorExitCode
		}
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(c.out, "Command failed: %v\n", err)
			return errorExitCode
		}
		return successExitCode
	}
	fmt.Fprintf(c.out, "Unknown command: %s\n\n", cmdName)
	c.printUsage()
	return errorExitCode
}

const (
	successExitCode = 0
	errorExitCode   = 1
)

func commands(in io.Reader, out io.Writer) []command {
	return []command{
		&renderCommand{out: out},
		&shellCommand{in: in, out: out},
		&versionCommand{out: out},
	}
}

func main() {
	c := cli{
		args:     os.Args,
		out:      os.Stdout,
		commands: commands(os.Stdin, os.Stdout),
	}
	os.Exit(c.run())
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func (c *cli) printUsage() {
	fmt.Fprintln(c.out, "Remix is an audio effects engine")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Usage: remix <command> [flags]")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Commands:")
	for _, cmd := range c.commands {
		fmt.Fprintf(c.out, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}
