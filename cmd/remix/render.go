package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dudk/remix/log"
	"github.com/dudk/remix/render"
	"github.com/dudk/remix/source"
	"github.com/dudk/remix/wav"
)

type renderCommand struct {
	out      io.Writer
	config   string
	in       string
	output   string
	duration time.Duration
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Render the source into WAV file"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "path to configuration file")
	fs.StringVar(&cmd.in, "in", "", "source audio reference: path or URL (required)")
	fs.StringVar(&cmd.output, "out", "", "output WAV file (required)")
	fs.DurationVar(&cmd.duration, "duration", 0, "duration of the result, configured value if not set")
}

func (cmd *renderCommand) Validate() error {
	var message string
	if cmd.in == "" {
		message += "missing -in required flag\n"
	}
	if cmd.output == "" {
		message += "missing -out required flag\n"
	}
	if message != "" {
		return fmt.Errorf("%s", message)
	}
	return nil
}

func (cmd *renderCommand) Run() error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	c, err := loadConfig(cmd.config)
	if err != nil {
		return err
	}
	opts := renderOptions(c)
	if cmd.duration > 0 {
		opts = append(opts, render.WithDuration(cmd.duration))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	l := log.GetLogger()
	sb, err := render.New(source.New(source.WithLogger(l))).Render(ctx, cmd.in, opts...)
	if err != nil {
		return err
	}
	f, err := os.Create(cmd.output)
	if err != nil {
		return err
	}
	if err := wav.Write(f, sb); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.out, "Rendered %v of %s into %s\n", sb.Duration(), cmd.in, cmd.output)
	return nil
}
