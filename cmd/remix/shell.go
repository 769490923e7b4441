package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/dudk/remix"
	"github.com/dudk/remix/dispatch"
)

type shellCommand struct {
	in     io.Reader
	out    io.Writer
	config string
	source string
	device string
}

func (cmd *shellCommand) Name() string {
	return "shell"
}

func (cmd *shellCommand) Help() string {
	return "Control the engine with commands and free text"
}

func (cmd *shellCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "path to configuration file")
	fs.StringVar(&cmd.source, "source", "", "source audio reference, configured value if not set")
	fs.StringVar(&cmd.device, "device", "", "output device: portaudio, oto or discard")
}

func (cmd *shellCommand) Run() error {
	c, err := loadConfig(cmd.config)
	if err != nil {
		return err
	}
	if cmd.source != "" {
		c.Source.Default = cmd.source
	}
	if cmd.device != "" {
		c.Playback.Device = cmd.device
		if err := c.Playback.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	e, err := newEngine(ctx, c, func(s dispatch.Status) {
		fmt.Fprintln(cmd.out, s.Text)
	})
	if err != nil {
		return err
	}
	defer e.close()

	fmt.Fprintln(cmd.out, "Type /<command> or just say what to do. /quit to exit.")
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := cmd.handle(ctx, e.dispatcher, line); quit {
				return nil
			}
		}
	}
}

// handle dispatches single line. True is returned if shell should exit.
func (cmd *shellCommand) handle(ctx context.Context, d *dispatch.Dispatcher, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "/quit", "/exit":
		return true
	}
	if !strings.HasPrefix(line, "/") {
		d.DispatchText(ctx, line)
		return false
	}
	c, err := parseCommand(line)
	if err != nil {
		fmt.Fprintf(cmd.out, "Error: %v\n", err)
		return false
	}
	d.Dispatch(ctx, c)
	return false
}

// parseCommand parses "/verb [argument]" line. Argument is a reference for
// SetSource and numeric param for other verbs.
func parseCommand(line string) (remix.Command, error) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return remix.Command{}, fmt.Errorf("empty command")
	}
	v, err := remix.ParseVerb(fields[0])
	if err != nil {
		return remix.Command{}, err
	}
	c := v.Cmd()
	if len(fields) == 1 {
		return c, nil
	}
	arg := strings.Join(fields[1:], " ")
	if v == remix.SetSource {
		c.Ref = arg
		return c, nil
	}
	param, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return remix.Command{}, fmt.Errorf("invalid param of %v: %q", v, arg)
	}
	return c.WithParam(param), nil
}
