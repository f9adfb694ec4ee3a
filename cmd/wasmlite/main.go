// Command wasmlite runs WebAssembly binaries against a WASI host.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"

	"github.com/wasmlite/wasmlite"
	"github.com/wasmlite/wasmlite/wasi"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:   "wasmlite",
		Usage:  "run WebAssembly binaries against a WASI host",
		Before: setup,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "instantiate a module and invoke its entry function",
				ArgsUsage: "FILE [args...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "entry",
						Value: "_start",
						Usage: "exported function to invoke",
					},
				},
				Action: run,
			},
		},
	}
}

func setup(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(tint.NewHandler(c.App.ErrWriter, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))

	return nil
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing path to wasm file")
	}

	path := c.Args().First()
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	guestArgs := append([]string{filepath.Base(path)}, c.Args().Tail()...)
	argsOpt, err := wasi.Args(guestArgs)
	if err != nil {
		return err
	}
	environOpt, err := wasi.Environ(os.Environ())
	if err != nil {
		return err
	}

	rt, err := wasmlite.New(
		argsOpt,
		environOpt,
		wasi.Stdin(os.Stdin),
		wasi.Stdout(c.App.Writer),
		wasi.Stderr(c.App.ErrWriter),
	)
	if err != nil {
		return err
	}

	const moduleName = "main"
	if err := rt.Instantiate(source, moduleName); err != nil {
		return err
	}
	slog.Debug("module instantiated", "path", path, "size", len(source))

	entry := c.String("entry")
	results, err := rt.Call(moduleName, entry)

	var exitErr *wasi.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code != 0 {
			return cli.Exit("", int(exitErr.Code))
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("call %s: %w", entry, err)
	}

	// A WASI command's entry conventionally returns an exit code when it
	// returns a single i32.
	if len(results) == 1 && uint32(results[0]) != 0 {
		return cli.Exit("", int(uint32(results[0])))
	}
	return nil
}
