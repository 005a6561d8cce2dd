// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vcompose/internal/config"
	xlog "github.com/ManuGH/vcompose/internal/log"
	"github.com/ManuGH/vcompose/internal/version"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	console    bool

	cfg config.AppConfig
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "vcompose",
		Short: "Compile video editing timelines into ffmpeg renders",
		Long: `vcompose turns a declarative editing timeline (tracks, clips, trims,
speed changes, crops, filters, transitions, text overlays and audio mixing)
into a single ffmpeg filter_complex invocation and runs it.

Timelines are YAML or JSON documents. Configuration is layered:
defaults, then --config, then --env-file, then VCOMPOSE_* variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file")
	pf.StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	pf.BoolVar(&opts.console, "console-log", false, "human readable logs")

	root.AddCommand(
		newCompileCmd(opts),
		newRenderCmd(opts),
		newPreviewCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, cmd.UsageString())
	})
	return root
}

// execute runs root and prints the error once.
func execute(root *cobra.Command) error {
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "vcompose:", err)
	}
	return err
}

func (o *rootOptions) load() error {
	// Logs go to stderr so stdout stays usable for command output.
	xlog.Reset()
	xlog.Configure(xlog.Config{Level: "warn", Output: os.Stderr, Console: o.console, Version: version.Version})

	cfg, err := config.NewLoader(o.configPath, o.envFile, version.Version).Load()
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.console {
		cfg.Log.Console = true
	}

	xlog.Reset()
	xlog.Configure(xlog.Config{
		Level:   cfg.Log.Level,
		Output:  os.Stderr,
		Console: cfg.Log.Console,
		Version: cfg.Version,
	})
	o.cfg = cfg
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vcompose %s\n", version.String())
		},
	}
}
