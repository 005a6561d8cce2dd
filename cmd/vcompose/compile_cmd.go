// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ManuGH/vcompose/internal/compiler"
	"github.com/ManuGH/vcompose/internal/timeline"
)

type compileOptions struct {
	export  bool
	out     string
	quality string
	format  string
	noProbe bool
	asJSON  bool
}

func newCompileCmd(root *rootOptions) *cobra.Command {
	o := &compileOptions{}
	cmd := &cobra.Command{
		Use:   "compile <timeline>",
		Short: "Print the ffmpeg command for a timeline",
		Long: `Compile a timeline document into the ffmpeg invocation that renders it,
without running it. Preview settings are used unless --export is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			tl, err := timeline.LoadFile(args[0])
			if err != nil {
				return err
			}
			prober := newProber(cfg)
			if o.noProbe {
				prober = nil
			}
			comp, err := compilerFor(cmd.Context(), newCompiler(cfg), prober, tl)
			if err != nil {
				return err
			}

			var c *compiler.Command
			if o.export {
				out := o.out
				if out == "" {
					out = filepath.Join(cfg.OutputDir, "export")
				}
				opts, err := exportOptions(cfg, o.quality, o.format, out)
				if err != nil {
					return err
				}
				if filepath.Ext(opts.Output) == "" {
					opts.Output += opts.Format.Extension()
				}
				c, err = comp.Export(tl, opts)
				if err != nil {
					return err
				}
			} else {
				opts := cfg.PreviewOptions()
				opts.Output = o.out
				if opts.Output == "" {
					opts.Output = filepath.Join(cfg.OutputDir, "preview.mp4")
				}
				c, err = comp.Preview(tl, opts)
				if err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if o.asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Bin                string   `json:"bin"`
					Args               []string `json:"args"`
					Output             string   `json:"output"`
					HasAudio           bool     `json:"has_audio"`
					ExpectedDurationMs int64    `json:"expected_duration_ms"`
				}{cfg.FFmpeg.Bin, c.Args, c.Output, c.HasAudio, c.ExpectedDuration.Milliseconds()})
			}
			_, err = fmt.Fprintln(w, c.Line(cfg.FFmpeg.Bin))
			return err
		},
	}
	f := cmd.Flags()
	f.BoolVar(&o.export, "export", false, "compile a full-quality export instead of a preview")
	f.StringVarP(&o.out, "out", "o", "", "output file")
	f.StringVar(&o.quality, "quality", "", "export quality preset (original, 1080p, 720p, 480p)")
	f.StringVar(&o.format, "format", "", "export container (mp4, mov, mkv)")
	f.BoolVar(&o.noProbe, "no-probe", false, "skip ffprobe of the sources")
	f.BoolVar(&o.asJSON, "json", false, "print the command as JSON")
	return cmd
}
