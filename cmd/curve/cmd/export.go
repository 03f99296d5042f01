package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xob0t/curve/pkg/codec"
	"github.com/xob0t/curve/pkg/editor"
	"github.com/xob0t/curve/pkg/notify"
	"github.com/xob0t/curve/pkg/project"
)

var (
	exportOps     []string
	exportOutput  string
	exportFormat  string
	exportQuality string
	exportProject string
)

var exportCmd = &cobra.Command{
	Use:   "export [image|project.curve]",
	Short: "Apply a recipe of operations and write the flattened image",
	Long: `Open an image (or a .curve project), apply each --op in order and export
the result. Without an input, the first op must be generate.

Operations:
  generate=PROMPT        replace the image with a generated one
  enhance                improve colour and sharpness
  upscale[=FACTOR]       enlarge, default 2
  remove-background      cut out the subject
  expand[=FACTOR[:PROMPT]]  outpaint onto a larger canvas, default 1.5
  radius=PCT             round the corners, 0-100
  rotate=DEG, zoom=SCALE place the image on the canvas
  crop=W:H               crop to an aspect ratio around the centre
  straighten=DEG         rotate within the frame and crop
  text=TEXT              add a text layer

Examples:
  curve export photo.jpg --op enhance --op upscale=2 -o big.png
  curve export --op "generate=a mountain lake at dawn" --format jpeg
  curve export photo.jpg --op crop=1:1 --op radius=20 --project edit.curve`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringArrayVar(&exportOps, "op", nil, "operation to apply (repeatable)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"output file (default curve-export.<ext> in the configured export dir)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "png or jpeg (default from config or -o extension)")
	exportCmd.Flags().StringVarP(&exportQuality, "quality", "q", "", "low, medium or high (jpeg only)")
	exportCmd.Flags().StringVar(&exportProject, "project", "", "also save the edited document as a .curve bundle")
}

func runExport(cmd *cobra.Command, args []string) error {
	steps, err := parseRecipe(exportOps)
	if err != nil {
		return err
	}
	if len(args) == 0 && (len(steps) == 0 || steps[0].Op != "generate") {
		return fmt.Errorf("an input file is required unless the first --op is generate")
	}

	format, err := codec.ParseFormat(pick(exportFormat, formatFromPath(exportOutput), cfg.Export.Format))
	if err != nil {
		return err
	}
	quality, err := codec.ParseQuality(pick(exportQuality, cfg.Export.Quality))
	if err != nil {
		return err
	}

	sess, err := editor.New(editor.Options{Config: cfg, Notifier: notify.Log{}})
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 1 {
		if err := open(ctx, sess, args[0]); err != nil {
			return err
		}
	}
	for _, st := range steps {
		if verbose {
			fmt.Printf("Applying: %s\n", st)
		}
		if err := st.apply(ctx, sess); err != nil {
			return fmt.Errorf("%s: %w", st, err)
		}
	}

	data, name, err := sess.Export(ctx, format, quality)
	if err != nil {
		return err
	}
	out := exportOutput
	if out == "" {
		out = filepath.Join(cfg.Export.Dir, name)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("Done: %s\n", out)

	if exportProject != "" {
		if err := project.SaveFile(exportProject, sess.Document()); err != nil {
			return err
		}
		fmt.Printf("Saved project: %s\n", exportProject)
	}
	return nil
}

// open loads path as a project bundle or an image.
func open(ctx context.Context, sess *editor.Session, path string) error {
	if strings.EqualFold(filepath.Ext(path), project.Ext) {
		doc, warnings, err := project.LoadFile(path)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
		}
		return sess.Load(ctx, doc)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return sess.Import(ctx, data)
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	}
	return ""
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
