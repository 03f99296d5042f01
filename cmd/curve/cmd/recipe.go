package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xob0t/curve/pkg/editor"
	"github.com/xob0t/curve/pkg/layer"
)

// step is one recipe operation: a name and an optional "=value" argument.
type step struct {
	Op  string
	Arg string
}

func (s step) String() string {
	if s.Arg == "" {
		return s.Op
	}
	return s.Op + "=" + s.Arg
}

// Operations a recipe step may name. The bool reports whether the argument
// is required.
var recipeOps = map[string]bool{
	"generate":          true,
	"enhance":           false,
	"upscale":           false,
	"remove-background": false,
	"expand":            false,
	"radius":            true,
	"rotate":            true,
	"zoom":              true,
	"crop":              true,
	"straighten":        true,
	"text":              true,
}

func parseStep(s string) (step, error) {
	op, arg, _ := strings.Cut(strings.TrimSpace(s), "=")
	st := step{Op: strings.ToLower(op), Arg: arg}
	required, ok := recipeOps[st.Op]
	if !ok {
		return step{}, fmt.Errorf("unknown operation %q", op)
	}
	if required && st.Arg == "" {
		return step{}, fmt.Errorf("operation %q needs a value (%s=...)", st.Op, st.Op)
	}
	return st, nil
}

func parseRecipe(ops []string) ([]step, error) {
	steps := make([]step, 0, len(ops))
	for _, s := range ops {
		st, err := parseStep(s)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

func (s step) float(def float64) (float64, error) {
	if s.Arg == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s.Arg, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", s.Op, s.Arg)
	}
	return v, nil
}

// apply runs the step against the session.
func (s step) apply(ctx context.Context, sess *editor.Session) error {
	switch s.Op {
	case "generate":
		return sess.Generate(ctx, s.Arg)
	case "enhance":
		return sess.Enhance(ctx)
	case "remove-background":
		return sess.RemoveBackground(ctx)
	case "upscale":
		f, err := s.float(2)
		if err != nil {
			return err
		}
		return sess.Upscale(ctx, f)
	case "expand":
		// expand=FACTOR or expand=FACTOR:prompt
		factor, prompt, _ := strings.Cut(s.Arg, ":")
		f, err := step{Op: s.Op, Arg: factor}.float(1.5)
		if err != nil {
			return err
		}
		return sess.Expand(ctx, f, prompt)
	case "radius":
		v, err := s.float(0)
		if err != nil {
			return err
		}
		return sess.SetRadius(v)
	case "rotate", "zoom":
		v, err := s.float(0)
		if err != nil {
			return err
		}
		t := sess.Document().Transform
		if s.Op == "zoom" {
			t.Scale = v
		} else {
			t.Rotation = v
		}
		return sess.SetTransform(t)
	case "crop":
		ratio, err := parseRatio(s.Arg)
		if err != nil {
			return err
		}
		return cropTo(sess, ratio, 0)
	case "straighten":
		deg, err := s.float(0)
		if err != nil {
			return err
		}
		return cropTo(sess, 0, deg)
	case "text":
		return addText(sess, s.Arg)
	}
	return fmt.Errorf("unknown operation %q", s.Op)
}

// parseRatio accepts "W:H", "W/H" or a plain number.
func parseRatio(s string) (float64, error) {
	for _, sep := range []string{":", "/"} {
		if a, b, ok := strings.Cut(s, sep); ok {
			w, err1 := strconv.ParseFloat(a, 64)
			h, err2 := strconv.ParseFloat(b, 64)
			if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
				return 0, fmt.Errorf("crop: invalid ratio %q", s)
			}
			return w / h, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("crop: invalid ratio %q", s)
	}
	return v, nil
}

func cropTo(sess *editor.Session, ratio, straighten float64) error {
	if err := sess.StartCrop(); err != nil {
		return err
	}
	if err := sess.SetAspect(ratio); err != nil {
		sess.CancelCrop()
		return err
	}
	if err := sess.SetStraighten(straighten); err != nil {
		sess.CancelCrop()
		return err
	}
	return sess.ApplyCrop()
}

func addText(sess *editor.Session, text string) error {
	l, err := sess.AddTextLayer()
	if err != nil {
		return err
	}
	return sess.UpdateLayer(l.ID(), layer.Patch{Text: &text})
}
