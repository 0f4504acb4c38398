package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/ardnew/pyparam/lang"
	"github.com/ardnew/pyparam/log"
)

// Extract scans an annotated entry file and writes its parameter tree as
// editable YAML.
type Extract struct {
	Template string   `arg:"" help:"Annotated entry source file"                         name:"template" type:"existingfile"`
	Roots    []string `       help:"Module search roots (default: template's directory)" short:"r"       type:"existingdir"`
	Output   string   `       help:"Write YAML to file instead of stdout"                short:"o"       type:"path"`
	NoCache  bool     `       help:"Disable the scan cache"`
}

// Run executes the extract command.
func (e *Extract) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	opts := []lang.Option{lang.WithRoots(e.Roots...)}

	if e.NoCache {
		opts = append(opts, lang.WithCache(nil))
	}

	tree, err := lang.Extract(ctx, e.Template, opts...)
	if err != nil {
		return ErrExtract.Wrap(err).
			With(slog.String("template", e.Template))
	}

	data, err := tree.MarshalYAML()
	if err != nil {
		return ErrExtract.Wrap(err).
			With(slog.String("template", e.Template))
	}

	params := 0

	_ = tree.Walk(func(_ []string, n lang.Node) error {
		if _, ok := n.(*lang.Parameter); ok {
			params++
		}

		return nil
	})

	log.Info("extracted parameters",
		slog.String("template", e.Template),
		slog.Int("count", params),
	)

	return writeOutput(e.Output, data)
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			return ErrWriteOutput.Wrap(err)
		}

		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ErrWriteOutput.Wrap(err).With(slog.String("path", path))
	}

	return nil
}
