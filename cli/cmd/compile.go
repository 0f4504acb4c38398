package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/ardnew/pyparam/lang"
	"github.com/ardnew/pyparam/log"
)

// Compile emits the entry source with every marker replaced by its
// configured value.
type Compile struct {
	Template string   `arg:"" help:"Annotated entry source file"                         name:"template" type:"existingfile"`
	Roots    []string `       help:"Module search roots (default: template's directory)" short:"r"       type:"existingdir"`
	Config   string   `       help:"YAML configuration with parameter values"            short:"c"       type:"existingfile"`
	Set      []string `       help:"Override one parameter as scope/path=value"          short:"s"`
	Output   string   `       help:"Write compiled source to file instead of stdout"     short:"o"       type:"path"`

	ValidateVersion bool `help:"Require the configuration to match the template's current shape"`
	IgnoreMissing   bool `help:"Skip configured values that address no parameter"`
}

// Run executes the compile command.
func (c *Compile) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	overrides, digest, err := c.overrides()
	if err != nil {
		return err
	}

	opts := []lang.Option{
		lang.WithRoots(c.Roots...),
		lang.WithIgnoreMissing(c.IgnoreMissing),
	}

	if c.ValidateVersion {
		if digest == "" {
			return ErrNoVersionHeader.With(slog.String("config", c.Config))
		}

		opts = append(opts, lang.WithValidateVersion(digest))
	}

	out, err := lang.Compile(ctx, c.Template, overrides, opts...)
	if err != nil {
		return ErrCompile.Wrap(err).
			With(slog.String("template", c.Template))
	}

	log.Info("compiled template",
		slog.String("template", c.Template),
		slog.Int("bytes", len(out)),
	)

	return writeOutput(c.Output, []byte(out))
}

// overrides merges the configuration file with any --set assignments, the
// latter winning.
func (c *Compile) overrides() (lang.Overrides, string, error) {
	overrides := lang.Overrides{}
	digest := ""

	if c.Config != "" {
		data, err := os.ReadFile(c.Config)
		if err != nil {
			return nil, "", ErrReadConfig.Wrap(err).
				With(slog.String("config", c.Config))
		}

		overrides, digest, err = lang.ParseOverrides(data)
		if err != nil {
			return nil, "", ErrReadConfig.Wrap(err).
				With(slog.String("config", c.Config))
		}
	}

	for _, set := range c.Set {
		o, err := lang.ParseSetFlag(set)
		if err != nil {
			return nil, "", ErrReadConfig.Wrap(err).
				With(slog.String("set", set))
		}

		if err := overrides.Merge(o); err != nil {
			return nil, "", ErrReadConfig.Wrap(err).
				With(slog.String("set", set))
		}
	}

	return overrides, digest, nil
}
