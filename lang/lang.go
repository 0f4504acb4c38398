package lang

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ardnew/pyparam/log"
)

// Option configures [Extract] and [Compile].
type Option func(*config)

type config struct {
	fsys          afero.Fs
	roots         []string
	logger        log.Logger
	cache         *ScanCache
	expectDigest  string
	ignoreMissing bool
}

func applyDefaults(c *config, entry string) {
	c.fsys = afero.NewOsFs()
	c.roots = []string{filepath.Dir(entry)}
	c.logger = log.Default()
	c.cache = NewScanCache()
}

func applyOptions(c *config, opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
}

// WithFS sets the filesystem sources are read from.
func WithFS(fsys afero.Fs) Option {
	return func(c *config) { c.fsys = fsys }
}

// WithRoots sets the search roots for resolving dotted module references.
// The default is the directory containing the entry file.
func WithRoots(roots ...string) Option {
	return func(c *config) {
		if len(roots) > 0 {
			c.roots = roots
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithCache sets the scan cache, letting callers share scans across
// repeated extractions. Passing nil disables caching.
func WithCache(cache *ScanCache) Option {
	return func(c *config) { c.cache = cache }
}

// WithValidateVersion requires the extracted tree's shape digest to equal
// digest, as recorded by [ConfigTree.MarshalYAML] when the configuration
// was written. An empty digest disables the check.
func WithValidateVersion(digest string) Option {
	return func(c *config) { c.expectDigest = digest }
}

// WithIgnoreMissing skips overrides that address no extracted parameter
// instead of failing compilation.
func WithIgnoreMissing(ignore bool) Option {
	return func(c *config) { c.ignoreMissing = ignore }
}

// Extract scans entry and everything it includes, returning the parameter
// tree.
func Extract(ctx context.Context, entry string, opts ...Option) (*ConfigTree, error) {
	tree, _, _, err := extract(ctx, entry, opts...)

	return tree, err
}

// Compile re-emits entry with overrides applied and every marker replaced
// by plain Python. The returned text contains no marker vocabulary.
func Compile(
	ctx context.Context,
	entry string,
	overrides Overrides,
	opts ...Option,
) (string, error) {
	tree, u, cfg, err := extract(ctx, entry, opts...)
	if err != nil {
		return "", err
	}

	if cfg.expectDigest != "" && cfg.expectDigest != tree.Digest() {
		return "", ErrVersionMismatch.With(
			slog.String("expected", cfg.expectDigest),
			slog.String("extracted", tree.Digest()),
		)
	}

	effective := tree.Clone()

	if len(overrides) > 0 {
		if err := effective.Apply(overrides, cfg.ignoreMissing); err != nil {
			return "", err
		}
	}

	out, err := compileUnit(u, effective, cfg.logger)
	if err != nil {
		return "", err
	}

	cfg.logger.Info("compiled",
		slog.String("entry", entry),
		slog.Int("bytes", len(out)),
	)

	return out, nil
}

func extract(
	ctx context.Context,
	entry string,
	opts ...Option,
) (*ConfigTree, *unit, *config, error) {
	var cfg config

	applyDefaults(&cfg, entry)
	applyOptions(&cfg, opts...)

	r := &resolver{
		ctx:   ctx,
		fsys:  cfg.fsys,
		roots: cfg.roots,
		cache: cfg.cache,
		log:   cfg.logger,
	}

	tree, u, err := r.resolveEntry(entry)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg.logger.Debug("extracted",
		slog.String("entry", entry),
		slog.String("digest", tree.Digest()),
	)

	return tree, u, &cfg, nil
}
