/*
	Package generator sequences the packaging workflows: an update package
	built from the files changed between two dates, and a full installation
	package built from the project layout.

	Every workflow validates its input before touching the filesystem, and
	tears down its staging state on the way out whether or not it succeeded.
	The error a workflow returns is the one that stopped it; cleanup
	failures are only logged.
*/
package generator

import (
	"context"
	"io"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	. "github.com/warpfork/go-errcat"

	"github.com/Maheshkerai/update-generator"
	"github.com/Maheshkerai/update-generator/bundle"
	"github.com/Maheshkerai/update-generator/config"
	"github.com/Maheshkerai/update-generator/lock"
	"github.com/Maheshkerai/update-generator/metrics"
	"github.com/Maheshkerai/update-generator/revision"
	"github.com/Maheshkerai/update-generator/sanitize"
	"github.com/Maheshkerai/update-generator/stage"
)

type Generator struct {
	cfg         config.Config
	projectRoot string
	outputDir   string

	provider revision.Provider
	locker   lock.Locker
	metrics  metrics.Recorder
	builder  *bundle.Builder
	log      *log.Logger
	rand     io.Reader
	newID    func() string
}

type Option func(*Generator)

// WithProvider replaces the revision backend named in the config.
func WithProvider(p revision.Provider) Option { return func(g *Generator) { g.provider = p } }

// WithLocker replaces the lock backend named in the config.
func WithLocker(l lock.Locker) Option { return func(g *Generator) { g.locker = l } }

func WithLogger(l *log.Logger) Option { return func(g *Generator) { g.log = l } }
func WithMetrics(m metrics.Recorder) Option { return func(g *Generator) { g.metrics = m } }
func WithRand(r io.Reader) Option { return func(g *Generator) { g.rand = r } }
func WithIDs(newID func() string) Option { return func(g *Generator) { g.newID = newID } }

/*
	New builds a Generator for one project from its configuration.

	The revision backend, lock, and metrics come from the config unless
	options replace them.  A redis lock is connected (and pinged) here.
*/
func New(ctx context.Context, cfg config.Config, opts ...Option) (_ *Generator, err error) {
	defer RequireErrorHasCategory(&err, updategen.ErrorCategory(""))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		cfg:     cfg,
		metrics: metrics.Noop{},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = log.New(io.Discard)
	}
	if g.projectRoot, err = cfg.ProjectPath(); err != nil {
		return nil, err
	}
	if g.outputDir, err = cfg.OutputPath(); err != nil {
		return nil, err
	}
	g.builder = &bundle.Builder{Log: g.log}
	if g.provider == nil {
		switch cfg.RevisionBackend {
		case config.Backend_Native:
			g.provider = &revision.NativeProvider{Root: g.projectRoot, Timeout: cfg.GitTimeoutDuration(), Log: g.log}
		default:
			g.provider = &revision.ExecProvider{
				Root:    g.projectRoot,
				Timeout: cfg.GitTimeoutDuration(),
				Runner:  revision.GitRunner{Binary: cfg.GitBinary},
				Log:     g.log,
			}
		}
	}
	if g.locker == nil {
		g.locker, err = lock.New(ctx, lock.Options{
			Mode:     lock.Mode(cfg.Lock.Mode),
			RedisURL: cfg.Lock.RedisURL,
			TTL:      cfg.LockTTL(),
		})
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// OutputDir is the absolute directory artifacts are written to.
func (g *Generator) OutputDir() string { return g.outputDir }

var versionPattern = regexp.MustCompile(`^[0-9.]+$`)

// ValidateVersion accepts digits and dots only: "1.0.0" and "2.10" pass,
// "1.0.0-beta" does not.
func ValidateVersion(v string) error {
	if !versionPattern.MatchString(v) {
		return Errorf(updategen.ErrValidation, "invalid version %q: only digits and dots are allowed", v)
	}
	return nil
}

func (g *Generator) copier(alwaysInclude []string) *stage.Copier {
	c := &stage.Copier{
		SourceRoot:    g.projectRoot,
		AlwaysInclude: alwaysInclude,
		EnvFile:       g.cfg.EnvFile,
		Layout: stage.Layout{
			Directories: g.cfg.Install.Directories,
			Files:       g.cfg.Install.Files,
		},
		Log: g.log,
	}
	if g.cfg.SanitizeEnabled {
		c.Sanitizer = &sanitize.Sanitizer{
			Rules: sanitize.Rules(g.cfg.SanitizeEnv),
			Log:   g.log,
			Rand:  g.rand,
		}
	}
	return c
}

// lock takes the output directory's lock; the returned func releases it,
// logging rather than returning any failure.
func (g *Generator) lock(ctx context.Context) (func(), error) {
	release, err := g.locker.Acquire(ctx, lock.NameFor(g.outputDir))
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(); err != nil {
			g.log.Warn("cannot release lock", "err", err)
		}
	}, nil
}

// observe records a finished workflow; use as `defer g.observe(kind, time.Now(), &err)`.
func (g *Generator) observe(kind updategen.PackageType, started time.Time, err *error) {
	outcome := metrics.Outcome_Success
	if *err != nil {
		outcome = metrics.Outcome_Failure
	}
	g.metrics.ObservePackage(kind, outcome, time.Since(started))
}
