// Package pipeline orchestrates the Ingest, Resolve, Lower, and Emit
// stages with the concurrency model of spec.md §5: Lower's per-method work
// fans out across workers bounded by GOMAXPROCS, and each stage finishes
// before the next starts. Ingest, Resolve (whose substeps must observe the
// whole class graph in order) and Emit run sequentially.
package pipeline

import (
	"context"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bytecast/jtc/internal/abi"
	"github.com/bytecast/jtc/internal/classfile"
	"github.com/bytecast/jtc/internal/config"
	"github.com/bytecast/jtc/internal/emit"
	"github.com/bytecast/jtc/internal/lower"
	"github.com/bytecast/jtc/internal/mangle"
	"github.com/bytecast/jtc/internal/model"
	"github.com/bytecast/jtc/internal/resolve"
)

// Pipeline runs one transpilation from a Config.
type Pipeline struct {
	Config *config.Config
	Log    *logrus.Logger
}

// New returns a Pipeline with a default logrus logger if log is nil.
func New(cfg *config.Config, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.New()
	}
	return &Pipeline{Config: cfg, Log: log}
}

// Run executes Ingest, Resolve, Lower, and Emit in sequence, returning a
// *jtcerr.Error or *jtcerr.Multi on any stage's failure. An invalid
// configuration (including an unknown --abi version) is returned as a plain
// error, which the CLI maps to exit code 1.
func (p *Pipeline) Run(ctx context.Context) error {
	cfg := p.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	program, err := p.ingest(ctx)
	if err != nil {
		return err
	}
	program.EntryClasses = cfg.EntryClasses

	if err := resolve.Resolve(program, p.Log); err != nil {
		return err
	}

	mangle.New().MangleProgram(program)

	bodies, err := p.lower(ctx, program)
	if err != nil {
		return err
	}

	symbols, err := abi.Resolve(cfg.ABIVersion)
	if err != nil {
		return err
	}

	e := &emit.Emitter{
		OutputRoot:     cfg.OutputRoot,
		TempDir:        cfg.TempDir,
		Symbols:        symbols,
		Bodies:         bodies,
		EmitAssertions: cfg.EmitAssertions,
	}
	if err := e.EmitProgram(program, cfg.PreserveUnreachable); err != nil {
		return err
	}

	p.Log.WithField("classes", len(program.Classes)).Info("transpile complete")
	return nil
}

// ingest delegates to classfile.Ingest, which walks the input root
// sequentially; this wrapper exists so Run's error/logging shape stays
// uniform across all four stages.
func (p *Pipeline) ingest(ctx context.Context) (*model.ProgramModel, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return classfile.Ingest([]string{p.Config.InputRoot}, p.Config.ProvidedByRuntime, p.Log)
}

// lower fans per-method translation out across an errgroup bounded by
// GOMAXPROCS, exactly as spec.md §5 describes for the Lower stage; the
// first method to fail cancels the group and its error is returned.
func (p *Pipeline) lower(ctx context.Context, program *model.ProgramModel) (map[string]map[string]*lower.TIRBody, error) {
	names := make([]string, 0, len(program.Classes))
	for name, c := range program.Classes {
		if c.Origin == model.OriginRuntimeProvided || (!c.Reachable && !p.Config.PreserveUnreachable) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	bodies := make(map[string]map[string]*lower.TIRBody, len(names))
	for _, name := range names {
		bodies[name] = make(map[string]*lower.TIRBody)
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	type job struct {
		class  *model.ClassModel
		method *model.MethodModel
	}
	var jobs []job
	for _, name := range names {
		c := program.Classes[name]
		for _, m := range c.Methods {
			jobs = append(jobs, job{c, m})
		}
	}

	results := make([]*lower.TIRBody, len(jobs))
	for i, j := range jobs {
		i, j := i, j
		eg.Go(func() error {
			select {
			case <-egctx.Done():
				return egctx.Err()
			default:
			}
			body, err := lower.Lower(program, j.class, j.method, lower.Options{ElideDeadCode: p.Config.ElideDeadCode})
			if err != nil {
				return err
			}
			results[i] = body
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	for i, j := range jobs {
		bodies[j.class.Name][methodKey(j.method)] = results[i]
	}
	return bodies, nil
}

func methodKey(m *model.MethodModel) string { return m.Name + m.Descriptor }
