// Package pipeline runs the compiler phases in order and collects every
// intermediate product for display.
package pipeline

import (
	"bytes"
	"errors"
	"time"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/codegen"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/lexer"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/parser"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/token"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/typeChecker"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/vm"
	"go.uber.org/zap"
)

// Result holds what each phase produced. On failure the fields of the phases
// that completed are still set.
type Result struct {
	Mode        config.Mode
	Tokens      []token.Token
	AST         []*ast.Node
	Symbols     []*typeChecker.Symbol
	IR          *ir.Program
	OptimizedIR *ir.Program
	Asm         []string
	LLVM        string
	Native      string
	Output      string
	Warnings    []util.Diagnostic
}

type Pipeline struct {
	cfg *config.Config
	log *zap.Logger
}

// New returns a pipeline using cfg. A nil logger silences progress logs.
func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, log: log}
}

// Run compiles src with a default configuration and no logging.
func Run(src string, mode config.Mode, cfg *config.Config) (*Result, error) {
	return New(cfg, nil).Run(src, mode)
}

// Run executes every phase up to the consumer selected by mode. The returned
// error is always a *util.Error naming the failing phase.
func (p *Pipeline) Run(src string, mode config.Mode) (*Result, error) {
	res := &Result{Mode: mode}
	diags := util.NewDiagnostics(p.cfg)
	defer func() { res.Warnings = diags.List() }()

	var err error
	step := func(phase util.Phase, msg string, fn func() error) error {
		if err != nil {
			return err
		}
		start := time.Now()
		p.log.Debug(msg, zap.String("phase", string(phase)))
		if e := fn(); e != nil {
			err = asPhaseError(phase, e)
			p.log.Debug("phase failed", zap.String("phase", string(phase)), zap.Error(err))
			return err
		}
		p.log.Debug("phase done", zap.String("phase", string(phase)), zap.Duration("took", time.Since(start)))
		return nil
	}

	step(util.PhaseLexing, "Tokenizing...", func() (e error) {
		res.Tokens, e = lexer.Tokenize(src, diags)
		return e
	})
	step(util.PhaseParsing, "Parsing tokens into AST...", func() (e error) {
		res.AST, e = parser.NewParser(res.Tokens).Parse()
		return e
	})
	step(util.PhaseSemantic, "Type checking...", func() error {
		tc := typeChecker.NewTypeChecker(p.cfg, diags)
		if e := tc.Check(res.AST); e != nil {
			return e
		}
		res.Symbols = tc.Symbols()
		return nil
	})
	step(util.PhaseIR, "Generating IR...", func() (e error) {
		res.IR, e = codegen.NewContext(p.cfg).GenerateIR(res.AST)
		return e
	})
	step(util.PhaseOptimize, "Folding constants...", func() error {
		res.OptimizedIR = res.IR
		if p.cfg.IsFeatureEnabled(config.FeatFold) {
			res.OptimizedIR = ir.FoldConstants(res.IR, diags)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	switch mode {
	case config.ModeIRVM:
		step(util.PhaseRuntime, "Running IR interpreter...", func() error {
			var out bytes.Buffer
			e := vm.New(&out).Run(res.OptimizedIR)
			res.Output = out.String()
			return e
		})
	case config.ModeAsm:
		step(util.PhaseCodegen, "Generating pseudo-assembly...", func() (e error) {
			res.Asm, e = codegen.AsmLines(res.OptimizedIR)
			return e
		})
	case config.ModeLLVM, config.ModeNative:
		step(util.PhaseCodegen, "Generating "+string(mode)+" code...", func() error {
			buf, e := codegen.NewBackend(mode).Generate(res.OptimizedIR, p.cfg)
			if e != nil {
				return e
			}
			if mode == config.ModeLLVM {
				res.LLVM = buf.String()
			} else {
				res.Native = buf.String()
			}
			return nil
		})
	default:
		err = util.Internalf(util.PhaseCodegen, "unsupported mode '%s'", mode)
	}
	return res, err
}

// asPhaseError tags foreign errors with the phase they escaped from.
func asPhaseError(phase util.Phase, err error) *util.Error {
	var ue *util.Error
	if errors.As(err, &ue) {
		return ue
	}
	return util.Internalf(phase, "%v", err)
}
