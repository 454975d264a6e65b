package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/cli"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/pipeline"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
	"go.uber.org/zap"
)

func main() {
	app := cli.NewApp("minic")
	app.Synopsis = "[options] <input.mc>"
	app.Description = "A compiler for MiniC, a tiny statically typed language of declarations, assignments and prints. Emits pseudo-assembly, LLVM IR or native assembly, or runs the program directly."
	app.Authors = []string{"AfzalSurti"}
	app.Repository = "<https://github.com/AfzalSurti/Mini-C-Compiler>"
	app.Since = 2025

	var (
		outFile    string
		mode       string
		configPath string
		dumpTokens bool
		dumpAST    bool
		dumpIR     bool
		verbose    bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Write the artifact to <file> instead of stdout.", "file")
	fs.String(&mode, "mode", "m", "", "Select the output: asm, llvm, irvm or native.", "mode")
	fs.String(&configPath, "config", "c", "", "Read settings from a TOML file.", "file")
	fs.Bool(&dumpTokens, "dump-tokens", "", false, "Print the token stream.")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Print the syntax tree.")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Print the IR before and after optimization.")
	fs.Bool(&verbose, "verbose", "v", false, "Log the progress of each phase.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) != 1 {
			err := fmt.Errorf("expected exactly one input file, got %d", len(inputFiles))
			fmt.Fprintln(app.Stderr, err)
			return err
		}

		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintln(app.Stderr, err)
				return err
			}
			cfg = loaded
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)

		selected := cfg.DefaultMode
		if mode != "" {
			m, err := config.ParseMode(mode)
			if err != nil {
				fmt.Fprintln(app.Stderr, err)
				return err
			}
			selected = m
		}

		log := zap.NewNop()
		if verbose {
			if dev, err := zap.NewDevelopment(); err == nil {
				log = dev
			}
		}
		defer log.Sync()

		path := inputFiles[0]
		content, err := os.ReadFile(path)
		if err != nil {
			err = fmt.Errorf("could not read file '%s': %w", path, err)
			fmt.Fprintln(app.Stderr, err)
			return err
		}
		src := util.SourceFileRecord{Name: path, Content: []rune(string(content))}

		res, err := pipeline.New(cfg, log.Named("minic")).Run(string(content), selected)
		for _, d := range res.Warnings {
			util.RenderWarning(app.Stderr, src, d)
		}
		dump(app.Stdout, res, dumpTokens, dumpAST, dumpIR)
		if err != nil {
			util.Render(app.Stderr, src, err)
			return err
		}

		out := app.Stdout
		if outFile != "" {
			f, err := os.Create(outFile)
			if err != nil {
				fmt.Fprintln(app.Stderr, err)
				return err
			}
			defer f.Close()
			out = f
		}
		_, err = io.WriteString(out, artifact(res))
		return err
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func artifact(res *pipeline.Result) string {
	switch res.Mode {
	case config.ModeAsm:
		if len(res.Asm) == 0 {
			return ""
		}
		return strings.Join(res.Asm, "\n") + "\n"
	case config.ModeLLVM:
		return res.LLVM
	case config.ModeNative:
		return res.Native
	}
	return res.Output
}

func dump(w io.Writer, res *pipeline.Result, tokens, tree, irCode bool) {
	if tokens && res.Tokens != nil {
		fmt.Fprintln(w, "--- tokens ---")
		for _, tok := range res.Tokens {
			fmt.Fprintf(w, "%-12s %q (pos=%d)\n", tok.Type, tok.Value, tok.Pos)
		}
	}
	if tree && res.AST != nil {
		fmt.Fprintln(w, "--- ast ---")
		fmt.Fprintln(w, ast.Dump(res.AST))
	}
	if irCode && res.IR != nil {
		fmt.Fprintln(w, "--- ir ---")
		fmt.Fprintln(w, res.IR)
		if res.OptimizedIR != nil {
			fmt.Fprintln(w, "--- optimized ir ---")
			fmt.Fprintln(w, res.OptimizedIR)
		}
	}
}
