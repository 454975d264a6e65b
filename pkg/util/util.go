package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/token"
)

// Phase names the pipeline stage an error was raised in.
type Phase string

const (
	PhaseLexing   Phase = "lexing"
	PhaseParsing  Phase = "parsing"
	PhaseSemantic Phase = "semantic"
	PhaseIR       Phase = "ir"
	PhaseOptimize Phase = "optimize"
	PhaseCodegen  Phase = "codegen"
	PhaseRuntime  Phase = "runtime"
)

// Error is the single fatal error value produced by every phase.
// Pos is -1 when the error has no source position.
type Error struct {
	Phase    Phase
	Pos      int
	Line     int
	Column   int
	Len      int
	Msg      string
	Expected string
}

func (e *Error) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("%s error: %s", e.Phase, e.Msg)
	}
	return fmt.Sprintf("%s error at pos %d: %s", e.Phase, e.Pos, e.Msg)
}

// Errorf builds a positioned error from the token that caused it.
func Errorf(phase Phase, tok token.Token, format string, args ...interface{}) *Error {
	return &Error{
		Phase: phase, Pos: tok.Pos, Line: tok.Line, Column: tok.Column, Len: tok.Len,
		Msg: fmt.Sprintf(format, args...),
	}
}

// Internalf builds an error that has no source position.
func Internalf(phase Phase, format string, args ...interface{}) *Error {
	return &Error{Phase: phase, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

// Diagnostic is a non-fatal warning attached to a token.
type Diagnostic struct {
	Warning config.Warning
	Name    string
	Tok     token.Token
	Msg     string
}

func (d Diagnostic) String() string {
	if d.Tok.Line == 0 {
		return fmt.Sprintf("warning: %s [-W%s]", d.Msg, d.Name)
	}
	return fmt.Sprintf("%d:%d: warning: %s [-W%s]", d.Tok.Line, d.Tok.Column, d.Msg, d.Name)
}

// Diagnostics collects warnings for one compilation.
type Diagnostics struct {
	cfg  *config.Config
	list []Diagnostic
}

func NewDiagnostics(cfg *config.Config) *Diagnostics { return &Diagnostics{cfg: cfg} }

// Warn records a warning if the corresponding warning is enabled.
func (d *Diagnostics) Warn(wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if d == nil || d.cfg == nil || !d.cfg.IsWarningEnabled(wt) {
		return
	}
	d.list = append(d.list, Diagnostic{
		Warning: wt, Name: d.cfg.Warnings[wt].Name, Tok: tok, Msg: fmt.Sprintf(format, args...),
	})
}

func (d *Diagnostics) List() []Diagnostic {
	if d == nil {
		return nil
	}
	return d.list
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// printErrorLine prints the source line and a caret indicating the error position
func printErrorLine(w io.Writer, src SourceFileRecord, line, column, length int) {
	if line == 0 {
		return
	}

	content := src.Content
	lineNum := line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))

	fmt.Fprintf(w, "  %s\033[32m^", strings.Repeat(" ", column-1))
	if length > 1 {
		fmt.Fprintf(w, "%s", strings.Repeat("~", length-1))
	}
	fmt.Fprintln(w, "\033[0m")
}

// Render writes a formatted error message with the offending source line.
func Render(w io.Writer, src SourceFileRecord, err error) {
	e, ok := err.(*Error)
	if !ok {
		fmt.Fprintf(w, "%s: \033[31merror:\033[0m %v\n", src.Name, err)
		return
	}
	if e.Pos < 0 {
		fmt.Fprintf(w, "%s: \033[31m%s error:\033[0m %s\n", src.Name, e.Phase, e.Msg)
		return
	}
	fmt.Fprintf(w, "%s:%d:%d: \033[31m%s error:\033[0m %s\n", src.Name, e.Line, e.Column, e.Phase, e.Msg)
	printErrorLine(w, src, e.Line, e.Column, e.Len)
}

// RenderWarning writes a formatted warning with the offending source line.
func RenderWarning(w io.Writer, src SourceFileRecord, d Diagnostic) {
	if d.Tok.Line == 0 {
		fmt.Fprintf(w, "%s: \033[33mwarning:\033[0m %s [-W%s]\n", src.Name, d.Msg, d.Name)
		return
	}
	fmt.Fprintf(w, "%s:%d:%d: \033[33mwarning:\033[0m %s [-W%s]\n", src.Name, d.Tok.Line, d.Tok.Column, d.Msg, d.Name)
	printErrorLine(w, src, d.Tok.Line, d.Tok.Column, d.Tok.Len)
}
