// Package server exposes the pipeline over HTTP: GET /api/info describes the
// language and POST /api/run compiles and runs one program.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/pipeline"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
)

type Info struct {
	Language        string   `json:"language"`
	Features        []string `json:"features"`
	NotSupportedYet []string `json:"not_supported_yet"`
	Modes           []string `json:"modes"`
}

var languageInfo = Info{
	Language: "Mini C (educational subset)",
	Features: []string{
		"Data types: int, float, double, string",
		"Statements: declaration, assignment, print(expr);",
		"Arrays: T name[N], indexing name[i]",
		"Expressions: +, -, *, / with precedence",
		"Parentheses supported: ( ... )",
	},
	NotSupportedYet: []string{"if / while", "functions", "input"},
}

type RunRequest struct {
	Code string `json:"code"`
	Mode string `json:"mode"`
}

type RunResponse struct {
	OK          bool     `json:"ok"`
	Phase       string   `json:"phase,omitempty"`
	Stdout      string   `json:"stdout"`
	Stderr      string   `json:"stderr"`
	Tokens      []string `json:"tokens"`
	AST         string   `json:"ast,omitempty"`
	IR          []string `json:"ir"`
	OptimizedIR []string `json:"optimized_ir"`
	Asm         []string `json:"asm,omitempty"`
	LLVM        string   `json:"llvm,omitempty"`
	Native      string   `json:"native,omitempty"`
	Warnings    []string `json:"warnings"`
	SourceHash  string   `json:"source_hash"`
}

type Server struct {
	cfg *config.Config
	log *zap.Logger
	mux *http.ServeMux
}

func New(cfg *config.Config, log *zap.Logger) *Server {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /api/info", s.handleInfo)
	s.mux.HandleFunc("POST /api/run", s.handleRun)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := languageInfo
	for _, m := range config.Modes {
		info.Modes = append(info.Modes, string(m))
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, RunResponse{Phase: "request", Stderr: "invalid request body: " + err.Error()})
		return
	}

	mode := s.cfg.DefaultMode
	if req.Mode != "" {
		m, err := config.ParseMode(req.Mode)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, RunResponse{Phase: "request", Stderr: err.Error()})
			return
		}
		mode = m
	}

	resp := s.Run(req.Code, mode)
	s.log.Info("run",
		zap.String("mode", string(mode)),
		zap.Bool("ok", resp.OK),
		zap.String("phase", resp.Phase),
		zap.String("source_hash", resp.SourceHash),
		zap.Duration("took", time.Since(start)),
	)
	s.writeJSON(w, http.StatusOK, resp)
}

// Run compiles code and converts the pipeline result into a response.
// Compilation failures are reported in the body, not as HTTP errors.
func (s *Server) Run(code string, mode config.Mode) RunResponse {
	res, err := pipeline.New(s.cfg, s.log.Named("pipeline")).Run(code, mode)
	resp := RunResponse{
		OK:          err == nil,
		SourceHash:  fmt.Sprintf("%016x", xxhash.Sum64String(code)),
		Tokens:      []string{},
		IR:          []string{},
		OptimizedIR: []string{},
		Warnings:    []string{},
	}
	if err != nil {
		resp.Stderr = err.Error()
		if ue, ok := err.(*util.Error); ok {
			resp.Phase = string(ue.Phase)
		}
	}
	if res == nil {
		return resp
	}

	for _, tok := range res.Tokens {
		resp.Tokens = append(resp.Tokens, tok.String())
	}
	if res.AST != nil {
		resp.AST = ast.Dump(res.AST)
	}
	if res.IR != nil {
		resp.IR = res.IR.Lines()
	}
	if res.OptimizedIR != nil {
		resp.OptimizedIR = res.OptimizedIR.Lines()
	}
	for _, d := range res.Warnings {
		resp.Warnings = append(resp.Warnings, d.String())
	}
	resp.Stdout = res.Output
	resp.Asm = res.Asm
	resp.LLVM = res.LLVM
	resp.Native = res.Native
	return resp
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response", zap.Error(err))
	}
}
