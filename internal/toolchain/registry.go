package toolchain

import (
	"sort"
	"sync"

	"gauntlet/internal/game"
)

// LanguageSpec describes how to build and launch one language.
//
// Placeholders in CompileArgs and CheckArgs: {src} is the source file and
// {out} the binary.
type LanguageSpec struct {
	Language game.Language

	// SourceFile is the file name the submission is written to.
	SourceFile string

	// Compiler is the compiler command. Empty means interpreted.
	Compiler    string
	CompileArgs []string

	// Interpreter is the interpreter command for interpreted languages.
	Interpreter     string
	InterpreterArgs []string

	// CheckArgs, when set, are run with the interpreter at prepare time to
	// reject sources that cannot even be parsed.
	CheckArgs []string

	// Harness wraps interpreted sources so a solve(...) entry point works.
	Harness bool
}

// Compiled reports whether the language needs a compile step.
func (s *LanguageSpec) Compiled() bool { return s.Compiler != "" }

// Tools names the host commands used by the default registry.
type Tools struct {
	Python      string
	CCompiler   string
	CPPCompiler string
}

// DefaultTools returns the commands looked up on PATH when nothing is
// configured.
func DefaultTools() Tools {
	return Tools{Python: "python3", CCompiler: "cc", CPPCompiler: "c++"}
}

// Registry maps languages to how they are built and launched.
//
// Safe for concurrent reads; Register is meant for setup.
type Registry struct {
	mu    sync.RWMutex
	specs map[game.Language]*LanguageSpec
}

// NewRegistry creates a registry populated for c, cpp and python.
func NewRegistry(tools Tools) *Registry {
	def := DefaultTools()
	if tools.Python == "" {
		tools.Python = def.Python
	}
	if tools.CCompiler == "" {
		tools.CCompiler = def.CCompiler
	}
	if tools.CPPCompiler == "" {
		tools.CPPCompiler = def.CPPCompiler
	}

	r := &Registry{specs: make(map[game.Language]*LanguageSpec)}
	r.specs[game.LanguageC] = &LanguageSpec{
		Language:    game.LanguageC,
		SourceFile:  "main.c",
		Compiler:    tools.CCompiler,
		CompileArgs: []string{"-O2", "-std=c11", "-o", "{out}", "{src}", "-lm"},
	}
	r.specs[game.LanguageCPP] = &LanguageSpec{
		Language:    game.LanguageCPP,
		SourceFile:  "main.cpp",
		Compiler:    tools.CPPCompiler,
		CompileArgs: []string{"-O2", "-std=c++17", "-o", "{out}", "{src}"},
	}
	r.specs[game.LanguagePython] = &LanguageSpec{
		Language:        game.LanguagePython,
		SourceFile:      "strategy.py",
		Interpreter:     tools.Python,
		InterpreterArgs: []string{"-I", "-B"},
		CheckArgs:       []string{"-I", "-B", "-c", syntaxCheck, "{src}"},
		Harness:         true,
	}
	return r
}

// Get returns the LanguageSpec for lang.
func (r *Registry) Get(lang game.Language) (*LanguageSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[lang]
	return s, ok
}

// Register adds or replaces the entry for spec.Language.
func (r *Registry) Register(spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Language] = spec
}

// Languages lists registered languages in sorted order.
func (r *Registry) Languages() []game.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]game.Language, 0, len(r.specs))
	for l := range r.specs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func expand(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if v, ok := vars[a]; ok {
			out[i] = v
			continue
		}
		out[i] = a
	}
	return out
}
