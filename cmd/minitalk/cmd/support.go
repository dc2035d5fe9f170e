package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/minitalklang/minitalk/pkg/compiler"
	"github.com/minitalklang/minitalk/pkg/heap"
	"github.com/minitalklang/minitalk/pkg/parser"
)

// classSpec is the scratch class a one-shot compile/run installs its
// method on: a class definition never appears in MiniTalk method
// source (the generator only ever sees one selector's body at a
// time), so the CLI supplies one from flags instead.
type classSpec struct {
	name      string
	vars      []string
	primitive int
}

func splitVars(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	vars := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			vars = append(vars, p)
		}
	}
	return vars
}

// compileSource parses and compiles the method source text in src
// against a fresh class built from spec, returning the class, the
// CompiledMethod object, and the selector it was installed under.
func compileSource(machine *heap.Machine, spec classSpec, src string, lastValueNeeded bool) (*heap.Class, heap.ObjPtr, string, error) {
	class := heap.NewClass(spec.name, nil, spec.vars)

	p := parser.New(src, class)
	method := p.ParseMethod(spec.primitive)
	if errs := p.Errors(); len(errs) != 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, nil, "", fmt.Errorf("parse error:\n  %s", strings.Join(msgs, "\n  "))
	}

	compiledMethod, association, err := compiler.CodeMethod(machine, method, lastValueNeeded)
	if err != nil {
		return nil, nil, "", fmt.Errorf("compile error: %w", err)
	}
	class.Install(association)
	return class, compiledMethod, method.Selector.Name, nil
}

// parseLiteralArg turns a command-line argument into a small MiniTalk
// value: an integer or float if it parses as one, a boxed string
// otherwise. Covers the values worth passing a method from a shell
// without pulling in the full parser for a single token.
func parseLiteralArg(machine *heap.Machine, raw string) heap.ObjPtr {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return machine.NewSmallInteger(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return machine.NewFloat(f)
	}
	return machine.NewString(raw)
}

func readSourceFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
