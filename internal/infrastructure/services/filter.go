package services

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/liuwenjie/api-mock-server/internal/domain/har"
)

// filterEnv is the environment available to filter expressions.
type filterEnv struct {
	Method string `expr:"method"`
	Path   string `expr:"path"`
	Query  string `expr:"query"`
	Status int    `expr:"status"`
}

// EntryFilter decides which archive entries get registered, using a compiled
// boolean expression over method, path, query and response status, e.g.
// `status == 200 && method == "GET"`.
type EntryFilter struct {
	source  string
	program *vm.Program
}

// NewEntryFilter compiles the filter expression.
func NewEntryFilter(source string) (*EntryFilter, error) {
	program, err := expr.Compile(source, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile entry filter %q: %w", source, err)
	}
	return &EntryFilter{source: source, program: program}, nil
}

// Source returns the original filter expression.
func (f *EntryFilter) Source() string {
	return f.source
}

// Keep reports whether the entry passes the filter.
func (f *EntryFilter) Keep(e *har.Entry) (bool, error) {
	out, err := expr.Run(f.program, filterEnv{
		Method: e.Method,
		Path:   e.Path,
		Query:  e.RawQuery,
		Status: e.Status,
	})
	if err != nil {
		return false, fmt.Errorf("entry filter failed: %w", err)
	}
	keep, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("entry filter returned %T, want bool", out)
	}
	return keep, nil
}
