package qos

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/hdds-io/hdds/internal/hddserr"
)

// ContentFilter compiles and evaluates a subscription's content-filter
// expression (§4.9, §6) against a sample's dynamic field map, letting a
// reader reject samples before they ever reach its history cache.
type ContentFilter struct {
	source  string
	program *vm.Program
}

// CompileContentFilter compiles expression against a field environment
// of map[string]any; an empty expression always passes.
func CompileContentFilter(expression string) (*ContentFilter, error) {
	if expression == "" {
		return &ContentFilter{}, nil
	}
	program, err := expr.Compile(expression, expr.Env(map[string]any{}), expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, hddserr.Wrap("qos.CompileContentFilter", hddserr.InvalidArgument, err, "compile filter %q", expression)
	}
	return &ContentFilter{source: expression, program: program}, nil
}

// Accepts evaluates the filter against fields, a map of named values
// (pkg/hdds's reader passes a sample's writer_guid and disposed). A nil
// or empty filter always accepts.
func (f *ContentFilter) Accepts(fields map[string]any) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, fields)
	if err != nil {
		return false, hddserr.Wrap("qos.ContentFilter.Accepts", hddserr.InvalidArgument, err, "evaluate filter %q", f.source)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Source returns the original filter expression, empty if none.
func (f *ContentFilter) Source() string {
	if f == nil {
		return ""
	}
	return f.source
}
