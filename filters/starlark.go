package filters

import (
	"strings"

	"github.com/pkg/errors"
	"go.starlark.net/starlark"

	"github.com/deicod/jinjac/schema"
)

// LoadStarlark executes a Starlark script that declares custom filter
// contracts with the predeclared filter builtin:
//
//	filter("currency", input="number", output="string", args=["symbol:string?"])
//
// Argument specs are "name:class", with a trailing "?" for optional ones.
// src may be nil, a string or a []byte, as for starlark.ExecFile.
func LoadStarlark(filename string, src interface{}) ([]Def, error) {
	var defs []Def

	declare := starlark.NewBuiltin("filter", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var (
			name     string
			input    = "any"
			output   string
			params   *starlark.List
			variadic bool
			safe     bool
			escapes  bool
		)
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
			"name", &name,
			"input?", &input,
			"output?", &output,
			"args?", &params,
			"variadic?", &variadic,
			"safe?", &safe,
			"escapes?", &escapes,
		); err != nil {
			return nil, err
		}

		def, err := declaredDef(name, input, output, variadic, safe, escapes)
		if err != nil {
			return nil, err
		}
		if params != nil {
			for i := 0; i < params.Len(); i++ {
				spec, ok := starlark.AsString(params.Index(i))
				if !ok {
					return nil, errors.Errorf("filter %q: argument %d must be a string spec, got %s", name, i, params.Index(i).Type())
				}
				p, err := ParseParam(spec)
				if err != nil {
					return nil, errors.Wrapf(err, "filter %q", name)
				}
				def.Params = append(def.Params, p)
			}
		}
		defs = append(defs, def)
		return starlark.None, nil
	})

	thread := &starlark.Thread{Name: "jinjac-filters"}
	if _, err := starlark.ExecFile(thread, filename, src, starlark.StringDict{"filter": declare}); err != nil {
		return nil, errors.Wrap(err, "starlark execution error")
	}
	return defs, nil
}

func declaredDef(name, input, output string, variadic, safe, escapes bool) (Def, error) {
	in, err := ParseClass(input)
	if err != nil {
		return Def{}, errors.Wrapf(err, "filter %q", name)
	}
	def := Def{Name: name, Input: in, Variadic: variadic, Safe: safe, Escapes: escapes}
	if output != "" {
		out, err := schema.ParseType(output)
		if err != nil {
			return Def{}, errors.Wrapf(err, "filter %q", name)
		}
		def.Output = out
	}
	return def, nil
}

// Declared builds a custom filter contract from textual declarations, as
// found in configuration files.
func Declared(name, input, output string, params []Param, variadic, safe bool) (Def, error) {
	def, err := declaredDef(name, input, output, variadic, safe, false)
	if err != nil {
		return Def{}, err
	}
	def.Params = params
	return def, nil
}

// ParseParam parses an argument spec of the form "name:class" or
// "name:class?".
func ParseParam(spec string) (Param, error) {
	spec = strings.TrimSpace(spec)
	optional := strings.HasSuffix(spec, "?")
	spec = strings.TrimSuffix(spec, "?")
	name, class, _ := strings.Cut(spec, ":")
	if !isIdentifier(name) {
		return Param{}, errors.Errorf("invalid argument name in %q", spec)
	}
	c, err := ParseClass(strings.TrimSpace(class))
	if err != nil {
		return Param{}, err
	}
	return Param{Name: name, Class: c, Optional: optional}, nil
}
