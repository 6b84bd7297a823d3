// Package validation checks call argument bundles against a tool's input
// schema before the handler runs.
package validation

import (
	"fmt"
	"slices"
	"sort"

	"github.com/SystemSolution21/adk-mcp/protocol"
)

// Arguments validates args against schema and returns every problem found,
// sorted for stable output. A nil result means args are acceptable.
//
// Optional fields that are present with a null value are treated as absent.
func Arguments(schema protocol.InputSchema, args protocol.Arguments) []string {
	var problems []string
	for _, name := range schema.Required {
		if !args.Has(name) {
			problems = append(problems, fmt.Sprintf("missing required field %q", name))
			continue
		}
		if args[name].IsNull() && schema.Properties[name].Type != protocol.TypeNull {
			problems = append(problems, fmt.Sprintf("required field %q is null", name))
		}
	}

	for name, v := range args {
		p, declared := schema.Properties[name]
		if !declared {
			if !schema.AdditionalProperties {
				problems = append(problems, fmt.Sprintf("unknown field %q", name))
			}
			continue
		}
		if v.IsNull() && !schema.IsRequired(name) {
			continue
		}
		problems = append(problems, property(name, p, v)...)
	}

	sort.Strings(problems)
	return problems
}

// Check is Arguments wrapped into an *protocol.ArgumentValidationError.
func Check(tool string, schema protocol.InputSchema, args protocol.Arguments) error {
	problems := Arguments(schema, args)
	if len(problems) == 0 {
		return nil
	}
	return &protocol.ArgumentValidationError{Tool: tool, Problems: problems}
}

func property(path string, p protocol.SchemaProperty, v protocol.Value) []string {
	if !matchesType(p.Type, v) {
		return []string{fmt.Sprintf("field %q: expected %s, got %s", path, p.Type, describe(v))}
	}
	var problems []string
	if len(p.Enum) > 0 && !inEnum(p.Enum, v) {
		problems = append(problems, fmt.Sprintf("field %q: value %s is not one of the allowed values", path, v.String()))
	}

	switch v.Kind() {
	case protocol.KindList:
		if p.Items == nil {
			break
		}
		items, _ := v.AsList()
		for i, item := range items {
			problems = append(problems, property(fmt.Sprintf("%s[%d]", path, i), *p.Items, item)...)
		}
	case protocol.KindMap:
		if len(p.Properties) == 0 && len(p.Required) == 0 {
			break
		}
		m, _ := v.AsMap()
		for _, name := range p.Required {
			if _, ok := m[name]; !ok {
				problems = append(problems, fmt.Sprintf("field %q: missing required field %q", path, name))
			}
		}
		// Undeclared keys in nested objects are tolerated.
		for name, sub := range p.Properties {
			sv, ok := m[name]
			if !ok || (sv.IsNull() && !slices.Contains(p.Required, name)) {
				continue
			}
			problems = append(problems, property(path+"."+name, sub, sv)...)
		}
	}
	return problems
}

func matchesType(t string, v protocol.Value) bool {
	switch t {
	case "":
		return true
	case protocol.TypeString:
		return v.Kind() == protocol.KindString
	case protocol.TypeNumber:
		return v.Kind() == protocol.KindNumber
	case protocol.TypeInteger:
		return v.Kind() == protocol.KindNumber && v.IsInteger()
	case protocol.TypeBoolean:
		return v.Kind() == protocol.KindBool
	case protocol.TypeArray:
		return v.Kind() == protocol.KindList
	case protocol.TypeObject:
		return v.Kind() == protocol.KindMap
	case protocol.TypeNull:
		return v.IsNull()
	default:
		return false
	}
}

func describe(v protocol.Value) string {
	if v.Kind() == protocol.KindNumber && !v.IsInteger() {
		return "non-integer number"
	}
	return v.Kind().String()
}

func inEnum(enum []any, v protocol.Value) bool {
	for _, e := range enum {
		ev, err := protocol.ValueOf(e)
		if err != nil {
			continue
		}
		if equal(ev, v) {
			return true
		}
	}
	return false
}

func equal(a, b protocol.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case protocol.KindNull:
		return true
	case protocol.KindBool:
		x, _ := a.AsBool()
		y, _ := b.AsBool()
		return x == y
	case protocol.KindString:
		x, _ := a.AsString()
		y, _ := b.AsString()
		return x == y
	case protocol.KindNumber:
		x, _ := a.AsNumber()
		y, _ := b.AsNumber()
		if x == y {
			return true
		}
		fx, errx := x.Float64()
		fy, erry := y.Float64()
		return errx == nil && erry == nil && fx == fy
	default:
		return a.String() == b.String()
	}
}
