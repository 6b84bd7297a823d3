package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/SystemSolution21/adk-mcp/protocol"
)

// ToolOption configures NewTool.
type ToolOption func(*toolConfig)

type toolConfig struct {
	description               string
	allowAdditionalProperties bool // default false (strict)
}

// WithDescription sets the tool description used in listings.
func WithDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.description = desc }
}

// WithAllowAdditionalProperties controls whether unknown argument fields are
// accepted. When false (default) the schema sets additionalProperties=false
// and both validation and decoding reject unknown fields.
func WithAllowAdditionalProperties(allow bool) ToolOption {
	return func(c *toolConfig) { c.allowAdditionalProperties = allow }
}

// NewTool constructs a Tool from a typed argument struct A. It:
//   - reflects a JSON Schema from A using invopop/jsonschema
//   - down-converts it to the simplified protocol.InputSchema
//   - decodes validated arguments into A before calling fn
//   - converts fn's result with protocol.ValueOf
func NewTool[A any](name string, fn func(ctx context.Context, args A) (any, error), opts ...ToolOption) Tool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := protocol.ToolDescriptor{
		Name:        name,
		Description: cfg.description,
		InputSchema: ReflectInputSchema[A](cfg.allowAdditionalProperties),
	}

	h := HandlerFunc(func(ctx context.Context, args protocol.Arguments) (protocol.Value, error) {
		var a A
		if err := decodeArgs(args, &a, cfg.allowAdditionalProperties); err != nil {
			return protocol.Value{}, &protocol.ArgumentValidationError{Tool: name, Problems: []string{err.Error()}}
		}
		out, err := fn(ctx, a)
		if err != nil {
			return protocol.Value{}, err
		}
		v, err := protocol.ValueOf(out)
		if err != nil {
			return protocol.Value{}, fmt.Errorf("encode result: %w", err)
		}
		return v, nil
	})

	return Tool{Descriptor: desc, Handler: h}
}

func decodeArgs(args protocol.Arguments, dst any, allowAdditional bool) error {
	if args == nil {
		args = protocol.Arguments{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}
	if allowAdditional {
		return json.Unmarshal(b, dst)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ReflectInputSchema reflects A into a protocol.InputSchema. Non-object types
// produce an empty object schema with the configured additionalProperties
// policy.
func ReflectInputSchema[A any](allowAdditional bool) protocol.InputSchema {
	r := &jsonschema.Reflector{
		DoNotReference:            true, // inline defs
		ExpandedStruct:            true, // put struct at root
		AllowAdditionalProperties: allowAdditional,
	}
	s := r.Reflect(new(A))

	if s == nil || s.Type != protocol.TypeObject {
		return protocol.InputSchema{
			Type:                 protocol.TypeObject,
			Properties:           map[string]protocol.SchemaProperty{},
			AdditionalProperties: allowAdditional,
		}
	}

	props := make(map[string]protocol.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}

	return protocol.InputSchema{
		Type:                 protocol.TypeObject,
		Properties:           props,
		Required:             required,
		AdditionalProperties: allowAdditional,
	}
}

// toProperty recursively maps a jsonschema.Schema to a protocol.SchemaProperty.
func toProperty(s *jsonschema.Schema) protocol.SchemaProperty {
	if s == nil {
		return protocol.SchemaProperty{}
	}
	p := protocol.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == protocol.TypeArray && s.Items != nil {
		item := toProperty(s.Items)
		p.Items = &item
	}
	if s.Type == protocol.TypeObject && s.Properties != nil {
		m := make(map[string]protocol.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toProperty(el.Value)
		}
		p.Properties = m
		if len(s.Required) > 0 {
			p.Required = append([]string(nil), s.Required...)
		}
	}
	return p
}
