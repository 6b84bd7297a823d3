package protocol

// Schema property types understood by argument validation.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeNull    = "null"
)

// KnownType reports whether t is a schema type understood by validation. The
// empty type accepts any value.
func KnownType(t string) bool {
	switch t {
	case "", TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeArray, TypeObject, TypeNull:
		return true
	default:
		return false
	}
}

// ToolDescriptor describes a callable tool as advertised to the client.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitzero"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON-schema-like description of a tool's arguments. It
// is always an object shape.
type InputSchema struct {
	Type                 string                    `json:"type"`
	Properties           map[string]SchemaProperty `json:"properties,omitempty"`
	Required             []string                  `json:"required,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties,omitzero"`
}

// SchemaProperty is a simplified schema node.
type SchemaProperty struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitzero"`
	Items       *SchemaProperty           `json:"items,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
	Enum        []any                     `json:"enum,omitempty"`
}

// IsRequired reports whether name is listed as required.
func (s InputSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}
