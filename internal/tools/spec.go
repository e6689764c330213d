// Package tools provides the tool registration and dispatch framework.
package tools

// Spec describes a tool for LLM function calling.
type Spec struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  *ParamSchema `json:"parameters,omitempty"`
}

// ParamSchema defines the JSON Schema for tool parameters.
type ParamSchema struct {
	Type       string                `json:"type"`
	Properties map[string]*ParamProp `json:"properties,omitempty"`
	Required   []string              `json:"required,omitempty"`
}

// ParamProp defines a single parameter property.
type ParamProp struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// SchemaMap renders the schema in the generic JSON-schema shape the
// OpenAI function-calling API expects.
func (s *Spec) SchemaMap() map[string]any {
	if s.Parameters == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	props := make(map[string]any, len(s.Parameters.Properties))
	for name, p := range s.Parameters.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       s.Parameters.Type,
		"properties": props,
	}
	if len(s.Parameters.Required) > 0 {
		schema["required"] = s.Parameters.Required
	}
	return schema
}
