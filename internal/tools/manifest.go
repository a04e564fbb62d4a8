// Package tools is the fixed catalog of tools offered to the model and the
// dispatcher that maps each call onto one task, file or skill operation.
package tools

import (
	"sort"

	"github.com/cloudwego/eino/schema"

	"github.com/claybowl/taygency/internal/skills"
)

// ToolSpec describes one tool exposed to the model.
type ToolSpec struct {
	Name        Name                 `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]ParamSpec `json:"parameters"`
}

// ParamSpec describes a single tool parameter.
type ParamSpec struct {
	Type        string     `json:"type"` // "string", "number", "boolean", "integer", "array", "object"
	Description string     `json:"description"`
	Required    bool       `json:"required"`
	Enum        []string   `json:"enum,omitempty"`
	Items       *ParamSpec `json:"items,omitempty"` // element schema for arrays
}

// Definition is the provider-neutral JSON schema form of a tool:
// {name, description, input_schema: {type: "object", properties, required}}.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is the object schema of a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Property is one JSON schema property.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// Definition renders the spec as a JSON schema definition. Required names are sorted.
func (s ToolSpec) Definition() Definition {
	def := Definition{
		Name:        string(s.Name),
		Description: s.Description,
		InputSchema: InputSchema{
			Type:       "object",
			Properties: make(map[string]Property, len(s.Parameters)),
			Required:   []string{},
		},
	}
	for name, p := range s.Parameters {
		def.InputSchema.Properties[name] = p.property()
		if p.Required {
			def.InputSchema.Required = append(def.InputSchema.Required, name)
		}
	}
	sort.Strings(def.InputSchema.Required)
	return def
}

func (p ParamSpec) property() Property {
	prop := Property{Type: p.Type, Description: p.Description, Enum: p.Enum}
	if p.Items != nil {
		items := p.Items.property()
		prop.Items = &items
	}
	return prop
}

// toolSpecToToolInfo converts a ToolSpec to an Eino schema.ToolInfo.
func toolSpecToToolInfo(spec *ToolSpec) *schema.ToolInfo {
	info := &schema.ToolInfo{
		Name: string(spec.Name),
		Desc: spec.Description,
	}

	if len(spec.Parameters) > 0 {
		params := make(map[string]*schema.ParameterInfo, len(spec.Parameters))
		for name, p := range spec.Parameters {
			params[name] = p.parameterInfo()
		}
		info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	}

	return info
}

func (p ParamSpec) parameterInfo() *schema.ParameterInfo {
	info := &schema.ParameterInfo{
		Type:     paramTypeToDataType(p.Type),
		Desc:     p.Description,
		Required: p.Required,
		Enum:     p.Enum,
	}
	if p.Items != nil {
		info.ElemInfo = p.Items.parameterInfo()
	}
	return info
}

// paramTypeToDataType maps string type names to Eino DataType constants.
func paramTypeToDataType(t string) schema.DataType {
	switch t {
	case "string":
		return schema.String
	case "number":
		return schema.Number
	case "integer":
		return schema.Integer
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}

// subToolSpec converts a code skill's sub-tool declaration.
func subToolSpec(name Name, st skills.SubTool) ToolSpec {
	params := make(map[string]ParamSpec, len(st.Parameters))
	for pname, p := range st.Parameters {
		params[pname] = ParamSpec{
			Type:        p.Type,
			Description: p.Description,
			Required:    p.Required,
			Enum:        p.Enum,
		}
	}
	return ToolSpec{Name: name, Description: st.Description, Parameters: params}
}
