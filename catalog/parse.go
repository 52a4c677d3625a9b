package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

type rawType struct {
	Type         string    `yaml:"type"`
	Label        string    `yaml:"label"`
	Description  string    `yaml:"description"`
	Icon         string    `yaml:"icon"`
	Color        string    `yaml:"color"`
	Inputs       []string  `yaml:"inputs"`
	Outputs      []string  `yaml:"outputs"`
	ConfigSchema rawSchema `yaml:"config_schema"`
}

type rawSchema struct {
	Type       string    `yaml:"type"`
	Properties yaml.Node `yaml:"properties"`
}

type rawProperty struct {
	Type    string   `yaml:"type"`
	Title   string   `yaml:"title"`
	Default any      `yaml:"default"`
	Minimum *float64 `yaml:"minimum"`
	Maximum *float64 `yaml:"maximum"`
	Enum    []string `yaml:"enum"`
}

// Parse decodes a catalog document. JSON and YAML are both accepted; the
// document is either a list of component types, a single component type,
// or a mapping with a "components" list. Property order is preserved.
func Parse(data []byte) ([]ComponentType, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	var items []*yaml.Node
	switch root.Kind {
	case yaml.SequenceNode:
		items = root.Content
	case yaml.MappingNode:
		if list := mappingValue(root, "components"); list != nil && list.Kind == yaml.SequenceNode {
			items = list.Content
		} else {
			items = []*yaml.Node{root}
		}
	default:
		return nil, fmt.Errorf("catalog: parse: unexpected document kind at line %d", root.Line)
	}

	types := make([]ComponentType, 0, len(items))
	for _, item := range items {
		t, err := decodeType(item)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// ParseType decodes a single component type.
func ParseType(data []byte) (ComponentType, error) {
	types, err := Parse(data)
	if err != nil {
		return ComponentType{}, err
	}
	if len(types) != 1 {
		return ComponentType{}, fmt.Errorf("catalog: expected one component type, got %d", len(types))
	}
	return types[0], nil
}

func decodeType(node *yaml.Node) (ComponentType, error) {
	var raw rawType
	if err := node.Decode(&raw); err != nil {
		return ComponentType{}, fmt.Errorf("catalog: decode component type at line %d: %w", node.Line, err)
	}
	if strings.TrimSpace(raw.Type) == "" {
		return ComponentType{}, fmt.Errorf("catalog: component type at line %d has no type id", node.Line)
	}
	schema, err := decodeSchema(raw.Type, &raw.ConfigSchema.Properties)
	if err != nil {
		return ComponentType{}, err
	}
	label := raw.Label
	if label == "" {
		label = raw.Type
	}
	return ComponentType{
		TypeID:      raw.Type,
		Label:       label,
		Description: raw.Description,
		Icon:        raw.Icon,
		Color:       raw.Color,
		Inputs:      nonNil(raw.Inputs),
		Outputs:     nonNil(raw.Outputs),
		Schema:      schema,
	}, nil
}

func decodeSchema(typeID string, props *yaml.Node) (Schema, error) {
	if props.Kind == 0 {
		return NewSchema(), nil
	}
	if props.Kind != yaml.MappingNode {
		return Schema{}, fmt.Errorf("catalog: %s: config_schema.properties must be a mapping", typeID)
	}
	list := make([]Property, 0, len(props.Content)/2)
	for i := 0; i+1 < len(props.Content); i += 2 {
		name := props.Content[i].Value
		var raw rawProperty
		if err := props.Content[i+1].Decode(&raw); err != nil {
			return Schema{}, fmt.Errorf("catalog: %s.%s: %w", typeID, name, err)
		}
		p, err := buildProperty(Meta{Name: name, Title: raw.Title}, raw)
		if err != nil {
			return Schema{}, fmt.Errorf("catalog: %s.%s: %w", typeID, name, err)
		}
		list = append(list, p)
	}
	return NewSchema(list...), nil
}

func buildProperty(meta Meta, raw rawProperty) (Property, error) {
	switch raw.Type {
	case "string", "":
		var def *string
		if raw.Default != nil {
			s, ok := raw.Default.(string)
			if !ok {
				return nil, fmt.Errorf("default %v is not a string", raw.Default)
			}
			def = &s
		}
		if len(raw.Enum) > 0 {
			p := EnumProperty{Meta: meta, Values: raw.Enum, Default: def}
			if def != nil && !p.Allows(*def) {
				return nil, fmt.Errorf("default %q is not one of %v", *def, raw.Enum)
			}
			return p, nil
		}
		return StringProperty{Meta: meta, Default: def}, nil
	case "integer":
		p := IntegerProperty{Meta: meta}
		if raw.Default != nil {
			v, ok := AsInteger(raw.Default)
			if !ok {
				return nil, fmt.Errorf("default %v is not an integer", raw.Default)
			}
			p.Default = &v
		}
		if raw.Minimum != nil {
			v := int64(math.Ceil(*raw.Minimum))
			p.Min = &v
		}
		if raw.Maximum != nil {
			v := int64(math.Floor(*raw.Maximum))
			p.Max = &v
		}
		return p, nil
	case "number":
		p := NumberProperty{Meta: meta, Min: raw.Minimum, Max: raw.Maximum}
		if raw.Default != nil {
			v, ok := AsNumber(raw.Default)
			if !ok {
				return nil, fmt.Errorf("default %v is not a number", raw.Default)
			}
			p.Default = &v
		}
		return p, nil
	case "boolean":
		p := BooleanProperty{Meta: meta}
		if raw.Default != nil {
			b, ok := raw.Default.(bool)
			if !ok {
				return nil, fmt.Errorf("default %v is not a boolean", raw.Default)
			}
			p.Default = &b
		}
		return p, nil
	}
	return nil, fmt.Errorf("unsupported property type %q", raw.Type)
}

// AsInteger converts Go integer kinds, and floats holding an integral
// value (as produced by JSON decoding), to int64.
func AsInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return AsInteger(float64(n))
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		// 2^63 is exact in float64; MaxInt64 is not.
		if n < math.MinInt64 || n >= -math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// AsNumber converts any Go numeric kind to a finite float64.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, finite(n)
	case float32:
		return float64(n), finite(float64(n))
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && finite(f)
	}
	if i, ok := AsInteger(v); ok {
		return float64(i), true
	}
	return 0, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// MarshalJSON encodes the type in catalog wire form, keeping property
// declaration order.
func (t ComponentType) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	fields := []struct {
		key string
		val any
	}{
		{"type", t.TypeID},
		{"label", t.Label},
		{"description", t.Description},
		{"inputs", nonNil(t.Inputs)},
		{"outputs", nonNil(t.Outputs)},
	}
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeField(&buf, f.key, f.val); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`,"config_schema":{"type":"object","properties":{`)
	for i, p := range t.Schema.props {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeField(&buf, p.PropertyName(), propertyWire(p)); err != nil {
			return nil, err
		}
	}
	buf.WriteString("}},")
	if err := writeField(&buf, "icon", t.Icon); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeField(&buf, "color", t.Color); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the catalog wire form.
func (t *ComponentType) UnmarshalJSON(data []byte) error {
	parsed, err := ParseType(data)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type wireProperty struct {
	Type    string   `json:"type"`
	Title   string   `json:"title,omitempty"`
	Default any      `json:"default,omitempty"`
	Minimum any      `json:"minimum,omitempty"`
	Maximum any      `json:"maximum,omitempty"`
	Enum    []string `json:"enum,omitempty"`
}

func propertyWire(p Property) wireProperty {
	w := wireProperty{Title: p.PropertyTitle()}
	if def, ok := p.DefaultValue(); ok {
		w.Default = def
	}
	switch v := p.(type) {
	case StringProperty:
		w.Type = "string"
	case EnumProperty:
		w.Type = "string"
		w.Enum = v.Values
	case IntegerProperty:
		w.Type = "integer"
		if v.Min != nil {
			w.Minimum = *v.Min
		}
		if v.Max != nil {
			w.Maximum = *v.Max
		}
	case NumberProperty:
		w.Type = "number"
		if v.Min != nil {
			w.Minimum = *v.Min
		}
		if v.Max != nil {
			w.Maximum = *v.Max
		}
	case BooleanProperty:
		w.Type = "boolean"
	}
	return w
}

func writeField(buf *bytes.Buffer, key string, val any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(val)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
