// Package binder exposes a selected node's config as editable fields
// derived from its component type's schema. Writes go through the graph
// store, which owns all type and range checks.
package binder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
	"github.com/meikuraledutech/workflow/graph"
)

// Editor is the part of the graph store a form needs.
type Editor interface {
	Node(id string) (graph.Node, bool)
	Type(nodeID string) (catalog.ComponentType, error)
	UpdateConfig(nodeID, key string, value any) error
}

// Field is one editable property with its current value.
type Field struct {
	Property catalog.Property
	Name     string
	Title    string
	Kind     catalog.Kind
	// Value is the node's value, or the schema default when unset.
	Value any
	// IsDefault reports that Value came from the schema.
	IsDefault bool
}

// Form binds one node's config to its schema.
type Form struct {
	editor Editor
	nodeID string
	typ    catalog.ComponentType
}

// Bind resolves the node's component type and returns its form.
func Bind(e Editor, nodeID string) (*Form, error) {
	ct, err := e.Type(nodeID)
	if err != nil {
		return nil, err
	}
	return &Form{editor: e, nodeID: nodeID, typ: ct}, nil
}

func (f *Form) NodeID() string              { return f.nodeID }
func (f *Form) Type() catalog.ComponentType { return f.typ }

// Fields returns every declared property in schema order with its live
// value.
func (f *Form) Fields() ([]Field, error) {
	n, ok := f.editor.Node(f.nodeID)
	if !ok {
		return nil, workflow.Errorf(workflow.ErrNodeNotFound,
			fmt.Sprintf("node %q not found", f.nodeID), nil, map[string]any{"node_id": f.nodeID})
	}
	props := f.typ.Schema.Properties()
	fields := make([]Field, 0, len(props))
	for _, p := range props {
		fields = append(fields, field(p, n.Config))
	}
	return fields, nil
}

// Field returns a single property's field.
func (f *Form) Field(name string) (Field, error) {
	n, ok := f.editor.Node(f.nodeID)
	if !ok {
		return Field{}, workflow.Errorf(workflow.ErrNodeNotFound,
			fmt.Sprintf("node %q not found", f.nodeID), nil, map[string]any{"node_id": f.nodeID})
	}
	p, ok := f.typ.Schema.Lookup(name)
	if !ok {
		return Field{}, unknownKey(f.typ.TypeID, f.nodeID, name)
	}
	return field(p, n.Config), nil
}

func field(p catalog.Property, config map[string]any) Field {
	fd := Field{
		Property: p,
		Name:     p.PropertyName(),
		Title:    p.PropertyTitle(),
		Kind:     p.Kind(),
	}
	if v, ok := config[fd.Name]; ok {
		fd.Value = v
		return fd
	}
	fd.Value, fd.IsDefault = p.DefaultValue()
	return fd
}

// Set writes a typed value.
func (f *Form) Set(name string, value any) error {
	return f.editor.UpdateConfig(f.nodeID, name, value)
}

// SetText parses text input according to the property's kind and writes
// the result. Unparseable input is a CONFIG_TYPE_MISMATCH.
func (f *Form) SetText(name, text string) error {
	p, ok := f.typ.Schema.Lookup(name)
	if !ok {
		return unknownKey(f.typ.TypeID, f.nodeID, name)
	}
	v, err := parseText(p, text)
	if err != nil {
		return err
	}
	return f.Set(name, v)
}

func parseText(p catalog.Property, text string) (any, error) {
	switch p.(type) {
	case catalog.StringProperty, catalog.EnumProperty:
		return text, nil
	case catalog.IntegerProperty:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, textMismatch(p, text, err)
		}
		return n, nil
	case catalog.NumberProperty:
		x, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, textMismatch(p, text, err)
		}
		return x, nil
	case catalog.BooleanProperty:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, textMismatch(p, text, err)
		}
		return b, nil
	}
	return nil, textMismatch(p, text, nil)
}

func textMismatch(p catalog.Property, text string, cause error) error {
	return workflow.Errorf(workflow.ErrConfigTypeMismatch,
		fmt.Sprintf("%s: %q is not a valid %s", p.PropertyName(), text, p.Kind()), cause,
		map[string]any{"key": p.PropertyName()})
}

func unknownKey(typeID, nodeID, key string) error {
	return workflow.Errorf(workflow.ErrUnknownConfigKey,
		fmt.Sprintf("%s has no config key %q", typeID, key), nil,
		map[string]any{"node_id": nodeID, "key": key})
}
