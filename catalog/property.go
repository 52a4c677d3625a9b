package catalog

import "slices"

// Kind names a config property's value kind.
type Kind string

const (
	KindString  Kind = "string"
	KindEnum    Kind = "enum"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
)

// Property is one entry of a component's config schema. The set of
// implementations is closed: StringProperty, EnumProperty,
// IntegerProperty, NumberProperty and BooleanProperty. Consumers switch
// on the concrete type.
type Property interface {
	PropertyName() string
	PropertyTitle() string
	Kind() Kind
	// DefaultValue returns the declared default, normalised to string,
	// int64, float64 or bool.
	DefaultValue() (any, bool)
	isProperty()
}

// Meta carries the fields every property has.
type Meta struct {
	Name  string
	Title string
}

func (m Meta) PropertyName() string { return m.Name }

// PropertyTitle falls back to the name when no title is declared.
func (m Meta) PropertyTitle() string {
	if m.Title == "" {
		return m.Name
	}
	return m.Title
}

func (Meta) isProperty() {}

type StringProperty struct {
	Meta
	Default *string
}

func (StringProperty) Kind() Kind { return KindString }

func (p StringProperty) DefaultValue() (any, bool) {
	if p.Default == nil {
		return nil, false
	}
	return *p.Default, true
}

// EnumProperty is a string restricted to Values.
type EnumProperty struct {
	Meta
	Values  []string
	Default *string
}

func (EnumProperty) Kind() Kind { return KindEnum }

func (p EnumProperty) DefaultValue() (any, bool) {
	if p.Default == nil {
		return nil, false
	}
	return *p.Default, true
}

// Allows reports whether v is one of the enumerated values.
func (p EnumProperty) Allows(v string) bool {
	for _, candidate := range p.Values {
		if candidate == v {
			return true
		}
	}
	return false
}

type IntegerProperty struct {
	Meta
	Default *int64
	Min     *int64
	Max     *int64
}

func (IntegerProperty) Kind() Kind { return KindInteger }

func (p IntegerProperty) DefaultValue() (any, bool) {
	if p.Default == nil {
		return nil, false
	}
	return *p.Default, true
}

// InRange reports whether v lies within the declared bounds (inclusive).
func (p IntegerProperty) InRange(v int64) bool {
	if p.Min != nil && v < *p.Min {
		return false
	}
	if p.Max != nil && v > *p.Max {
		return false
	}
	return true
}

type NumberProperty struct {
	Meta
	Default *float64
	Min     *float64
	Max     *float64
}

func (NumberProperty) Kind() Kind { return KindNumber }

func (p NumberProperty) DefaultValue() (any, bool) {
	if p.Default == nil {
		return nil, false
	}
	return *p.Default, true
}

// InRange reports whether v lies within the declared bounds (inclusive).
func (p NumberProperty) InRange(v float64) bool {
	if p.Min != nil && v < *p.Min {
		return false
	}
	if p.Max != nil && v > *p.Max {
		return false
	}
	return true
}

type BooleanProperty struct {
	Meta
	Default *bool
}

func (BooleanProperty) Kind() Kind { return KindBoolean }

func (p BooleanProperty) DefaultValue() (any, bool) {
	if p.Default == nil {
		return nil, false
	}
	return *p.Default, true
}

// Schema is an ordered set of properties.
type Schema struct {
	props []Property
	index map[string]int
}

// NewSchema builds a schema; later properties with a repeated name replace
// earlier ones in place.
func NewSchema(props ...Property) Schema {
	s := Schema{index: make(map[string]int, len(props))}
	for _, p := range props {
		if i, ok := s.index[p.PropertyName()]; ok {
			s.props[i] = p
			continue
		}
		s.index[p.PropertyName()] = len(s.props)
		s.props = append(s.props, p)
	}
	return s
}

// Properties returns copies of the properties in declaration order.
func (s Schema) Properties() []Property {
	out := make([]Property, len(s.props))
	for i, p := range s.props {
		out[i] = cloneProperty(p)
	}
	return out
}

func (s Schema) Lookup(name string) (Property, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return cloneProperty(s.props[i]), true
}

// cloneProperty copies p so that no slice or pointer is shared with the
// schema.
func cloneProperty(p Property) Property {
	switch p := p.(type) {
	case StringProperty:
		p.Default = clonePtr(p.Default)
		return p
	case EnumProperty:
		p.Values = slices.Clone(p.Values)
		p.Default = clonePtr(p.Default)
		return p
	case IntegerProperty:
		p.Default, p.Min, p.Max = clonePtr(p.Default), clonePtr(p.Min), clonePtr(p.Max)
		return p
	case NumberProperty:
		p.Default, p.Min, p.Max = clonePtr(p.Default), clonePtr(p.Min), clonePtr(p.Max)
		return p
	case BooleanProperty:
		p.Default = clonePtr(p.Default)
		return p
	}
	return p
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (s Schema) Len() int { return len(s.props) }

// Defaults returns every declared default keyed by property name.
func (s Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.props))
	for _, p := range s.props {
		if v, ok := p.DefaultValue(); ok {
			out[p.PropertyName()] = v
		}
	}
	return out
}
