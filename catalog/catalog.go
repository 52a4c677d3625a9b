// Package catalog holds the read-only set of component types a workflow
// can be built from, together with their ports and config schemas.
package catalog

import "slices"

// ComponentType describes a reusable workflow building block.
type ComponentType struct {
	TypeID      string
	Label       string
	Description string
	Icon        string
	Color       string
	Inputs      []string
	Outputs     []string
	Schema      Schema
}

// Clone returns a copy that shares no port slices with t. Schema
// accessors already hand out copies.
func (t ComponentType) Clone() ComponentType {
	t.Inputs = slices.Clone(t.Inputs)
	t.Outputs = slices.Clone(t.Outputs)
	return t
}

// HasInput reports whether port is a declared input port.
func (t ComponentType) HasInput(port string) bool {
	return contains(t.Inputs, port)
}

// HasOutput reports whether port is a declared output port.
func (t ComponentType) HasOutput(port string) bool {
	return contains(t.Outputs, port)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
