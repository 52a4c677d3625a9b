// Package oracle implements the reference verdict algorithm served by the
// validation endpoint.
package oracle

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
)

// RequiredTypes must each appear at least once in a valid workflow.
var RequiredTypes = []string{catalog.TypeUserQuery, catalog.TypeOutput}

// Oracle judges definitions.
type Oracle struct {
	required []string
}

// New creates an oracle. With no arguments RequiredTypes are enforced.
func New(required ...string) *Oracle {
	if len(required) == 0 {
		required = RequiredTypes
	}
	return &Oracle{required: required}
}

// Validate reports whether d has every required component type and only
// connections between existing components.
func (o *Oracle) Validate(ctx context.Context, d workflow.Definition) (workflow.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return workflow.Verdict{}, err
	}
	v := workflow.Verdict{
		ComponentCount:  len(d.Components),
		ConnectionCount: len(d.Connections),
		Errors:          []string{},
	}

	types := make(map[string]bool, len(d.Components))
	ids := make(map[string]bool, len(d.Components))
	for _, c := range d.Components {
		types[c.Type] = true
		ids[c.ID] = true
	}
	for _, required := range o.required {
		if !types[required] {
			v.Errors = append(v.Errors, fmt.Sprintf("Missing required component: %s", required))
		}
	}
	for _, conn := range d.Connections {
		if !ids[conn.Source] || !ids[conn.Target] {
			v.Errors = append(v.Errors, fmt.Sprintf("Connection %s references a missing component", conn.ID))
		}
	}
	v.IsValid = len(v.Errors) == 0
	return v, nil
}
