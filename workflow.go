package workflow

import (
	"encoding/json"
	"time"
)

// Default handle names used when a connection omits its ports.
const (
	DefaultSourceHandle = "output"
	DefaultTargetHandle = "input"
)

// Position is a point in canvas space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Component is one node of a workflow as exchanged with the oracle and
// the persistence collaborator.
type Component struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Label    string         `json:"label"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

// Connection is one edge of a workflow in wire form.
// SourceHandle / TargetHandle name the ports; empty values mean the defaults.
type Connection struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Ports returns the connection's handles with defaults applied.
func (c Connection) Ports() (source, target string) {
	source, target = c.SourceHandle, c.TargetHandle
	if source == "" {
		source = DefaultSourceHandle
	}
	if target == "" {
		target = DefaultTargetHandle
	}
	return source, target
}

// Definition is the serialized graph: the payload submitted to the
// validation oracle and the body of a persisted workflow.
type Definition struct {
	Components  []Component  `json:"components"`
	Connections []Connection `json:"connections"`
}

// Workflow is a persisted, named Definition.
type Workflow struct {
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Components  []Component  `json:"components"`
	Connections []Connection `json:"connections"`
	IsValid     bool         `json:"is_valid"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

// Definition returns the graph part of the workflow.
func (w *Workflow) Definition() Definition {
	return Definition{Components: w.Components, Connections: w.Connections}
}

// WorkflowUpdate is a partial update; nil fields are left untouched.
type WorkflowUpdate struct {
	Name        *string       `json:"name,omitempty"`
	Description *string       `json:"description,omitempty"`
	Components  *[]Component  `json:"components,omitempty"`
	Connections *[]Connection `json:"connections,omitempty"`
}

// Verdict is the oracle's judgment on a Definition.
type Verdict struct {
	IsValid         bool     `json:"is_valid"`
	ComponentCount  int      `json:"component_count"`
	ConnectionCount int      `json:"connection_count"`
	Errors          []string `json:"errors"`
}

// Clone returns a deep copy of the definition. Config values are copied
// through a JSON round trip when they are not plain scalars.
func (d Definition) Clone() Definition {
	out := Definition{
		Components:  make([]Component, len(d.Components)),
		Connections: make([]Connection, len(d.Connections)),
	}
	for i, c := range d.Components {
		c.Data = cloneData(c.Data)
		out.Components[i] = c
	}
	copy(out.Connections, d.Connections)
	return out
}

func cloneData(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch v.(type) {
		case nil, string, bool, int, int32, int64, float32, float64:
			out[k] = v
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				out[k] = v
				continue
			}
			var cp any
			if err := json.Unmarshal(raw, &cp); err != nil {
				out[k] = v
				continue
			}
			out[k] = cp
		}
	}
	return out
}
