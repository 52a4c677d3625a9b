package graph

import (
	"fmt"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
)

// Endpoint is one side of a prospective connection.
type Endpoint struct {
	Node Node
	Type catalog.ComponentType
	Port string
}

// Rules decides which connections are legal.
//
// Ports are typed only by name, so compatibility reduces to: the source
// port is a declared output, the target port is a declared input, the
// nodes differ unless AllowSelfLoops is set, and the input is unoccupied
// unless AllowFanIn is set.
type Rules struct {
	AllowSelfLoops bool
	// AllowFanIn lets an input port accept several incoming edges.
	AllowFanIn bool
	// RejectCycles refuses an edge that would close a cycle. Whether a
	// cyclic workflow is acceptable is left to the validation oracle
	// unless this is set.
	RejectCycles bool
}

// DefaultRules enforces a single producer per input and no self-loops.
func DefaultRules() Rules { return Rules{} }

// IsCompatible reports whether the pair can be connected, ignoring
// occupancy of the target port.
func (r Rules) IsCompatible(src, dst Endpoint) bool {
	if !src.Type.HasOutput(src.Port) || !dst.Type.HasInput(dst.Port) {
		return false
	}
	if src.Node.ID == dst.Node.ID && !r.AllowSelfLoops {
		return false
	}
	return true
}

// check applies the full rule set against the current edges.
func (r Rules) check(src, dst Endpoint, edges []*Edge) error {
	if !r.IsCompatible(src, dst) {
		return workflow.Errorf(workflow.ErrIncompatiblePorts,
			fmt.Sprintf("cannot connect %s.%s to %s.%s", src.Node.ID, src.Port, dst.Node.ID, dst.Port),
			nil, endpointMeta(src, dst))
	}
	for _, e := range edges {
		if e.TargetNodeID != dst.Node.ID || e.TargetPort != dst.Port {
			continue
		}
		duplicate := e.SourceNodeID == src.Node.ID && e.SourcePort == src.Port
		if duplicate || !r.AllowFanIn {
			meta := endpointMeta(src, dst)
			meta["edge_id"] = e.ID
			return workflow.Errorf(workflow.ErrPortAlreadyConnected,
				fmt.Sprintf("input %s.%s is already connected by edge %s", dst.Node.ID, dst.Port, e.ID),
				nil, meta)
		}
	}
	if r.RejectCycles && src.Node.ID != dst.Node.ID && reaches(edges, dst.Node.ID, src.Node.ID) {
		return workflow.Errorf(workflow.ErrIncompatiblePorts,
			fmt.Sprintf("connecting %s to %s would create a cycle", src.Node.ID, dst.Node.ID),
			nil, endpointMeta(src, dst))
	}
	return nil
}

// reaches reports whether to is reachable from from along edges.
func reaches(edges []*Edge, from, to string) bool {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.SourceNodeID] = append(adj[e.SourceNodeID], e.TargetNodeID)
	}
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		for _, next := range adj[id] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

func endpointMeta(src, dst Endpoint) map[string]any {
	return map[string]any{
		"source_node_id": src.Node.ID,
		"source_port":    src.Port,
		"target_node_id": dst.Node.ID,
		"target_port":    dst.Port,
	}
}
