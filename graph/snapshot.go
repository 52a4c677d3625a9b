package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/workflow"
)

// Snapshot is an immutable point-in-time copy of the graph.
type Snapshot struct {
	Version uint64 `json:"-"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// Snapshot copies the current nodes and edges in insertion order.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Version: s.version,
		Nodes:   make([]Node, 0, len(s.nodeOrder)),
		Edges:   make([]Edge, 0, len(s.edgeOrder)),
	}
	for _, id := range s.nodeOrder {
		snap.Nodes = append(snap.Nodes, s.nodes[id].clone())
	}
	for _, id := range s.edgeOrder {
		snap.Edges = append(snap.Edges, *s.edges[id])
	}
	return snap
}

// Empty reports whether the snapshot has no nodes.
func (s Snapshot) Empty() bool { return len(s.Nodes) == 0 }

// Hash returns a SHA-256 over the snapshot's canonical JSON. Two
// snapshots with the same content hash equal regardless of version.
// Content JSON cannot encode falls back to its fmt rendering, which also
// prints maps in key order.
func (s Snapshot) Hash() string {
	data, err := json.Marshal(s)
	if err != nil {
		data = fmt.Appendf(nil, "%#v|%#v", s.Nodes, s.Edges)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Definition serialises the snapshot to the oracle/persistence wire form.
func (s Snapshot) Definition() workflow.Definition {
	def := workflow.Definition{
		Components:  make([]workflow.Component, 0, len(s.Nodes)),
		Connections: make([]workflow.Connection, 0, len(s.Edges)),
	}
	for _, n := range s.Nodes {
		data := make(map[string]any, len(n.Config))
		for k, v := range n.Config {
			data[k] = v
		}
		def.Components = append(def.Components, workflow.Component{
			ID:       n.ID,
			Type:     n.TypeID,
			Label:    n.Label,
			Position: n.Position,
			Data:     data,
		})
	}
	for _, e := range s.Edges {
		def.Connections = append(def.Connections, workflow.Connection{
			ID:           e.ID,
			Source:       e.SourceNodeID,
			Target:       e.TargetNodeID,
			SourceHandle: e.SourcePort,
			TargetHandle: e.TargetPort,
		})
	}
	return def
}
