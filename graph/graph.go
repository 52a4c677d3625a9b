// Package graph is the canonical in-memory model of a workflow being
// edited: nodes typed by catalog component types, edges between their
// ports, and the mutation operations that keep the pair well-formed.
//
// All writes go through Store. Each successful mutation is applied
// atomically and then announced to subscribers as a single Event, so a
// node delete that cascades to its edges is one notification.
package graph

import (
	"maps"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
)

// Node is a placed component.
// Config is nil until the first edit seeds it from the schema defaults.
type Node struct {
	ID       string            `json:"id"`
	TypeID   string            `json:"type"`
	Label    string            `json:"label"`
	Position workflow.Position `json:"position"`
	Config   map[string]any    `json:"config,omitempty"`
}

func (n Node) clone() Node {
	if n.Config != nil {
		n.Config = maps.Clone(n.Config)
	}
	return n
}

// Edge connects an output port of one node to an input port of another.
type Edge struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source"`
	SourcePort   string `json:"source_port"`
	TargetNodeID string `json:"target"`
	TargetPort   string `json:"target_port"`
}

// Catalog resolves component types. *catalog.Cache satisfies it.
type Catalog interface {
	Lookup(typeID string) (catalog.ComponentType, error)
}

// EventKind names the mutation an Event reports.
type EventKind string

const (
	NodeAdded     EventKind = "node_added"
	NodeMoved     EventKind = "node_moved"
	NodeDeleted   EventKind = "node_deleted"
	EdgeAdded     EventKind = "edge_added"
	EdgeRemoved   EventKind = "edge_removed"
	ConfigUpdated EventKind = "config_updated"
)

// Event is emitted once per successful mutation.
type Event struct {
	Kind    EventKind
	Version uint64
	NodeID  string
	EdgeID  string
	// RemovedEdges lists the edges a node delete cascaded to.
	RemovedEdges []string
}

// Listener receives change events. It runs synchronously on the goroutine
// that performed the mutation, after the store lock is released.
type Listener func(Event)
