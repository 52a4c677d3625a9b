package graph

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
)

const maxIDAttempts = 16

// Store owns the nodes and edges of one editing session.
type Store struct {
	catalog Catalog
	rules   Rules
	newID   func() string
	logger  *slog.Logger

	mu        sync.RWMutex
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string]*Edge
	edgeOrder []string
	issued    map[string]struct{}
	version   uint64
	listeners []Listener
}

// Option configures a Store.
type Option func(*Store)

// WithRules replaces the default port compatibility rules.
func WithRules(r Rules) Option {
	return func(s *Store) { s.rules = r }
}

// WithIDGenerator replaces the UUID generator used for node and edge ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty store for a fresh editing session.
func New(cat Catalog, opts ...Option) *Store {
	s := &Store{
		catalog: cat,
		rules:   DefaultRules(),
		newID:   uuid.NewString,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		nodes:   make(map[string]*Node),
		edges:   make(map[string]*Edge),
		issued:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers l for change events and returns a function that
// removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
	idx := len(s.listeners) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

// commit bumps the version and returns the event plus the listeners to
// notify. Callers hold the write lock.
func (s *Store) commit(ev Event) (Event, []Listener) {
	s.version++
	ev.Version = s.version
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		if l != nil {
			ls = append(ls, l)
		}
	}
	return ev, ls
}

func notify(ev Event, ls []Listener) {
	for _, l := range ls {
		l(ev)
	}
}

func (s *Store) nextID() (string, error) {
	for range maxIDAttempts {
		id := s.newID()
		if id == "" {
			continue
		}
		if _, used := s.issued[id]; !used {
			s.issued[id] = struct{}{}
			return id, nil
		}
	}
	return "", workflow.Errorf(workflow.ErrDuplicateID, "id generator keeps returning used ids", nil, nil)
}

func (s *Store) lookupType(typeID string) (catalog.ComponentType, error) {
	if s.catalog == nil {
		return catalog.ComponentType{}, workflow.Errorf(workflow.ErrCatalogUnavailable, "", nil, nil)
	}
	ct, err := s.catalog.Lookup(typeID)
	if err == nil {
		return ct, nil
	}
	if workflow.IsCode(err, workflow.CodeCatalogUnavailable) {
		return catalog.ComponentType{}, err
	}
	return catalog.ComponentType{}, workflow.Errorf(workflow.ErrUnknownComponentType,
		fmt.Sprintf("unknown component type %q", typeID), err, map[string]any{"type_id": typeID})
}

func nodeNotFound(id string) error {
	return workflow.Errorf(workflow.ErrNodeNotFound,
		fmt.Sprintf("node %q not found", id), nil, map[string]any{"node_id": id})
}

func edgeNotFound(id string) error {
	return workflow.Errorf(workflow.ErrEdgeNotFound,
		fmt.Sprintf("edge %q not found", id), nil, map[string]any{"edge_id": id})
}

// AddNode places a new node of typeID at pos.
func (s *Store) AddNode(typeID string, pos workflow.Position) (Node, error) {
	ct, err := s.lookupType(typeID)
	if err != nil {
		return Node{}, err
	}

	s.mu.Lock()
	id, err := s.nextID()
	if err != nil {
		s.mu.Unlock()
		return Node{}, err
	}
	n := &Node{ID: id, TypeID: ct.TypeID, Label: ct.Label, Position: pos}
	s.insertNode(n)
	out := n.clone()
	ev, ls := s.commit(Event{Kind: NodeAdded, NodeID: id})
	s.mu.Unlock()

	s.logger.Debug("node added", "node_id", id, "type_id", typeID)
	notify(ev, ls)
	return out, nil
}

func (s *Store) insertNode(n *Node) {
	s.nodes[n.ID] = n
	s.nodeOrder = append(s.nodeOrder, n.ID)
}

// MoveNode sets a node's position. Moving a node to where it already is
// succeeds without emitting an event.
func (s *Store) MoveNode(id string, pos workflow.Position) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return nodeNotFound(id)
	}
	if n.Position == pos {
		s.mu.Unlock()
		return nil
	}
	n.Position = pos
	ev, ls := s.commit(Event{Kind: NodeMoved, NodeID: id})
	s.mu.Unlock()

	notify(ev, ls)
	return nil
}

// Connect adds an edge from sourceID.sourcePort to targetID.targetPort.
func (s *Store) Connect(sourceID, sourcePort, targetID, targetPort string) (Edge, error) {
	s.mu.Lock()
	src, dst, err := s.endpoints(sourceID, sourcePort, targetID, targetPort)
	if err != nil {
		s.mu.Unlock()
		return Edge{}, err
	}
	if err := s.rules.check(src, dst, s.edgeList()); err != nil {
		s.mu.Unlock()
		return Edge{}, err
	}
	id, err := s.nextID()
	if err != nil {
		s.mu.Unlock()
		return Edge{}, err
	}
	e := &Edge{ID: id, SourceNodeID: sourceID, SourcePort: sourcePort, TargetNodeID: targetID, TargetPort: targetPort}
	s.insertEdge(e)
	out := *e
	ev, ls := s.commit(Event{Kind: EdgeAdded, EdgeID: id})
	s.mu.Unlock()

	s.logger.Debug("edge added", "edge_id", id, "source", sourceID, "target", targetID)
	notify(ev, ls)
	return out, nil
}

// endpoints resolves and port-checks both sides. Callers hold the lock.
func (s *Store) endpoints(sourceID, sourcePort, targetID, targetPort string) (Endpoint, Endpoint, error) {
	srcNode, ok := s.nodes[sourceID]
	if !ok {
		return Endpoint{}, Endpoint{}, nodeNotFound(sourceID)
	}
	dstNode, ok := s.nodes[targetID]
	if !ok {
		return Endpoint{}, Endpoint{}, nodeNotFound(targetID)
	}
	srcType, err := s.lookupType(srcNode.TypeID)
	if err != nil {
		return Endpoint{}, Endpoint{}, err
	}
	dstType, err := s.lookupType(dstNode.TypeID)
	if err != nil {
		return Endpoint{}, Endpoint{}, err
	}
	if !srcType.HasOutput(sourcePort) {
		return Endpoint{}, Endpoint{}, invalidPort(sourceID, srcType.TypeID, sourcePort, "output")
	}
	if !dstType.HasInput(targetPort) {
		return Endpoint{}, Endpoint{}, invalidPort(targetID, dstType.TypeID, targetPort, "input")
	}
	return Endpoint{Node: *srcNode, Type: srcType, Port: sourcePort},
		Endpoint{Node: *dstNode, Type: dstType, Port: targetPort}, nil
}

func invalidPort(nodeID, typeID, port, direction string) error {
	return workflow.Errorf(workflow.ErrInvalidPort,
		fmt.Sprintf("%s has no %s port %q", typeID, direction, port), nil,
		map[string]any{"node_id": nodeID, "port": port, "direction": direction})
}

func (s *Store) insertEdge(e *Edge) {
	s.edges[e.ID] = e
	s.edgeOrder = append(s.edgeOrder, e.ID)
}

func (s *Store) edgeList() []*Edge {
	out := make([]*Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		out = append(out, s.edges[id])
	}
	return out
}

// Disconnect removes an edge.
func (s *Store) Disconnect(edgeID string) error {
	s.mu.Lock()
	if _, ok := s.edges[edgeID]; !ok {
		s.mu.Unlock()
		return edgeNotFound(edgeID)
	}
	s.removeEdges(map[string]bool{edgeID: true})
	ev, ls := s.commit(Event{Kind: EdgeRemoved, EdgeID: edgeID})
	s.mu.Unlock()

	notify(ev, ls)
	return nil
}

func (s *Store) removeEdges(ids map[string]bool) {
	kept := s.edgeOrder[:0]
	for _, id := range s.edgeOrder {
		if ids[id] {
			delete(s.edges, id)
			continue
		}
		kept = append(kept, id)
	}
	s.edgeOrder = kept
}

// DeleteNode removes a node and every edge incident to it as one mutation.
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return nodeNotFound(id)
	}
	incident := make(map[string]bool)
	var removed []string
	for _, eid := range s.edgeOrder {
		e := s.edges[eid]
		if e.SourceNodeID == id || e.TargetNodeID == id {
			incident[eid] = true
			removed = append(removed, eid)
		}
	}
	s.removeEdges(incident)
	delete(s.nodes, id)
	for i, nid := range s.nodeOrder {
		if nid == id {
			s.nodeOrder = append(s.nodeOrder[:i], s.nodeOrder[i+1:]...)
			break
		}
	}
	ev, ls := s.commit(Event{Kind: NodeDeleted, NodeID: id, RemovedEdges: removed})
	s.mu.Unlock()

	s.logger.Debug("node deleted", "node_id", id, "removed_edges", len(removed))
	notify(ev, ls)
	return nil
}

// UpdateConfig sets one config key on a node. The first edit seeds the
// node's config with the schema defaults; other keys are left untouched.
func (s *Store) UpdateConfig(nodeID, key string, value any) error {
	s.mu.Lock()
	n, ok := s.nodes[nodeID]
	if !ok {
		s.mu.Unlock()
		return nodeNotFound(nodeID)
	}
	ct, err := s.lookupType(n.TypeID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	prop, ok := ct.Schema.Lookup(key)
	if !ok {
		s.mu.Unlock()
		return workflow.Errorf(workflow.ErrUnknownConfigKey,
			fmt.Sprintf("%s has no config key %q", ct.TypeID, key), nil,
			map[string]any{"node_id": nodeID, "key": key})
	}
	v, err := CheckValue(prop, value)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	next := n.Config
	if next == nil {
		next = ct.Schema.Defaults()
	} else {
		next = maps.Clone(next)
	}
	next[key] = v
	n.Config = next
	ev, ls := s.commit(Event{Kind: ConfigUpdated, NodeID: nodeID})
	s.mu.Unlock()

	notify(ev, ls)
	return nil
}

// Node returns a copy of the node with id.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Edge returns a copy of the edge with id.
func (s *Store) Edge(id string) (Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// Version counts successful mutations.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Type resolves a node's component type.
func (s *Store) Type(nodeID string) (catalog.ComponentType, error) {
	s.mu.RLock()
	n, ok := s.nodes[nodeID]
	s.mu.RUnlock()
	if !ok {
		return catalog.ComponentType{}, nodeNotFound(nodeID)
	}
	return s.lookupType(n.TypeID)
}

// CanConnect reports whether Connect would succeed, without mutating.
func (s *Store) CanConnect(sourceID, sourcePort, targetID, targetPort string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, dst, err := s.endpoints(sourceID, sourcePort, targetID, targetPort)
	if err != nil {
		return err
	}
	return s.rules.check(src, dst, s.edgeList())
}
