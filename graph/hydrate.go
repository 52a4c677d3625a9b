package graph

import (
	"fmt"

	"github.com/meikuraledutech/workflow"
)

// Hydrate builds a store from a persisted definition. Every component and
// connection is checked with the same rules the mutation operations apply;
// the first violation aborts hydration. Persisted ids are kept and are
// never handed out again by the new store.
func Hydrate(cat Catalog, def workflow.Definition, opts ...Option) (*Store, error) {
	s := New(cat, opts...)

	for _, c := range def.Components {
		ct, err := s.lookupType(c.Type)
		if err != nil {
			return nil, err
		}
		id := c.ID
		if id == "" {
			if id, err = s.nextID(); err != nil {
				return nil, err
			}
		} else if _, used := s.issued[id]; used {
			return nil, workflow.Errorf(workflow.ErrDuplicateID,
				fmt.Sprintf("duplicate component id %q", id), nil, map[string]any{"node_id": id})
		} else {
			s.issued[id] = struct{}{}
		}

		var config map[string]any
		for key, raw := range c.Data {
			prop, ok := ct.Schema.Lookup(key)
			if !ok {
				return nil, workflow.Errorf(workflow.ErrUnknownConfigKey,
					fmt.Sprintf("%s has no config key %q", ct.TypeID, key), nil,
					map[string]any{"node_id": id, "key": key})
			}
			v, err := CheckValue(prop, raw)
			if err != nil {
				return nil, err
			}
			if config == nil {
				config = make(map[string]any, len(c.Data))
			}
			config[key] = v
		}

		label := c.Label
		if label == "" {
			label = ct.Label
		}
		s.insertNode(&Node{ID: id, TypeID: ct.TypeID, Label: label, Position: c.Position, Config: config})
	}

	for _, conn := range def.Connections {
		sourcePort, targetPort := conn.Ports()
		src, dst, err := s.endpoints(conn.Source, sourcePort, conn.Target, targetPort)
		if err != nil {
			return nil, err
		}
		if err := s.rules.check(src, dst, s.edgeList()); err != nil {
			return nil, err
		}
		id := conn.ID
		if id == "" {
			if id, err = s.nextID(); err != nil {
				return nil, err
			}
		} else if _, used := s.issued[id]; used {
			return nil, workflow.Errorf(workflow.ErrDuplicateID,
				fmt.Sprintf("duplicate connection id %q", id), nil, map[string]any{"edge_id": id})
		} else {
			s.issued[id] = struct{}{}
		}
		s.insertEdge(&Edge{ID: id, SourceNodeID: conn.Source, SourcePort: sourcePort, TargetNodeID: conn.Target, TargetPort: targetPort})
	}
	return s, nil
}
