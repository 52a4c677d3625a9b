package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *catalog.Cache {
	t.Helper()
	c, err := catalog.NewStatic(catalog.Builtin()...)
	require.NoError(t, err)
	return c
}

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithIDGenerator(counterIDs())}, opts...)
	return New(testCatalog(t), opts...)
}

func addNode(t *testing.T, s *Store, typeID string) Node {
	t.Helper()
	n, err := s.AddNode(typeID, workflow.Position{X: 10, Y: 20})
	require.NoError(t, err)
	return n
}

func assertNoDangling(t *testing.T, s *Store) {
	t.Helper()
	snap := s.Snapshot()
	ids := make(map[string]bool, len(snap.Nodes))
	for _, n := range snap.Nodes {
		ids[n.ID] = true
	}
	for _, e := range snap.Edges {
		assert.True(t, ids[e.SourceNodeID], "edge %s has dangling source %s", e.ID, e.SourceNodeID)
		assert.True(t, ids[e.TargetNodeID], "edge %s has dangling target %s", e.ID, e.TargetNodeID)
	}
}

func TestAddNode(t *testing.T) {
	s := newTestStore(t)

	n := addNode(t, s, catalog.TypeLLMEngine)
	assert.Equal(t, "id-1", n.ID)
	assert.Equal(t, "LLM Engine", n.Label)
	assert.Nil(t, n.Config)

	_, err := s.AddNode("teleporter", workflow.Position{})
	assert.True(t, workflow.IsCode(err, workflow.CodeUnknownComponentType))
	assert.Len(t, s.Snapshot().Nodes, 1)
}

func TestAddNode_CatalogUnavailable(t *testing.T) {
	s := New(catalog.New(nil))
	_, err := s.AddNode(catalog.TypeOutput, workflow.Position{})
	assert.True(t, workflow.IsCode(err, workflow.CodeCatalogUnavailable))
}

func TestIDsNeverReused(t *testing.T) {
	gen := []string{"a", "b", "a", "b", "c"}
	i := 0
	s := New(testCatalog(t), WithIDGenerator(func() string {
		id := gen[i%len(gen)]
		i++
		return id
	}))

	a := addNode(t, s, catalog.TypeOutput)
	b := addNode(t, s, catalog.TypeOutput)
	require.NoError(t, s.DeleteNode(a.ID))
	c := addNode(t, s, catalog.TypeOutput)

	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "b", b.ID)
	assert.Equal(t, "c", c.ID, "deleted ids are not handed out again")
}

func TestMoveNode_Idempotent(t *testing.T) {
	s := newTestStore(t)
	n := addNode(t, s, catalog.TypeOutput)

	var events int
	s.Subscribe(func(Event) { events++ })

	p := workflow.Position{X: 100, Y: 200}
	require.NoError(t, s.MoveNode(n.ID, p))
	once, _ := s.Node(n.ID)
	require.NoError(t, s.MoveNode(n.ID, p))
	twice, _ := s.Node(n.ID)

	assert.Equal(t, once.Position, twice.Position)
	assert.Equal(t, p, twice.Position)
	assert.Equal(t, 1, events)

	err := s.MoveNode("missing", p)
	assert.True(t, workflow.IsCode(err, workflow.CodeNodeNotFound))
}

func TestConnect(t *testing.T) {
	s := newTestStore(t)
	q := addNode(t, s, catalog.TypeUserQuery)
	kb := addNode(t, s, catalog.TypeKnowledgeBase)

	e, err := s.Connect(q.ID, "query", kb.ID, "query")
	require.NoError(t, err)
	assert.Equal(t, q.ID, e.SourceNodeID)
	assert.Equal(t, "query", e.TargetPort)

	got, ok := s.Edge(e.ID)
	require.True(t, ok)
	assert.Equal(t, e, got)
}

func TestConnect_Errors(t *testing.T) {
	s := newTestStore(t)
	q := addNode(t, s, catalog.TypeUserQuery)
	kb := addNode(t, s, catalog.TypeKnowledgeBase)
	llm := addNode(t, s, catalog.TypeLLMEngine)

	cases := []struct {
		name                       string
		src, srcPort, dst, dstPort string
		code                       string
	}{
		{"missing source", "nope", "query", kb.ID, "query", workflow.CodeNodeNotFound},
		{"missing target", q.ID, "query", "nope", "query", workflow.CodeNodeNotFound},
		{"undeclared output", q.ID, "response", kb.ID, "query", workflow.CodeInvalidPort},
		{"undeclared input", q.ID, "query", kb.ID, "context", workflow.CodeInvalidPort},
		{"input used as source", kb.ID, "query", llm.ID, "query", workflow.CodeInvalidPort},
		{"self loop", llm.ID, "response", llm.ID, "query", workflow.CodeIncompatiblePorts},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Connect(tc.src, tc.srcPort, tc.dst, tc.dstPort)
			require.Error(t, err)
			assert.Equal(t, tc.code, workflow.Code(err))
			assert.Equal(t, workflow.ClassStructural, workflow.ClassOf(workflow.Code(err)))
		})
	}
	assert.Empty(t, s.Snapshot().Edges)
}

func TestConnect_SelfLoopRejectedByDefault(t *testing.T) {
	cat, err := catalog.NewStatic(catalog.ComponentType{
		TypeID: "loop", Label: "Loop", Inputs: []string{"in"}, Outputs: []string{"out"},
		Schema: catalog.NewSchema(),
	})
	require.NoError(t, err)

	s := New(cat, WithIDGenerator(counterIDs()))
	n, err := s.AddNode("loop", workflow.Position{})
	require.NoError(t, err)

	_, err = s.Connect(n.ID, "out", n.ID, "in")
	assert.True(t, workflow.IsCode(err, workflow.CodeIncompatiblePorts))

	permissive := New(cat, WithRules(Rules{AllowSelfLoops: true}))
	m, err := permissive.AddNode("loop", workflow.Position{})
	require.NoError(t, err)
	_, err = permissive.Connect(m.ID, "out", m.ID, "in")
	assert.NoError(t, err)
}

func TestConnect_AllowsCyclesByDefault(t *testing.T) {
	s := newTestStore(t)
	kb := addNode(t, s, catalog.TypeKnowledgeBase)
	llm := addNode(t, s, catalog.TypeLLMEngine)

	_, err := s.Connect(kb.ID, "context", llm.ID, "context")
	require.NoError(t, err)
	_, err = s.Connect(llm.ID, "response", kb.ID, "query")
	require.NoError(t, err)
	assert.Len(t, s.Snapshot().Edges, 2)
}

func TestConnect_RejectsCyclesWhenConfigured(t *testing.T) {
	cat, err := catalog.NewStatic(catalog.ComponentType{
		TypeID: "pipe", Label: "Pipe", Inputs: []string{"in", "loop"}, Outputs: []string{"out"},
		Schema: catalog.NewSchema(),
	})
	require.NoError(t, err)
	s := New(cat, WithIDGenerator(counterIDs()), WithRules(Rules{RejectCycles: true}))
	a, _ := s.AddNode("pipe", workflow.Position{})
	b, _ := s.AddNode("pipe", workflow.Position{})
	c, _ := s.AddNode("pipe", workflow.Position{})

	_, err = s.Connect(a.ID, "out", b.ID, "in")
	require.NoError(t, err)
	_, err = s.Connect(b.ID, "out", c.ID, "in")
	require.NoError(t, err)

	_, err = s.Connect(c.ID, "out", a.ID, "loop")
	assert.True(t, workflow.IsCode(err, workflow.CodeIncompatiblePorts))
	assert.Len(t, s.Snapshot().Edges, 2)
}

func TestConnect_PortAlreadyConnected(t *testing.T) {
	s := newTestStore(t)
	a := addNode(t, s, catalog.TypeUserQuery)
	b := addNode(t, s, catalog.TypeKnowledgeBase)
	c := addNode(t, s, catalog.TypeUserQuery)

	first, err := s.Connect(a.ID, "query", b.ID, "query")
	require.NoError(t, err)

	_, err = s.Connect(c.ID, "query", b.ID, "query")
	require.Error(t, err)
	assert.True(t, workflow.IsCode(err, workflow.CodePortAlreadyConnected))

	_, err = s.Connect(a.ID, "query", b.ID, "query")
	assert.True(t, workflow.IsCode(err, workflow.CodePortAlreadyConnected), "duplicate edge")

	edges := s.Snapshot().Edges
	require.Len(t, edges, 1)
	assert.Equal(t, first, edges[0])
}

func TestConnect_OutputFanOut(t *testing.T) {
	s := newTestStore(t)
	q := addNode(t, s, catalog.TypeUserQuery)
	kb := addNode(t, s, catalog.TypeKnowledgeBase)
	ws := addNode(t, s, catalog.TypeWebSearch)
	llm := addNode(t, s, catalog.TypeLLMEngine)

	for _, target := range []string{kb.ID, ws.ID, llm.ID} {
		_, err := s.Connect(q.ID, "query", target, "query")
		require.NoError(t, err)
	}
	assert.Len(t, s.Snapshot().Edges, 3)
}

func TestDisconnect(t *testing.T) {
	s := newTestStore(t)
	q := addNode(t, s, catalog.TypeUserQuery)
	kb := addNode(t, s, catalog.TypeKnowledgeBase)
	e, err := s.Connect(q.ID, "query", kb.ID, "query")
	require.NoError(t, err)

	require.NoError(t, s.Disconnect(e.ID))
	err = s.Disconnect(e.ID)
	assert.True(t, workflow.IsCode(err, workflow.CodeEdgeNotFound))
	assert.Empty(t, s.Snapshot().Edges)
	assert.Len(t, s.Snapshot().Nodes, 2)

	_, err = s.Connect(q.ID, "query", kb.ID, "query")
	assert.NoError(t, err, "input is free again")
}

func TestDeleteNode_Cascade(t *testing.T) {
	s := newTestStore(t)
	a := addNode(t, s, catalog.TypeUserQuery)
	b := addNode(t, s, catalog.TypeKnowledgeBase)
	c := addNode(t, s, catalog.TypeLLMEngine)
	_, err := s.Connect(a.ID, "query", b.ID, "query")
	require.NoError(t, err)
	_, err = s.Connect(b.ID, "context", c.ID, "context")
	require.NoError(t, err)

	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	require.NoError(t, s.DeleteNode(b.ID))

	snap := s.Snapshot()
	require.Len(t, snap.Nodes, 2)
	assert.Equal(t, a.ID, snap.Nodes[0].ID)
	assert.Equal(t, c.ID, snap.Nodes[1].ID)
	assert.Empty(t, snap.Edges)

	require.Len(t, events, 1, "cascade is a single notification")
	assert.Equal(t, NodeDeleted, events[0].Kind)
	assert.Len(t, events[0].RemovedEdges, 2)

	err = s.DeleteNode(b.ID)
	assert.True(t, workflow.IsCode(err, workflow.CodeNodeNotFound))
}

func TestDeleteNode_KeepsUnrelatedEdges(t *testing.T) {
	s := newTestStore(t)
	q := addNode(t, s, catalog.TypeUserQuery)
	kb := addNode(t, s, catalog.TypeKnowledgeBase)
	llm := addNode(t, s, catalog.TypeLLMEngine)
	out := addNode(t, s, catalog.TypeOutput)

	_, err := s.Connect(q.ID, "query", kb.ID, "query")
	require.NoError(t, err)
	keep, err := s.Connect(llm.ID, "response", out.ID, "response")
	require.NoError(t, err)

	require.NoError(t, s.DeleteNode(kb.ID))
	edges := s.Snapshot().Edges
	require.Len(t, edges, 1)
	assert.Equal(t, keep.ID, edges[0].ID)
}

func TestUpdateConfig(t *testing.T) {
	s := newTestStore(t)
	llm := addNode(t, s, catalog.TypeLLMEngine)

	require.NoError(t, s.UpdateConfig(llm.ID, "max_tokens", 800))
	n, _ := s.Node(llm.ID)
	assert.Equal(t, int64(800), n.Config["max_tokens"])
	assert.Equal(t, "gemini", n.Config["provider"], "first edit seeds defaults")
	assert.Equal(t, 0.7, n.Config["temperature"])

	require.NoError(t, s.UpdateConfig(llm.ID, "temperature", 1.5))
	require.NoError(t, s.UpdateConfig(llm.ID, "provider", "openai"))
	require.NoError(t, s.UpdateConfig(llm.ID, "use_web_search", true))
	require.NoError(t, s.UpdateConfig(llm.ID, "max_tokens", float64(20)))

	n, _ = s.Node(llm.ID)
	assert.Equal(t, int64(20), n.Config["max_tokens"])
	assert.Equal(t, 1.5, n.Config["temperature"])
	assert.Equal(t, "openai", n.Config["provider"])
	assert.Equal(t, true, n.Config["use_web_search"])
}

func TestUpdateConfig_Rejections(t *testing.T) {
	s := newTestStore(t)
	llm := addNode(t, s, catalog.TypeLLMEngine)
	require.NoError(t, s.UpdateConfig(llm.ID, "model", "gpt-4o"))
	before, _ := s.Node(llm.ID)

	cases := []struct {
		name  string
		key   string
		value any
		code  string
	}{
		{"text into integer", "max_tokens", "abc", workflow.CodeConfigTypeMismatch},
		{"fraction into integer", "max_tokens", 2.5, workflow.CodeConfigTypeMismatch},
		{"integer beyond int64", "max_tokens", 1e19, workflow.CodeConfigTypeMismatch},
		{"infinite number", "temperature", math.Inf(1), workflow.CodeConfigTypeMismatch},
		{"not a number", "temperature", math.NaN(), workflow.CodeConfigTypeMismatch},
		{"number into string", "model", 3, workflow.CodeConfigTypeMismatch},
		{"string into boolean", "use_web_search", "yes", workflow.CodeConfigTypeMismatch},
		{"above max", "max_tokens", 5000, workflow.CodeConfigOutOfRange},
		{"below min", "temperature", -0.1, workflow.CodeConfigOutOfRange},
		{"not in enum", "provider", "anthropic", workflow.CodeConfigOutOfRange},
		{"unknown key", "colour", "red", workflow.CodeUnknownConfigKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.UpdateConfig(llm.ID, tc.key, tc.value)
			require.Error(t, err)
			assert.Equal(t, tc.code, workflow.Code(err))
			assert.Equal(t, workflow.ClassConfig, workflow.ClassOf(workflow.Code(err)))

			after, _ := s.Node(llm.ID)
			assert.Equal(t, before.Config, after.Config)
		})
	}

	err := s.UpdateConfig("missing", "model", "x")
	assert.True(t, workflow.IsCode(err, workflow.CodeNodeNotFound))
}

func TestUpdateConfig_UnboundedNumericsStayFinite(t *testing.T) {
	cat, err := catalog.NewStatic(catalog.ComponentType{
		TypeID: "counter", Label: "Counter", Outputs: []string{"out"},
		Schema: catalog.NewSchema(
			catalog.IntegerProperty{Meta: catalog.Meta{Name: "count"}},
			catalog.NumberProperty{Meta: catalog.Meta{Name: "weight"}},
		),
	})
	require.NoError(t, err)
	s := New(cat, WithIDGenerator(counterIDs()))
	n, err := s.AddNode("counter", workflow.Position{})
	require.NoError(t, err)

	for _, v := range []any{1e19, -1e19, math.Inf(-1)} {
		err := s.UpdateConfig(n.ID, "count", v)
		assert.True(t, workflow.IsCode(err, workflow.CodeConfigTypeMismatch), "count=%v", v)
	}
	for _, v := range []any{math.Inf(1), math.Inf(-1)} {
		err := s.UpdateConfig(n.ID, "weight", v)
		assert.True(t, workflow.IsCode(err, workflow.CodeConfigTypeMismatch), "weight=%v", v)
	}

	require.NoError(t, s.UpdateConfig(n.ID, "weight", 1e300))
	snap := s.Snapshot()
	assert.NotEmpty(t, snap.Hash())
	_, err = json.Marshal(snap.Definition())
	assert.NoError(t, err)
}

func TestSnapshot_HashNeverEmpty(t *testing.T) {
	snap := Snapshot{Nodes: []Node{{ID: "a", Config: map[string]any{"w": math.Inf(1)}}}}
	h := snap.Hash()
	assert.Len(t, h, 64)

	other := Snapshot{Nodes: []Node{{ID: "a", Config: map[string]any{"w": math.Inf(-1)}}}}
	assert.NotEqual(t, h, other.Hash())
}

func TestSnapshot_Isolated(t *testing.T) {
	s := newTestStore(t)
	llm := addNode(t, s, catalog.TypeLLMEngine)
	require.NoError(t, s.UpdateConfig(llm.ID, "model", "a"))

	snap := s.Snapshot()
	hash := snap.Hash()
	require.NoError(t, s.UpdateConfig(llm.ID, "model", "b"))
	require.NoError(t, s.MoveNode(llm.ID, workflow.Position{X: 1}))

	assert.Equal(t, "a", snap.Nodes[0].Config["model"])
	assert.Equal(t, hash, snap.Hash())
	assert.NotEqual(t, hash, s.Snapshot().Hash())

	snap.Nodes[0].Config["model"] = "mutated"
	n, _ := s.Node(llm.ID)
	assert.Equal(t, "b", n.Config["model"])
}

func TestSnapshot_HashIgnoresVersion(t *testing.T) {
	s := newTestStore(t)
	n := addNode(t, s, catalog.TypeOutput)
	before := s.Snapshot()

	require.NoError(t, s.MoveNode(n.ID, workflow.Position{X: 99}))
	require.NoError(t, s.MoveNode(n.ID, workflow.Position{X: 10, Y: 20}))
	after := s.Snapshot()

	assert.NotEqual(t, before.Version, after.Version)
	assert.Equal(t, before.Hash(), after.Hash())
}

func TestEvents_OnePerMutation(t *testing.T) {
	s := newTestStore(t)
	var kinds []EventKind
	unsubscribe := s.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	q := addNode(t, s, catalog.TypeUserQuery)
	kb := addNode(t, s, catalog.TypeKnowledgeBase)
	e, err := s.Connect(q.ID, "query", kb.ID, "query")
	require.NoError(t, err)
	require.NoError(t, s.UpdateConfig(kb.ID, "max_results", 5))
	require.NoError(t, s.MoveNode(kb.ID, workflow.Position{X: 5}))
	require.NoError(t, s.Disconnect(e.ID))
	_, _ = s.Connect(q.ID, "nope", kb.ID, "query")

	assert.Equal(t, []EventKind{NodeAdded, NodeAdded, EdgeAdded, ConfigUpdated, NodeMoved, EdgeRemoved}, kinds)
	assert.Equal(t, uint64(6), s.Version())

	unsubscribe()
	addNode(t, s, catalog.TypeOutput)
	assert.Len(t, kinds, 6)
}

func TestRandomOperations_NoDanglingEdges(t *testing.T) {
	s := newTestStore(t)
	rng := rand.New(rand.NewPCG(7, 11))
	types := catalog.Builtin()

	for step := 0; step < 2000; step++ {
		snap := s.Snapshot()
		switch op := rng.IntN(10); {
		case op < 3 || len(snap.Nodes) < 2:
			ct := types[rng.IntN(len(types))]
			_, err := s.AddNode(ct.TypeID, workflow.Position{X: rng.Float64() * 500, Y: rng.Float64() * 500})
			require.NoError(t, err)
		case op < 6:
			src := snap.Nodes[rng.IntN(len(snap.Nodes))]
			dst := snap.Nodes[rng.IntN(len(snap.Nodes))]
			srcType, _ := s.Type(src.ID)
			dstType, _ := s.Type(dst.ID)
			if len(srcType.Outputs) == 0 || len(dstType.Inputs) == 0 {
				continue
			}
			_, _ = s.Connect(src.ID, srcType.Outputs[rng.IntN(len(srcType.Outputs))],
				dst.ID, dstType.Inputs[rng.IntN(len(dstType.Inputs))])
		case op < 8:
			require.NoError(t, s.DeleteNode(snap.Nodes[rng.IntN(len(snap.Nodes))].ID))
		case op < 9 && len(snap.Edges) > 0:
			require.NoError(t, s.Disconnect(snap.Edges[rng.IntN(len(snap.Edges))].ID))
		default:
			n := snap.Nodes[rng.IntN(len(snap.Nodes))]
			require.NoError(t, s.MoveNode(n.ID, workflow.Position{X: float64(step)}))
		}
		assertNoDangling(t, s)
	}

	occupied := make(map[string]bool)
	for _, e := range s.Snapshot().Edges {
		key := e.TargetNodeID + "." + e.TargetPort
		assert.False(t, occupied[key], "input %s has more than one producer", key)
		occupied[key] = true
	}
}
