package memory

import (
	"context"
	"testing"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
	"github.com/meikuraledutech/workflow/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *workflow.Workflow {
	return &workflow.Workflow{
		Name: "support bot",
		Components: []workflow.Component{
			{ID: "q", Type: catalog.TypeUserQuery, Data: map[string]any{}},
			{ID: "o", Type: catalog.TypeOutput, Data: map[string]any{}},
		},
		Connections: []workflow.Connection{{ID: "c1", Source: "q", Target: "o"}},
	}
}

func TestCreateGetList(t *testing.T) {
	ctx := context.Background()
	s := New()

	in := sample()
	created, err := s.CreateWorkflow(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, in.ID, "input is not modified")
	assert.False(t, created.CreatedAt.IsZero())
	assert.Nil(t, created.UpdatedAt)

	got, err := s.GetWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	second, err := s.CreateWorkflow(ctx, &workflow.Workflow{Name: "second"})
	require.NoError(t, err)

	list, err := s.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestReturnedWorkflowsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	created, err := s.CreateWorkflow(ctx, sample())
	require.NoError(t, err)

	created.Components[0].Data["placeholder"] = "mutated"
	created.Name = "mutated"

	got, err := s.GetWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "support bot", got.Name)
	assert.NotContains(t, got.Components[0].Data, "placeholder")
}

func TestUpdateWorkflow(t *testing.T) {
	ctx := context.Background()
	s := New()
	created, err := s.CreateWorkflow(ctx, sample())
	require.NoError(t, err)

	name := "renamed"
	valid := true
	updated, err := s.UpdateWorkflow(ctx, created.ID, workflow.WorkflowUpdate{Name: &name}, &valid)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.True(t, updated.IsValid)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, created.Components, updated.Components, "unset fields are kept")

	empty := []workflow.Connection{}
	updated, err = s.UpdateWorkflow(ctx, created.ID, workflow.WorkflowUpdate{Connections: &empty}, nil)
	require.NoError(t, err)
	assert.Empty(t, updated.Connections)
	assert.True(t, updated.IsValid, "nil isValid leaves the flag")
}

func TestMissingWorkflow(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetWorkflow(ctx, "nope")
	assert.True(t, workflow.IsCode(err, workflow.CodeWorkflowNotFound))
	_, err = s.UpdateWorkflow(ctx, "nope", workflow.WorkflowUpdate{}, nil)
	assert.True(t, workflow.IsCode(err, workflow.CodeWorkflowNotFound))
	assert.True(t, workflow.IsCode(s.DeleteWorkflow(ctx, "nope"), workflow.CodeWorkflowNotFound))
}

func TestDeleteWorkflow(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, err := s.CreateWorkflow(ctx, sample())
	require.NoError(t, err)
	b, err := s.CreateWorkflow(ctx, sample())
	require.NoError(t, err)

	require.NoError(t, s.DeleteWorkflow(ctx, a.ID))
	list, err := s.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	require.NoError(t, s.DropSchema(ctx))
	list, err = s.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGraphSurvivesPersistence(t *testing.T) {
	ctx := context.Background()
	cat, err := catalog.NewStatic(catalog.Builtin()...)
	require.NoError(t, err)

	g := graph.New(cat)
	q, err := g.AddNode(catalog.TypeUserQuery, workflow.Position{X: 0, Y: 0})
	require.NoError(t, err)
	llm, err := g.AddNode(catalog.TypeLLMEngine, workflow.Position{X: 200, Y: 0})
	require.NoError(t, err)
	out, err := g.AddNode(catalog.TypeOutput, workflow.Position{X: 400, Y: 0})
	require.NoError(t, err)
	_, err = g.Connect(q.ID, "query", llm.ID, "query")
	require.NoError(t, err)
	_, err = g.Connect(llm.ID, "response", out.ID, "response")
	require.NoError(t, err)
	require.NoError(t, g.UpdateConfig(llm.ID, "max_tokens", 800))
	want := g.Snapshot()

	def := want.Definition()
	s := New()
	created, err := s.CreateWorkflow(ctx, &workflow.Workflow{
		Name:        "persisted",
		Components:  def.Components,
		Connections: def.Connections,
	})
	require.NoError(t, err)

	loaded, err := s.GetWorkflow(ctx, created.ID)
	require.NoError(t, err)
	h, err := graph.Hydrate(cat, loaded.Definition())
	require.NoError(t, err)

	got := h.Snapshot()
	assert.Equal(t, want.Nodes, got.Nodes)
	assert.Equal(t, want.Edges, got.Edges)
}
