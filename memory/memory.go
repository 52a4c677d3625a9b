// Package memory is a workflow.Store kept in process memory. It backs the
// server when no database is configured and is used in tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
)

// Store implements workflow.Store in memory.
type Store struct {
	mu        sync.RWMutex
	workflows map[string]*workflow.Workflow
	order     []string
	now       func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		workflows: make(map[string]*workflow.Workflow),
		now:       time.Now,
	}
}

func (s *Store) CreateSchema(ctx context.Context) error { return nil }

// DropSchema removes every workflow.
func (s *Store) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows = make(map[string]*workflow.Workflow)
	s.order = nil
	return nil
}

// CreateWorkflow stores a copy of w under a new id and returns it.
func (s *Store) CreateWorkflow(ctx context.Context, w *workflow.Workflow) (*workflow.Workflow, error) {
	if w == nil {
		return nil, workflow.Errorf(workflow.ErrInvalidWorkflow, "workflow is required", nil, nil)
	}
	stored := clone(w)
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now().UTC()
	stored.UpdatedAt = nil

	s.mu.Lock()
	s.workflows[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	s.mu.Unlock()
	return clone(stored), nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, notFound(id)
	}
	return clone(w), nil
}

// ListWorkflows returns workflows in creation order.
func (s *Store) ListWorkflows(ctx context.Context) ([]workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workflow.Workflow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *clone(s.workflows[id]))
	}
	return out, nil
}

// UpdateWorkflow applies the set fields of u. isValid, when non-nil,
// replaces the stored verdict flag.
func (s *Store) UpdateWorkflow(ctx context.Context, id string, u workflow.WorkflowUpdate, isValid *bool) (*workflow.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, notFound(id)
	}
	next := clone(w)
	if u.Name != nil {
		next.Name = *u.Name
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Components != nil {
		next.Components = workflow.Definition{Components: *u.Components}.Clone().Components
	}
	if u.Connections != nil {
		next.Connections = slices.Clone(*u.Connections)
	}
	if isValid != nil {
		next.IsValid = *isValid
	}
	now := s.now().UTC()
	next.UpdatedAt = &now
	s.workflows[id] = next
	return clone(next), nil
}

func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return notFound(id)
	}
	delete(s.workflows, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

func clone(w *workflow.Workflow) *workflow.Workflow {
	c := *w
	def := w.Definition().Clone()
	c.Components = def.Components
	c.Connections = def.Connections
	if w.UpdatedAt != nil {
		t := *w.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

func notFound(id string) error {
	return workflow.Errorf(workflow.ErrWorkflowNotFound,
		fmt.Sprintf("workflow %q not found", id), nil, map[string]any{"workflow_id": id})
}

var _ workflow.Store = (*Store)(nil)
