package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/workflow"
)

const workflowColumns = `id, name, description, components, connections, is_valid, created_at, updated_at`

func scanWorkflow(row pgx.Row) (*workflow.Workflow, error) {
	var w workflow.Workflow
	if err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Components, &w.Connections,
		&w.IsValid, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	normalize(&w)
	return &w, nil
}

// normalize replaces nil lists so they are stored and returned as [].
func normalize(w *workflow.Workflow) {
	if w.Components == nil {
		w.Components = []workflow.Component{}
	}
	if w.Connections == nil {
		w.Connections = []workflow.Connection{}
	}
}

// applyUpdate copies the set fields of u onto w.
func applyUpdate(w *workflow.Workflow, u workflow.WorkflowUpdate, isValid *bool) {
	if u.Name != nil {
		w.Name = *u.Name
	}
	if u.Description != nil {
		w.Description = *u.Description
	}
	if u.Components != nil {
		w.Components = *u.Components
	}
	if u.Connections != nil {
		w.Connections = *u.Connections
	}
	if isValid != nil {
		w.IsValid = *isValid
	}
	normalize(w)
}

func notFound(id string) error {
	return workflow.Errorf(workflow.ErrWorkflowNotFound,
		fmt.Sprintf("workflow %q not found", id), nil, map[string]any{"workflow_id": id})
}

// CreateWorkflow inserts w under a new UUID and returns the stored row.
func (s *Store) CreateWorkflow(ctx context.Context, w *workflow.Workflow) (*workflow.Workflow, error) {
	if w == nil {
		return nil, workflow.Errorf(workflow.ErrInvalidWorkflow, "workflow is required", nil, nil)
	}
	in := *w
	in.ID = uuid.NewString()
	normalize(&in)

	out, err := scanWorkflow(s.db.QueryRow(ctx,
		`INSERT INTO workflows (id, name, description, components, connections, is_valid, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+workflowColumns,
		in.ID, in.Name, in.Description, in.Components, in.Connections, in.IsValid, s.now().UTC(),
	))
	if err != nil {
		return nil, fmt.Errorf("workflow: insert workflow: %w", err)
	}
	return out, nil
}

// GetWorkflow fetches a workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	w, err := scanWorkflow(s.db.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("workflow: get workflow: %w", err)
	}
	return w, nil
}

// ListWorkflows returns all workflows ordered by created_at.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListWorkflows(ctx context.Context) ([]workflow.Workflow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+workflowColumns+` FROM workflows ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("workflow: list workflows: %w", err)
	}
	defer rows.Close()

	out := []workflow.Workflow{}
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("workflow: scan workflow: %w", err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: rows workflows: %w", err)
	}
	return out, nil
}

// UpdateWorkflow applies a partial update in one transaction. The row is
// locked while the update is merged.
func (s *Store) UpdateWorkflow(ctx context.Context, id string, u workflow.WorkflowUpdate, isValid *bool) (*workflow.Workflow, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("workflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := scanWorkflow(tx.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("workflow: load workflow: %w", err)
	}

	applyUpdate(w, u, isValid)
	out, err := scanWorkflow(tx.QueryRow(ctx,
		`UPDATE workflows
		 SET name = $2, description = $3, components = $4, connections = $5, is_valid = $6, updated_at = $7
		 WHERE id = $1
		 RETURNING `+workflowColumns,
		id, w.Name, w.Description, w.Components, w.Connections, w.IsValid, s.now().UTC(),
	))
	if err != nil {
		return nil, fmt.Errorf("workflow: update workflow: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("workflow: commit: %w", err)
	}
	return out, nil
}

// DeleteWorkflow deletes a workflow by id.
func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("workflow: delete workflow: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}
