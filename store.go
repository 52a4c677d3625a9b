package workflow

import "context"

// Store defines the contract for persisting and retrieving workflows.
// Graph editing happens in memory; a Store only sees explicit saves.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Workflows
	CreateWorkflow(ctx context.Context, w *Workflow) (*Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context) ([]Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, u WorkflowUpdate, isValid *bool) (*Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// Validator computes a Verdict for a Definition.
type Validator interface {
	Validate(ctx context.Context, d Definition) (Verdict, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, d Definition) (Verdict, error)

func (f ValidatorFunc) Validate(ctx context.Context, d Definition) (Verdict, error) {
	return f(ctx, d)
}
