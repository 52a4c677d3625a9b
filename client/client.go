// Package client talks to a workflow server over HTTP. A Client serves as
// the catalog source, the validation oracle and the persistence store of
// an editing session.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
	"resty.dev/v3"
)

// Client is an HTTP client for the workflow server.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithHeader adds a header to every request.
func WithHeader(name, value string) Option {
	return func(c *Client) { c.http.SetHeader(name, value) }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Accept", "application/json"),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// apiError is the error body the server writes.
type apiError struct {
	Error    string         `json:"error"`
	Code     string         `json:"code"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

var sentinels = map[string]*goerrors.Error{
	workflow.CodeUnknownComponentType:  workflow.ErrUnknownComponentType,
	workflow.CodeNodeNotFound:          workflow.ErrNodeNotFound,
	workflow.CodeEdgeNotFound:          workflow.ErrEdgeNotFound,
	workflow.CodeInvalidPort:           workflow.ErrInvalidPort,
	workflow.CodeIncompatiblePorts:     workflow.ErrIncompatiblePorts,
	workflow.CodePortAlreadyConnected:  workflow.ErrPortAlreadyConnected,
	workflow.CodeDuplicateID:           workflow.ErrDuplicateID,
	workflow.CodeUnknownConfigKey:      workflow.ErrUnknownConfigKey,
	workflow.CodeConfigTypeMismatch:    workflow.ErrConfigTypeMismatch,
	workflow.CodeConfigOutOfRange:      workflow.ErrConfigOutOfRange,
	workflow.CodeValidationUnavailable: workflow.ErrValidationUnavailable,
	workflow.CodeCatalogUnavailable:    workflow.ErrCatalogUnavailable,
	workflow.CodeComponentTypeNotFound: workflow.ErrComponentTypeNotFound,
	workflow.CodeWorkflowNotFound:      workflow.ErrWorkflowNotFound,
	workflow.CodeInvalidWorkflow:       workflow.ErrInvalidWorkflow,
}

// failure turns a transport error or an error response into an error.
// Coded server errors come back as the matching sentinel clone.
func (c *Client) failure(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("workflow: %s: %w", op, err)
	}
	body, _ := resp.Error().(*apiError)
	if body == nil {
		body = &apiError{}
	}
	if base, ok := sentinels[body.Code]; ok {
		meta := map[string]any{"status": resp.StatusCode()}
		for k, v := range body.Metadata {
			meta[k] = v
		}
		return workflow.Errorf(base, body.Error, nil, meta)
	}
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return fmt.Errorf("workflow: %s: status %d: %s", op, resp.StatusCode(), msg)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetError(&apiError{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil || resp.IsError() {
		err = c.failure(op, resp, err)
		c.logger.Debug("request failed", "op", op, "path", path, "error", err)
		return err
	}
	return nil
}

// Components fetches the component catalog.
func (c *Client) Components(ctx context.Context) ([]catalog.ComponentType, error) {
	var types []catalog.ComponentType
	if err := c.do(ctx, "list components", http.MethodGet, "/components", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

// Load implements catalog.Source.
func (c *Client) Load(ctx context.Context) ([]catalog.ComponentType, error) {
	return c.Components(ctx)
}

// Component fetches one component type.
func (c *Client) Component(ctx context.Context, typeID string) (catalog.ComponentType, error) {
	var ct catalog.ComponentType
	err := c.do(ctx, "get component", http.MethodGet, "/components/"+url.PathEscape(typeID), nil, &ct)
	return ct, err
}

// Validate asks the server's oracle for a verdict.
func (c *Client) Validate(ctx context.Context, d workflow.Definition) (workflow.Verdict, error) {
	var v workflow.Verdict
	err := c.do(ctx, "validate", http.MethodPost, "/components/validate/workflow", d, &v)
	return v, err
}

func (c *Client) CreateSchema(ctx context.Context) error {
	return c.do(ctx, "create schema", http.MethodPost, "/schema", nil, nil)
}

func (c *Client) DropSchema(ctx context.Context) error {
	return c.do(ctx, "drop schema", http.MethodDelete, "/schema", nil, nil)
}

// CreateWorkflow stores w. The server validates it and sets is_valid.
func (c *Client) CreateWorkflow(ctx context.Context, w *workflow.Workflow) (*workflow.Workflow, error) {
	var out workflow.Workflow
	if err := c.do(ctx, "create workflow", http.MethodPost, "/workflows", w, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	var out workflow.Workflow
	if err := c.do(ctx, "get workflow", http.MethodGet, "/workflows/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListWorkflows(ctx context.Context) ([]workflow.Workflow, error) {
	var out []workflow.Workflow
	if err := c.do(ctx, "list workflows", http.MethodGet, "/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateWorkflow sends a partial update. isValid is ignored: the server
// recomputes validity when components or connections change.
func (c *Client) UpdateWorkflow(ctx context.Context, id string, u workflow.WorkflowUpdate, isValid *bool) (*workflow.Workflow, error) {
	var out workflow.Workflow
	if err := c.do(ctx, "update workflow", http.MethodPut, "/workflows/"+url.PathEscape(id), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, "delete workflow", http.MethodDelete, "/workflows/"+url.PathEscape(id), nil, nil)
}

var (
	_ workflow.Store     = (*Client)(nil)
	_ workflow.Validator = (*Client)(nil)
	_ catalog.Source     = (*Client)(nil)
)
