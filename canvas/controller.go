package canvas

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/binder"
	"github.com/meikuraledutech/workflow/catalog"
	"github.com/meikuraledutech/workflow/graph"
	"github.com/meikuraledutech/workflow/validation"
)

// Controller owns the interaction state of one editing session and the
// graph store it edits.
type Controller struct {
	catalog  *catalog.Cache
	store    *graph.Store
	logger   *slog.Logger
	persist  workflow.Store
	verdicts *validation.Synchronizer

	mu          sync.Mutex
	state       State
	workflowID  string
	unsubscribe func()
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPersistence sets the store used by Save.
func WithPersistence(s workflow.Store) ControllerOption {
	return func(c *Controller) { c.persist = s }
}

// WithVerdicts sets the synchronizer whose verdict gates Save.
func WithVerdicts(v *validation.Synchronizer) ControllerOption {
	return func(c *Controller) { c.verdicts = v }
}

// WithWorkflowID marks the session as editing an already persisted
// workflow, so Save updates it instead of creating a new one.
func WithWorkflowID(id string) ControllerOption {
	return func(c *Controller) { c.workflowID = id }
}

// NewController creates a controller in Idle mode over store.
func NewController(cat *catalog.Cache, store *graph.Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		catalog: cat,
		store:   store,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.unsubscribe = store.Subscribe(c.graphChanged)
	return c
}

// Close stops listening to the graph store.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// graphChanged drops selection and pending connections that refer to a
// node that no longer exists.
func (c *Controller) graphChanged(ev graph.Event) {
	if ev.Kind != graph.NodeDeleted {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Selected == ev.NodeID ||
		(c.state.Pending != nil && c.state.Pending.SourceNodeID == ev.NodeID) {
		c.state = State{Mode: Idle}
	}
}

// State returns the current interaction state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Pending != nil {
		p := *s.Pending
		s.Pending = &p
	}
	return s
}

// Dispatch feeds one gesture event through the state machine and applies
// the resulting command. A rejected command still ends the gesture, and
// the graph is left unchanged.
func (c *Controller) Dispatch(ev Event) (State, error) {
	if ev.Kind == DragStart {
		if _, err := c.catalog.Lookup(ev.TypeID); err != nil {
			return c.State(), err
		}
	}

	c.mu.Lock()
	cur := c.state
	next, cmd := Transition(cur, ev)
	next = c.admit(cur, next)
	c.state = next
	c.mu.Unlock()

	if cmd == nil {
		return c.State(), nil
	}
	if err := c.apply(cmd); err != nil {
		c.logger.Info("gesture rejected", "error", err, "code", workflow.Code(err))
		return c.State(), err
	}
	return c.State(), nil
}

// admit refuses entering a mode that refers to a node or port the graph
// does not have.
func (c *Controller) admit(cur, next State) State {
	switch {
	case next.Mode == NodeSelected && next.Selected != cur.Selected:
		if _, ok := c.store.Node(next.Selected); !ok {
			return cur
		}
	case next.Mode == DrawingConnection && cur.Mode != DrawingConnection:
		ct, err := c.store.Type(next.Pending.SourceNodeID)
		if err != nil || !ct.HasOutput(next.Pending.SourcePort) {
			return cur
		}
	}
	return next
}

func (c *Controller) apply(cmd Command) error {
	switch cmd := cmd.(type) {
	case AddNode:
		n, err := c.store.AddNode(cmd.TypeID, cmd.Position)
		if err != nil {
			return err
		}
		c.logger.Debug("node dropped", "node_id", n.ID, "type_id", n.TypeID)
	case Connect:
		e, err := c.store.Connect(cmd.SourceNodeID, cmd.SourcePort, cmd.TargetNodeID, cmd.TargetPort)
		if err != nil {
			return err
		}
		c.logger.Debug("edge drawn", "edge_id", e.ID)
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
	return nil
}

// Palette returns the draggable component types. It fails with
// CATALOG_UNAVAILABLE until the catalog has loaded, which callers render
// differently from an empty catalog.
func (c *Controller) Palette() ([]catalog.ComponentType, error) {
	if !c.catalog.Loaded() {
		err := c.catalog.Err()
		if err == nil {
			err = workflow.Errorf(workflow.ErrCatalogUnavailable, "component catalog not loaded", nil, nil)
		}
		return nil, err
	}
	return c.catalog.Types(), nil
}

// RetryCatalog loads the catalog again after a failure.
func (c *Controller) RetryCatalog(ctx context.Context) error {
	_, err := c.catalog.Load(ctx)
	return err
}

// Inspector returns the config form of the selected node, or nil when no
// node is selected.
func (c *Controller) Inspector() (*binder.Form, error) {
	st := c.State()
	if st.Mode != NodeSelected {
		return nil, nil
	}
	return binder.Bind(c.store, st.Selected)
}

// DeleteSelected deletes the selected node with its edges. It is a no-op
// without a selection.
func (c *Controller) DeleteSelected() error {
	st := c.State()
	if st.Mode != NodeSelected {
		return nil
	}
	return c.DeleteNode(st.Selected)
}

func (c *Controller) DeleteNode(id string) error {
	return c.store.DeleteNode(id)
}

func (c *Controller) MoveNode(id string, pos workflow.Position) error {
	return c.store.MoveNode(id, pos)
}

func (c *Controller) Disconnect(edgeID string) error {
	return c.store.Disconnect(edgeID)
}

func (c *Controller) UpdateConfig(nodeID, key string, value any) error {
	return c.store.UpdateConfig(nodeID, key, value)
}

// Snapshot returns the current graph.
func (c *Controller) Snapshot() graph.Snapshot {
	return c.store.Snapshot()
}

// Verdict returns the verdict on display, or a zero Status without a
// synchronizer.
func (c *Controller) Verdict() validation.Status {
	if c.verdicts == nil {
		return validation.Status{}
	}
	return c.verdicts.Current()
}

// WorkflowID returns the id of the persisted workflow, "" before the first
// save.
func (c *Controller) WorkflowID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workflowID
}

// Save persists the graph when its current verdict is valid and computed
// for the graph as it is now. The first save creates the workflow; later
// saves update it.
func (c *Controller) Save(ctx context.Context, name, description string) (*workflow.Workflow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, workflow.Errorf(workflow.ErrInvalidWorkflow, "workflow name is required", nil, nil)
	}
	if c.persist == nil || c.verdicts == nil {
		return nil, workflow.Errorf(workflow.ErrInvalidWorkflow, "saving is not configured", nil, nil)
	}

	snap := c.store.Snapshot()
	st := c.verdicts.Current()
	if st.Unavailable {
		return nil, st.Err
	}
	if !st.Ready() || st.Hash != snap.Hash() {
		meta := map[string]any{"pending": st.Pending, "stale": st.Hash != snap.Hash()}
		if st.Verdict != nil {
			meta["errors"] = st.Verdict.Errors
		}
		return nil, workflow.Errorf(workflow.ErrInvalidWorkflow, "workflow has no current valid verdict", nil, meta)
	}

	def := snap.Definition()
	id := c.WorkflowID()
	var (
		saved *workflow.Workflow
		err   error
	)
	if id == "" {
		saved, err = c.persist.CreateWorkflow(ctx, &workflow.Workflow{
			Name:        name,
			Description: description,
			Components:  def.Components,
			Connections: def.Connections,
			IsValid:     true,
		})
	} else {
		valid := true
		saved, err = c.persist.UpdateWorkflow(ctx, id, workflow.WorkflowUpdate{
			Name:        &name,
			Description: &description,
			Components:  &def.Components,
			Connections: &def.Connections,
		}, &valid)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.workflowID = saved.ID
	c.mu.Unlock()
	c.logger.Info("workflow saved", "workflow_id", saved.ID, "components", len(saved.Components))
	return saved, nil
}
