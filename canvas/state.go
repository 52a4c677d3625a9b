// Package canvas turns pointer and drag gestures into graph mutations.
//
// The interaction state is an explicit value. Transition is a pure
// function from (state, event) to (next state, command); the Controller
// owns the current state and applies the command to the graph store.
// The only commands are AddNode and Connect, and an abandoned gesture
// produces none.
package canvas

import "github.com/meikuraledutech/workflow"

// Mode is the interaction mode.
type Mode int

const (
	Idle Mode = iota
	DraggingNewComponent
	DrawingConnection
	NodeSelected
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case DraggingNewComponent:
		return "dragging_new_component"
	case DrawingConnection:
		return "drawing_connection"
	case NodeSelected:
		return "node_selected"
	}
	return "unknown"
}

// TargetKind classifies what lies under the pointer.
type TargetKind int

const (
	// Outside is anywhere beyond the canvas bounds.
	Outside TargetKind = iota
	Background
	NodeBody
	InputPort
	OutputPort
)

// Target is the hit-test result for a pointer event.
type Target struct {
	Kind   TargetKind
	NodeID string
	Port   string
}

// OnCanvas reports whether the target lies within the canvas bounds.
func (t Target) OnCanvas() bool { return t.Kind != Outside }

// EventKind names a gesture event.
type EventKind int

const (
	// DragStart begins dragging a palette entry (TypeID).
	DragStart EventKind = iota
	// DragCancel abandons a palette drag.
	DragCancel
	// Drop releases a palette drag over Target at Pos.
	Drop
	PointerDown
	PointerMove
	PointerUp
	// PointerLeave fires when the pointer exits the canvas.
	PointerLeave
	// Click is a completed press and release on Target.
	Click
)

// Event is one gesture event.
type Event struct {
	Kind   EventKind
	TypeID string
	Pos    workflow.Position
	Target Target
}

// PendingConnection is the transient edge drawn while connecting. It is
// visual only and never part of the graph.
type PendingConnection struct {
	SourceNodeID string
	SourcePort   string
	Cursor       workflow.Position
}

// State is the controller's interaction state.
type State struct {
	Mode Mode
	// DragTypeID is the palette entry being dragged.
	DragTypeID string
	// Pending is set while drawing a connection.
	Pending *PendingConnection
	// Selected is the selected node id in NodeSelected mode.
	Selected string
}

// Command is a graph mutation requested by a transition: AddNode or
// Connect.
type Command interface {
	isCommand()
}

type AddNode struct {
	TypeID   string
	Position workflow.Position
}

type Connect struct {
	SourceNodeID string
	SourcePort   string
	TargetNodeID string
	TargetPort   string
}

func (AddNode) isCommand() {}
func (Connect) isCommand() {}

// Transition computes the next state for ev. It never mutates s.
func Transition(s State, ev Event) (State, Command) {
	switch s.Mode {
	case DraggingNewComponent:
		return dragging(s, ev)
	case DrawingConnection:
		return drawing(s, ev)
	default:
		return resting(s, ev)
	}
}

// resting handles Idle and NodeSelected, which differ only in selection.
func resting(s State, ev Event) (State, Command) {
	switch ev.Kind {
	case DragStart:
		if ev.TypeID == "" {
			return s, nil
		}
		return State{Mode: DraggingNewComponent, DragTypeID: ev.TypeID}, nil
	case PointerDown:
		if ev.Target.Kind == OutputPort && ev.Target.NodeID != "" && ev.Target.Port != "" {
			return State{Mode: DrawingConnection, Pending: &PendingConnection{
				SourceNodeID: ev.Target.NodeID,
				SourcePort:   ev.Target.Port,
				Cursor:       ev.Pos,
			}}, nil
		}
	case Click:
		switch ev.Target.Kind {
		case NodeBody, InputPort, OutputPort:
			if ev.Target.NodeID != "" {
				return State{Mode: NodeSelected, Selected: ev.Target.NodeID}, nil
			}
		case Background:
			return State{Mode: Idle}, nil
		}
	}
	return s, nil
}

func dragging(s State, ev Event) (State, Command) {
	switch ev.Kind {
	case Drop:
		if !ev.Target.OnCanvas() {
			return State{Mode: Idle}, nil
		}
		return State{Mode: Idle}, AddNode{TypeID: s.DragTypeID, Position: ev.Pos}
	case DragCancel, PointerLeave:
		return State{Mode: Idle}, nil
	}
	return s, nil
}

func drawing(s State, ev Event) (State, Command) {
	switch ev.Kind {
	case PointerMove:
		p := *s.Pending
		p.Cursor = ev.Pos
		return State{Mode: DrawingConnection, Pending: &p}, nil
	case PointerUp:
		if ev.Target.Kind == InputPort && ev.Target.NodeID != "" && ev.Target.Port != "" {
			return State{Mode: Idle}, Connect{
				SourceNodeID: s.Pending.SourceNodeID,
				SourcePort:   s.Pending.SourcePort,
				TargetNodeID: ev.Target.NodeID,
				TargetPort:   ev.Target.Port,
			}
		}
		return State{Mode: Idle}, nil
	case PointerLeave, DragCancel:
		return State{Mode: Idle}, nil
	}
	return s, nil
}
