package graph

import "errors"

// ErrDuplicateKey indicates an input or output key already present on the node.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrDuplicateNodeID indicates two nodes sharing an id.
var ErrDuplicateNodeID = errors.New("duplicate node id")

// ErrInvalidAttr indicates a SetAttr naming an unknown field or carrying a
// value of the wrong type.
var ErrInvalidAttr = errors.New("invalid attribute")

// MutationError reports a mutation the reducer refused. The graph is left
// unchanged when one is returned.
//
// Use errors.Is against the sentinel errors above to branch on the cause.
type MutationError struct {
	Kind    MutationKind
	NodeID  string
	Message string
	Code    string
	Cause   error
}

func (e *MutationError) Error() string {
	msg := string(e.Kind) + " on node " + e.NodeID + ": " + e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return msg
}

func (e *MutationError) Unwrap() error {
	return e.Cause
}
