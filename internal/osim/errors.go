package osim

import (
	"errors"
	"fmt"
)

var (
	// ErrComponentNotFound is returned when a named muscle, coordinate, body or set is absent.
	ErrComponentNotFound = errors.New("component not found")
	// ErrDanglingConnection is returned by FinalizeConnections when a socket points nowhere.
	ErrDanglingConnection = errors.New("dangling connection")
	// ErrNotAModel is returned when a document has no OpenSimDocument/Model element.
	ErrNotAModel = errors.New("document does not contain a model")
	// ErrDuplicateComponent is returned when adding a component whose name is taken.
	ErrDuplicateComponent = errors.New("duplicate component")
)

// ComponentError names the component a lookup or edit failed on.
type ComponentError struct {
	Kind string
	Name string
	Err  error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ComponentError) Unwrap() error { return e.Err }

func notFound(kind, name string) error {
	return &ComponentError{Kind: kind, Name: name, Err: ErrComponentNotFound}
}
