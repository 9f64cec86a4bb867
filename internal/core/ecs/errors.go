package ecs

import (
	"errors"
	"fmt"
)

// Registration errors
var (
	ErrDuplicateExtension = errors.New("ecs: extension already registered")
	ErrDuplicateColumn    = errors.New("ecs: column name already registered")
	ErrUnknownColumn      = errors.New("ecs: unknown column")
)

// Graph errors
var (
	ErrNotAllocated = errors.New("ecs: entity is not allocated")
	ErrNoJoints     = errors.New("ecs: animation controller has no joints")
)

// InvariantError reports a broken table invariant. It is raised with panic:
// the caller has violated a precondition and the scene can no longer be
// trusted.
type InvariantError struct {
	Op     string
	Entity EntityID
	Reason string
}

func (e *InvariantError) Error() string {
	if e.Entity == NoEntity {
		return fmt.Sprintf("ecs: %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("ecs: %s entity %d: %s", e.Op, e.Entity, e.Reason)
}

// ComponentNotSetError is raised when a typed accessor reads a component the
// row does not carry.
type ComponentNotSetError struct {
	Entity    EntityID
	Component Component
	Column    string
}

func (e *ComponentNotSetError) Error() string {
	return fmt.Sprintf("ecs: entity %d has no %s component (column %s)", e.Entity, e.Component, e.Column)
}

func invariant(op string, e EntityID, format string, args ...any) {
	panic(&InvariantError{Op: op, Entity: e, Reason: fmt.Sprintf(format, args...)})
}
