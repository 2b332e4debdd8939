// Package trigger carries document write events to the notification
// handlers as explicit before/after pairs.
package trigger

// Change is one write to a document. Before is nil for a create, After is
// nil for a delete.
type Change[T any] struct {
	Before *T `json:"before"`
	After  *T `json:"after"`
}

// Created reports whether the write created the document.
func (c Change[T]) Created() bool {
	return c.Before == nil && c.After != nil
}

// Deleted reports whether the write deleted the document.
func (c Change[T]) Deleted() bool {
	return c.After == nil
}
