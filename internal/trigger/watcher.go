package trigger

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// HandlerFunc handles one change to the document identified by id.
type HandlerFunc[T any] func(ctx context.Context, id string, change Change[T]) error

// KeyFunc maps a document reference to the id passed to the handler. It
// returns false for documents the watcher should ignore.
type KeyFunc func(ref *firestore.DocumentRef) (string, bool)

// Watcher listens to a Firestore query and turns snapshot changes into
// before/after pairs. The last seen state of every document is kept in
// memory; the first snapshot only primes it.
type Watcher[T any] struct {
	name   string
	query  firestore.Query
	key    KeyFunc
	handle HandlerFunc[T]
	logger *slog.Logger
	last   map[string]*T
	primed bool
}

// NewWatcher creates a Watcher
func NewWatcher[T any](name string, query firestore.Query, key KeyFunc, handle HandlerFunc[T], logger *slog.Logger) *Watcher[T] {
	return &Watcher[T]{
		name:   name,
		query:  query,
		key:    key,
		handle: handle,
		logger: logger.With("watcher", name),
		last:   map[string]*T{},
	}
}

// Run blocks until ctx is cancelled or the listener fails. Handler errors
// are logged; a snapshot listener has no redelivery.
func (w *Watcher[T]) Run(ctx context.Context) error {
	it := w.query.Snapshots(ctx)
	defer it.Stop()

	w.logger.Info("watching documents")
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			return fmt.Errorf("%s listener: %w", w.name, err)
		}

		for _, dc := range snap.Changes {
			w.apply(ctx, dc)
		}
		if !w.primed {
			w.primed = true
			w.logger.Info("primed document state", "documents", len(w.last))
		}
	}
}

func (w *Watcher[T]) apply(ctx context.Context, dc firestore.DocumentChange) {
	var decode func(any) error
	if dc.Kind != firestore.DocumentRemoved {
		decode = dc.Doc.DataTo
	}
	w.observe(ctx, dc.Doc.Ref, decode)
}

// observe records the state of ref and, once primed, hands the change to the
// handler. decode is nil for a removed document. Documents the key func
// rejects are never decoded.
func (w *Watcher[T]) observe(ctx context.Context, ref *firestore.DocumentRef, decode func(any) error) {
	id, ok := w.key(ref)
	if !ok {
		return
	}

	var after *T
	if decode != nil {
		var v T
		if err := decode(&v); err != nil {
			w.logger.Error("decode document", "path", ref.Path, "error", err)
			return
		}
		after = &v
	}

	before := w.last[ref.Path]
	if after == nil {
		delete(w.last, ref.Path)
	} else {
		w.last[ref.Path] = after
	}
	if !w.primed {
		return
	}

	if err := w.handle(ctx, id, Change[T]{Before: before, After: after}); err != nil {
		w.logger.Error("handle document change", "path", ref.Path, "error", err)
	}
}

// DocumentID keys a change by the document's own id.
func DocumentID(ref *firestore.DocumentRef) (string, bool) {
	return ref.ID, ref.ID != ""
}

// ParentDocumentID keys a change in a subcollection by the owning document,
// e.g. events/{eventId}/activity/private by eventId. Only documents named
// docID are accepted.
func ParentDocumentID(docID string) KeyFunc {
	return func(ref *firestore.DocumentRef) (string, bool) {
		if ref.ID != docID || ref.Parent == nil || ref.Parent.Parent == nil {
			return "", false
		}
		return ref.Parent.Parent.ID, true
	}
}
