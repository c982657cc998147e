package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/tagreg"
)

// ErrOperationClosed is returned when a tag operation is confirmed twice or
// after it was cancelled.
var ErrOperationClosed = errors.New("tag operation already confirmed or cancelled")

// TagOperationKind names a bulk tag change.
type TagOperationKind string

const (
	TagRename TagOperationKind = "rename"
	TagDelete TagOperationKind = "delete"
)

// TagOperation is a requested bulk tag change awaiting confirmation.
type TagOperation struct {
	Kind    TagOperationKind
	Tag     string
	NewName string
	// Affected holds the resources as they will be saved.
	Affected []catalog.Resource

	d      *Dashboard
	mu     sync.Mutex
	closed bool
}

// RequestTagRename prepares renaming oldName to newName on every resource. A blank
// newName or one equal to oldName affects nothing.
func (d *Dashboard) RequestTagRename(oldName, newName string) *TagOperation {
	return &TagOperation{
		Kind:     TagRename,
		Tag:      oldName,
		NewName:  newName,
		Affected: tagreg.Rename(d.store.Snapshot(), oldName, newName),
		d:        d,
	}
}

// RequestTagDelete prepares removing tag from every resource.
func (d *Dashboard) RequestTagDelete(tag string) *TagOperation {
	return &TagOperation{
		Kind:     TagDelete,
		Tag:      tag,
		Affected: tagreg.Delete(d.store.Snapshot(), tag),
		d:        d,
	}
}

// Count is the number of resources the operation changes.
func (op *TagOperation) Count() int {
	return len(op.Affected)
}

func (op *TagOperation) close() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.closed {
		return ErrOperationClosed
	}
	op.closed = true
	return nil
}

// Confirm saves every affected resource in one batch and applies the result
// locally. It returns the number of resources changed.
func (op *TagOperation) Confirm(ctx context.Context) (int, error) {
	if err := op.close(); err != nil {
		return 0, err
	}
	if len(op.Affected) == 0 {
		return 0, nil
	}

	updated, err := op.d.backend.BatchUpdate(ctx, op.Affected)
	if err != nil {
		return 0, fmt.Errorf("%s tag %q: %w", op.Kind, op.Tag, err)
	}
	if err := op.d.store.Apply(catalog.Mutation{Kind: catalog.MutationBatchUpdate, Resources: updated}); err != nil {
		op.d.logger.Warn().Err(err).Msg("local catalog out of date, refreshing")
		if err := op.d.Refresh(ctx); err != nil {
			return len(updated), err
		}
	}
	op.d.logger.Info().Str("kind", string(op.Kind)).Str("tag", op.Tag).Int("updated", len(updated)).Msg("tag operation applied")
	return len(updated), nil
}

// Cancel discards the operation.
func (op *TagOperation) Cancel() {
	_ = op.close()
}
