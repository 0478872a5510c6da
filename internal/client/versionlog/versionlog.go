// Package versionlog appends snapshots to a document's version history and reads
// the history back newest first.
package versionlog

import (
	"context"
	"errors"
	"sort"

	"naskah/internal/client/storeclient"
	"naskah/internal/document/model"
	"naskah/pkg/logger"
)

type Store interface {
	CreateVersion(ctx context.Context, rec model.VersionRecord) (*model.VersionRecord, error)
	ListVersions(ctx context.Context, documentID string) ([]model.VersionRecord, error)
}

type Writer struct {
	store Store
}

func NewWriter(store Store) *Writer {
	return &Writer{store: store}
}

// Append stores snapshot. Any failure comes back as a *storeclient.PersistenceError
// and the caller must not go on to update the document.
func (w *Writer) Append(ctx context.Context, snapshot model.VersionRecord) (*model.VersionRecord, error) {
	if snapshot.DocumentID == "" {
		return nil, &storeclient.PersistenceError{Op: "append version", Err: errors.New("snapshot has no document id")}
	}
	created, err := w.store.CreateVersion(ctx, snapshot)
	if err != nil {
		logger.Sugar.Errorf("Failed to append version %d of %s: %v", snapshot.Version, snapshot.DocumentID, err)
		return nil, storeclient.AsPersistenceError("append version", err)
	}
	return created, nil
}

// List returns the document's versions sorted by version descending whatever
// order the store used. Equal versions keep the store's order.
func (w *Writer) List(ctx context.Context, documentID string) ([]model.VersionRecord, error) {
	versions, err := w.store.ListVersions(ctx, documentID)
	if err != nil {
		return nil, storeclient.AsPersistenceError("list versions", err)
	}
	out := make([]model.VersionRecord, 0, len(versions))
	for _, v := range versions {
		if v.DocumentID == documentID {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Version > out[j].Version
	})
	return out, nil
}
