// Package mutator computes the next document record for every kind of edit.
// Nothing here touches the network; callers persist what it returns.
package mutator

import (
	"errors"
	"fmt"
	"time"

	"naskah/internal/document/model"
)

const (
	DefaultTitle   = "Untitled Document"
	DefaultContent = "<p>Start typing here...</p>"
)

var (
	ErrNoActiveDocument = errors.New("no active document")
	ErrForeignVersion   = errors.New("version record belongs to another document")
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type Mutator struct {
	clock Clock
}

func New(clock Clock) *Mutator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Mutator{clock: clock}
}

// ChangeDescription is the description attached to a content save snapshot.
func ChangeDescription(username string) string {
	return fmt.Sprintf("Changes made by %s", username)
}

// ApplyContentSave returns the snapshot of doc as it is now and the document
// carrying newContent one version later. The snapshot must be stored before the
// document.
func (m *Mutator) ApplyContentSave(doc *model.Document, newContent string, editor model.User) (model.VersionRecord, model.Document, error) {
	snapshot, err := m.Snapshot(doc, editor, ChangeDescription(editor.Username))
	if err != nil {
		return model.VersionRecord{}, model.Document{}, err
	}
	next := *doc
	next.Content = newContent
	next.Metadata.Version = doc.Metadata.Version + 1
	next.Metadata.UpdatedAt = snapshot.CreatedAt
	return snapshot, next, nil
}

// ApplyTitleChange renames doc. Titles are not versioned.
func (m *Mutator) ApplyTitleChange(doc *model.Document, newTitle string) (model.Document, error) {
	if doc == nil {
		return model.Document{}, ErrNoActiveDocument
	}
	next := *doc
	next.Title = newTitle
	next.Metadata.UpdatedAt = m.clock.Now()
	return next, nil
}

// ApplyRestore brings back target's content and title as a new version. The
// version moves forward from the current one, never back to target's.
func (m *Mutator) ApplyRestore(doc *model.Document, target model.VersionRecord) (model.Document, error) {
	if doc == nil {
		return model.Document{}, ErrNoActiveDocument
	}
	if target.DocumentID != doc.ID {
		return model.Document{}, fmt.Errorf("%w: %s is not a version of %s", ErrForeignVersion, target.ID, doc.ID)
	}
	next := *doc
	next.Content = target.Content
	next.Title = target.Title
	next.Metadata.Version = doc.Metadata.Version + 1
	next.Metadata.UpdatedAt = m.clock.Now()
	return next, nil
}

// Snapshot records doc's current content, title and version.
func (m *Mutator) Snapshot(doc *model.Document, editor model.User, description string) (model.VersionRecord, error) {
	if doc == nil {
		return model.VersionRecord{}, ErrNoActiveDocument
	}
	return model.VersionRecord{
		DocumentID:        doc.ID,
		Content:           doc.Content,
		Title:             doc.Title,
		Version:           doc.Metadata.Version,
		CreatedAt:         m.clock.Now(),
		CreatedBy:         editor.ID,
		ChangeDescription: description,
	}, nil
}

// ApplyCreate returns a fresh, unsaved document. The store assigns its id.
func (m *Mutator) ApplyCreate(ownerID string) model.Document {
	now := m.clock.Now()
	return model.Document{
		Title:   DefaultTitle,
		Content: DefaultContent,
		OwnerID: ownerID,
		Metadata: model.Metadata{
			CreatedAt: now,
			UpdatedAt: now,
			CreatedBy: ownerID,
			Version:   1,
		},
	}
}
