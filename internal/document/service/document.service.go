package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"naskah/internal/document/model"
	"naskah/internal/document/repository"
)

var ErrForbidden = errors.New("forbidden: document belongs to another user")

// Publisher receives an event after every successful write. Publish must not block.
type Publisher interface {
	Publish(e model.ChangeEvent)
}

// DocumentService applies the stamping rules of the document store. It performs no
// check that a replacement's version follows the stored one: last write wins.
type DocumentService struct {
	Repo     *repository.DocumentRepository
	Versions *repository.VersionRepository
	Events   Publisher // optional
	Now      func() time.Time
}

func NewDocumentService(repo *repository.DocumentRepository, versions *repository.VersionRepository) *DocumentService {
	return &DocumentService{Repo: repo, Versions: versions, Now: time.Now}
}

// CreateDocument assigns the id and stamps createdAt/updatedAt with version 1.
func (s *DocumentService) CreateDocument(ctx context.Context, userID string, doc model.Document) (*model.Document, error) {
	now := s.Now().UTC()
	doc.ID = uuid.NewString()
	doc.OwnerID = userID
	doc.Metadata.CreatedAt = now
	doc.Metadata.UpdatedAt = now
	doc.Metadata.Version = 1
	if doc.Metadata.CreatedBy == "" {
		doc.Metadata.CreatedBy = userID
	}
	if err := s.Repo.Create(ctx, &doc); err != nil {
		return nil, err
	}
	s.publish(model.DocumentCreatedEvent, userID, doc.ID, doc.Title, doc.Metadata.Version)
	return &doc, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, userID, docID string) (*model.Document, error) {
	doc, err := s.Repo.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != userID {
		return nil, ErrForbidden
	}
	return doc, nil
}

// ListDocuments lists the caller's documents; an explicit filter may only name the caller.
func (s *DocumentService) ListDocuments(ctx context.Context, userID string, q model.ListQuery) ([]model.Document, error) {
	if q.Field == "" {
		q.Field, q.Value = "userId", userID
	}
	if q.Field != "userId" || q.Value != userID {
		return nil, ErrForbidden
	}
	return s.Repo.List(ctx, q)
}

// ReplaceDocument stores doc in full under docID, stamps updatedAt and keeps the
// version the caller sent.
func (s *DocumentService) ReplaceDocument(ctx context.Context, userID, docID string, doc model.Document) (*model.Document, error) {
	if err := s.checkOwner(ctx, userID, docID); err != nil {
		return nil, err
	}
	doc.ID = docID
	doc.OwnerID = userID
	doc.Metadata.UpdatedAt = s.Now().UTC()
	stored, err := s.Repo.Replace(ctx, &doc)
	if err != nil {
		return nil, err
	}
	s.publish(model.DocumentUpdatedEvent, userID, stored.ID, stored.Title, stored.Metadata.Version)
	return stored, nil
}

func (s *DocumentService) DeleteDocument(ctx context.Context, userID, docID string) error {
	if err := s.checkOwner(ctx, userID, docID); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, docID); err != nil {
		return err
	}
	s.publish(model.DocumentDeletedEvent, userID, docID, "", 0)
	return nil
}

// AppendVersion stores an immutable version record for one of the caller's documents.
func (s *DocumentService) AppendVersion(ctx context.Context, userID string, rec model.VersionRecord) (*model.VersionRecord, error) {
	if err := s.checkOwner(ctx, userID, rec.DocumentID); err != nil {
		return nil, err
	}
	rec.ID = ulid.Make().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.Now().UTC()
	}
	if rec.CreatedBy == "" {
		rec.CreatedBy = userID
	}
	if err := s.Versions.Create(ctx, &rec); err != nil {
		return nil, err
	}
	s.publish(model.VersionCreatedEvent, userID, rec.DocumentID, rec.Title, rec.Version)
	return &rec, nil
}

func (s *DocumentService) GetVersion(ctx context.Context, userID, id string) (*model.VersionRecord, error) {
	rec, err := s.Versions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, userID, rec.DocumentID); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListVersions requires a documentId filter naming one of the caller's documents.
func (s *DocumentService) ListVersions(ctx context.Context, userID string, q model.ListQuery) ([]model.VersionRecord, error) {
	if q.Field != "documentId" || q.Value == "" {
		return nil, ErrForbidden
	}
	if err := s.checkOwner(ctx, userID, q.Value); err != nil {
		return nil, err
	}
	return s.Versions.List(ctx, q)
}

func (s *DocumentService) checkOwner(ctx context.Context, userID, docID string) error {
	ownerID, err := s.Repo.GetOwnerID(ctx, docID)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return ErrForbidden
	}
	return nil
}

func (s *DocumentService) publish(eventType, userID, docID, title string, version int) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(model.ChangeEvent{
		Type:       eventType,
		DocumentID: docID,
		UserID:     userID,
		Title:      title,
		Version:    version,
		At:         s.Now().UTC(),
	})
}
