// Package memstore is an in-memory document store with the same stamping rules
// as the REST backend. Tests drive the editor against it, and it can be told to
// fail or stall individual calls.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"naskah/internal/client/storeclient"
	"naskah/internal/document/model"
)

type account struct {
	user     model.User
	password string
}

type Store struct {
	mu       sync.RWMutex
	docs     map[string]model.Document
	order    []string
	versions []model.VersionRecord
	accounts map[string]account

	failures map[string]error
	holds    map[string]chan struct{}
	calls    []string
	token    string

	Now func() time.Time
}

func New() *Store {
	return &Store{
		docs:     make(map[string]model.Document),
		accounts: make(map[string]account),
		failures: make(map[string]error),
		holds:    make(map[string]chan struct{}),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddUser registers an account that Login accepts.
func (s *Store) AddUser(user model.User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[user.Username] = account{user: user, password: password}
}

// Fail makes every later call of op ("CreateVersion", "UpdateDocument", ...)
// fail with err until Recover is called.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) Recover(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, op)
}

// Hold stalls ListVersions for documentID until the returned func is called.
func (s *Store) Hold(documentID string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[documentID] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, documentID)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls lists the operations invoked so far, in order.
func (s *Store) Calls() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.calls...)
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Versions returns every stored version of documentID in creation order.
func (s *Store) Versions(documentID string) []model.VersionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.VersionRecord
	for _, v := range s.versions {
		if v.DocumentID == documentID {
			out = append(out, v)
		}
	}
	return out
}

func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Store) Login(_ context.Context, username, password string) (*model.LoginResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Login"); err != nil {
		return nil, err
	}
	acc, ok := s.accounts[username]
	if !ok || acc.password != password {
		return nil, storeclient.ErrInvalidCredentials
	}
	return &model.LoginResponse{User: acc.user, Token: "token-" + acc.user.ID}, nil
}

func (s *Store) ListDocuments(_ context.Context, ownerID string) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("ListDocuments"); err != nil {
		return nil, err
	}
	out := []model.Document{}
	for _, id := range s.order {
		if d := s.docs[id]; d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) GetDocument(_ context.Context, id string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("GetDocument"); err != nil {
		return nil, err
	}
	d, ok := s.docs[id]
	if !ok {
		return nil, notFound("get document", id)
	}
	return &d, nil
}

func (s *Store) CreateDocument(_ context.Context, doc model.Document) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("CreateDocument"); err != nil {
		return nil, err
	}
	now := s.Now()
	doc.ID = uuid.NewString()
	doc.Metadata.CreatedAt = now
	doc.Metadata.UpdatedAt = now
	doc.Metadata.Version = 1
	s.docs[doc.ID] = doc
	s.order = append(s.order, doc.ID)
	return &doc, nil
}

// UpdateDocument stores doc as given apart from updatedAt. Like the backend it
// does not compare versions.
func (s *Store) UpdateDocument(_ context.Context, doc model.Document) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("UpdateDocument"); err != nil {
		return nil, err
	}
	if _, ok := s.docs[doc.ID]; !ok {
		return nil, notFound("update document", doc.ID)
	}
	doc.Metadata.UpdatedAt = s.Now()
	s.docs[doc.ID] = doc
	return &doc, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("DeleteDocument"); err != nil {
		return err
	}
	if _, ok := s.docs[id]; !ok {
		return notFound("delete document", id)
	}
	delete(s.docs, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	kept := s.versions[:0]
	for _, v := range s.versions {
		if v.DocumentID != id {
			kept = append(kept, v)
		}
	}
	s.versions = kept
	return nil
}

func (s *Store) CreateVersion(_ context.Context, rec model.VersionRecord) (*model.VersionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("CreateVersion"); err != nil {
		return nil, err
	}
	rec.ID = ulid.Make().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.Now()
	}
	s.versions = append(s.versions, rec)
	return &rec, nil
}

// ListVersions answers in creation order; sorting is up to the caller.
func (s *Store) ListVersions(ctx context.Context, documentID string) ([]model.VersionRecord, error) {
	s.mu.Lock()
	if err := s.begin("ListVersions"); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	hold := s.holds[documentID]
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := s.Versions(documentID)
	if out == nil {
		out = []model.VersionRecord{}
	}
	return out, nil
}

// begin records the call and returns the injected failure for op, if any.
// Callers hold s.mu.
func (s *Store) begin(op string) error {
	s.calls = append(s.calls, op)
	if err, ok := s.failures[op]; ok {
		return &storeclient.PersistenceError{Op: op, Status: 500, Err: err}
	}
	return nil
}

func notFound(op, id string) error {
	return &storeclient.PersistenceError{Op: op, Status: 404, Err: fmt.Errorf("%w: %s", storeclient.ErrNotFound, id)}
}
