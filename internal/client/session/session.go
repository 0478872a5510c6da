// Package session holds what the signed-in user sees: the user, their
// documents, the selected document and its versions.
//
// Every asynchronous result is applied through a Ticket issued before the
// request went out. A result whose ticket no longer matches the session is
// dropped, so a late response can never bring back state from an earlier
// selection or an earlier login.
package session

import (
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"

	"naskah/internal/document/model"
)

// Ticket identifies one request made on behalf of the session.
type Ticket struct {
	Epoch      uint64
	DocumentID string
	ID         ulid.ULID // issue time plus entropy
	Seq        uint64
}

// State is a snapshot. Nothing the Session does later changes a State already
// handed out, and changing a State does not touch the Session.
type State struct {
	Epoch     uint64
	User      *model.User
	Documents []model.Document
	Selected  *model.Document
	Versions  []model.VersionRecord
}

func (s State) LoggedIn() bool { return s.User != nil }

// Document looks a document up by id in the list.
func (s State) Document(id string) (model.Document, bool) {
	for _, d := range s.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return model.Document{}, false
}

type Session struct {
	mu sync.Mutex

	epoch uint64
	seq   uint64

	user      *model.User
	documents []model.Document
	selected  *model.Document
	versions  []model.VersionRecord

	lastLoad    ulid.ULID
	lastRefresh ulid.ULID
	reconciled  map[string]uint64

	// writes in flight per document, and the seq at which a write to the
	// document last began or ended
	pending map[string]map[uint64]struct{}
	touched map[string]uint64
}

func New() *Session {
	return &Session{
		reconciled: map[string]uint64{},
		pending:    map[string]map[uint64]struct{}{},
		touched:    map[string]uint64{},
	}
}

// Init starts a session for user and discards anything left from before.
func (s *Session) Init(user model.User) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	u := cloneUser(user)
	s.user = &u
	return s.snapshot()
}

// Teardown clears everything. Requests still in flight keep running but their
// results will be dropped.
func (s *Session) Teardown() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return s.snapshot()
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// BeginLoad issues the ticket for fetching the document list.
func (s *Session) BeginLoad() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.issue("")
	s.lastLoad = t.ID
	return t
}

// SetDocuments replaces the document list with the result of the latest load.
func (s *Session) SetDocuments(t Ticket, docs []model.Document) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Epoch != s.epoch || t.ID != s.lastLoad {
		return s.snapshot(), false
	}
	s.documents = slices.Clone(docs)
	if s.selected != nil {
		if i := s.indexOf(s.selected.ID); i >= 0 {
			d := s.documents[i]
			s.selected = &d
		}
	}
	return s.snapshot(), true
}

// Select makes doc the selected document and returns the ticket for refreshing
// its versions. Earlier refreshes are not cancelled, their results just stop
// applying.
func (s *Session) Select(doc model.Document) (State, Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &doc
	s.versions = nil
	t := s.issue(doc.ID)
	s.lastRefresh = t.ID
	return s.snapshot(), t
}

// RefreshTicket issues a new version refresh if documentID is still selected.
func (s *Session) RefreshTicket(documentID string) (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil || s.selected.ID != documentID {
		return Ticket{}, false
	}
	t := s.issue(s.selected.ID)
	s.lastRefresh = t.ID
	return t, true
}

// ApplyVersions shows versions if t is still the latest refresh of the selected
// document in this session.
func (s *Session) ApplyVersions(t Ticket, versions []model.VersionRecord) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Epoch != s.epoch || s.selected == nil || s.selected.ID != t.DocumentID || t.ID != s.lastRefresh {
		return s.snapshot(), false
	}
	s.versions = slices.Clone(versions)
	return s.snapshot(), true
}

// BeginWrite issues the ticket for a write to documentID. Every ticket it
// returns must be passed to EndWrite once the write has finished, whether it
// succeeded or not.
func (s *Session) BeginWrite(documentID string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.issue(documentID)
	if documentID != "" {
		if s.pending[documentID] == nil {
			s.pending[documentID] = map[uint64]struct{}{}
		}
		s.pending[documentID][t.Seq] = struct{}{}
		s.touched[documentID] = t.Seq
	}
	return t
}

// EndWrite marks the write of t as finished. Calling it twice is harmless.
func (s *Session) EndWrite(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Epoch != s.epoch {
		return
	}
	if _, ok := s.pending[t.DocumentID][t.Seq]; !ok {
		return
	}
	delete(s.pending[t.DocumentID], t.Seq)
	if len(s.pending[t.DocumentID]) == 0 {
		delete(s.pending, t.DocumentID)
	}
	s.seq++
	s.touched[t.DocumentID] = s.seq
}

// BeginRead issues the ticket for fetching documentID again.
func (s *Session) BeginRead(documentID string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issue(documentID)
}

// ApplyRead shows a refetched document. The result is dropped when any write
// to the document was in flight at some point while the read was, since the
// server may have answered with the record from before that write.
func (s *Session) ApplyRead(t Ticket, doc model.Document) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Epoch != s.epoch || doc.ID != t.DocumentID || len(s.pending[doc.ID]) > 0 || s.touched[doc.ID] >= t.Seq {
		return s.snapshot(), false
	}
	s.put(doc)
	return s.snapshot(), true
}

// Reconcile replaces the document with the server confirmed record of a write,
// in the list and in the selection. It is dropped after logout, and when a
// write issued later for the same document has already been reconciled.
func (s *Session) Reconcile(t Ticket, doc model.Document) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Epoch != s.epoch || doc.ID != t.DocumentID || t.Seq <= s.reconciled[doc.ID] {
		return s.snapshot(), false
	}
	s.reconciled[doc.ID] = t.Seq
	s.put(doc)
	return s.snapshot(), true
}

// Insert adds a newly created document to the list.
func (s *Session) Insert(t Ticket, doc model.Document) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Epoch != s.epoch || s.indexOf(doc.ID) >= 0 {
		return s.snapshot(), false
	}
	s.documents = append(s.documents, doc)
	s.reconciled[doc.ID] = t.Seq
	return s.snapshot(), true
}

// Remove drops a deleted document from the list and from the selection.
func (s *Session) Remove(t Ticket, documentID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Epoch != s.epoch {
		return s.snapshot(), false
	}
	if i := s.indexOf(documentID); i >= 0 {
		s.documents = slices.Delete(s.documents, i, i+1)
	}
	if s.selected != nil && s.selected.ID == documentID {
		s.selected = nil
		s.versions = nil
	}
	delete(s.reconciled, documentID)
	delete(s.pending, documentID)
	delete(s.touched, documentID)
	return s.snapshot(), true
}

func (s *Session) reset() {
	s.epoch++
	s.user = nil
	s.documents = nil
	s.selected = nil
	s.versions = nil
	s.lastLoad = ulid.ULID{}
	s.lastRefresh = ulid.ULID{}
	s.reconciled = map[string]uint64{}
	s.pending = map[string]map[uint64]struct{}{}
	s.touched = map[string]uint64{}
}

func (s *Session) put(doc model.Document) {
	if i := s.indexOf(doc.ID); i >= 0 {
		s.documents[i] = doc
	}
	if s.selected != nil && s.selected.ID == doc.ID {
		d := doc
		s.selected = &d
	}
}

func (s *Session) issue(documentID string) Ticket {
	s.seq++
	return Ticket{Epoch: s.epoch, DocumentID: documentID, ID: ulid.Make(), Seq: s.seq}
}

func (s *Session) indexOf(id string) int {
	return slices.IndexFunc(s.documents, func(d model.Document) bool { return d.ID == id })
}

func (s *Session) snapshot() State {
	st := State{
		Epoch:     s.epoch,
		Documents: slices.Clone(s.documents),
		Versions:  slices.Clone(s.versions),
	}
	if st.Documents == nil {
		st.Documents = []model.Document{}
	}
	if st.Versions == nil {
		st.Versions = []model.VersionRecord{}
	}
	if s.user != nil {
		u := cloneUser(*s.user)
		st.User = &u
	}
	if s.selected != nil {
		d := *s.selected
		st.Selected = &d
	}
	return st
}

func cloneUser(u model.User) model.User {
	u.Permissions = slices.Clone(u.Permissions)
	return u
}
