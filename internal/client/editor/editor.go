// Package editor drives the document editor: sign in and out, list, open,
// create, save, rename, restore and delete documents.
//
// Every content change is written in two steps. The snapshot of the outgoing
// state goes to the version log first and the document is replaced only once
// that succeeded. The session then shows what the store confirmed.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"naskah/internal/client/mutator"
	"naskah/internal/client/session"
	"naskah/internal/client/storeclient"
	"naskah/internal/client/versionlog"
	"naskah/internal/document/model"
	"naskah/pkg/logger"
)

var (
	ErrNotLoggedIn      = errors.New("not logged in")
	ErrUnknownDocument  = errors.New("document is not in the list")
	ErrRestoreFailed    = errors.New("restore failed")
	ErrNoActiveDocument = mutator.ErrNoActiveDocument
)

type DocumentStore interface {
	ListDocuments(ctx context.Context, ownerID string) ([]model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error)
	UpdateDocument(ctx context.Context, doc model.Document) (*model.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

type Authenticator interface {
	Login(ctx context.Context, username, password string) (*model.LoginResponse, error)
	SetToken(token string)
}

type Backend interface {
	DocumentStore
	versionlog.Store
	Authenticator
}

// SessionStore keeps the signed-in user across restarts. Load returns nil when
// nobody is signed in.
type SessionStore interface {
	Save(ctx context.Context, s model.StoredSession) error
	Load(ctx context.Context) (*model.StoredSession, error)
	Clear(ctx context.Context) error
}

type Option func(*Editor)

func WithClock(clock mutator.Clock) Option {
	return func(e *Editor) { e.clock = clock }
}

func WithNotifier(n Notifier) Option {
	return func(e *Editor) { e.notifier = n }
}

func WithSessionStore(s SessionStore) Option {
	return func(e *Editor) { e.sessions = s }
}

// WithRestoreSnapshots controls whether a restore first logs the state it
// replaces. On by default.
func WithRestoreSnapshots(on bool) Option {
	return func(e *Editor) { e.restoreSnapshots = on }
}

type Editor struct {
	backend  Backend
	sessions SessionStore
	notifier Notifier
	clock    mutator.Clock

	mutator *mutator.Mutator
	log     *versionlog.Writer
	session *session.Session

	restoreSnapshots bool
	refreshes        sync.WaitGroup
}

func New(backend Backend, opts ...Option) *Editor {
	e := &Editor{
		backend:          backend,
		notifier:         LogNotifier{},
		clock:            mutator.SystemClock{},
		restoreSnapshots: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.mutator = mutator.New(e.clock)
	e.log = versionlog.NewWriter(backend)
	e.session = session.New()
	return e
}

func (e *Editor) State() session.State {
	return e.session.Snapshot()
}

// WaitRefreshes blocks until every version refresh started so far has finished.
func (e *Editor) WaitRefreshes() {
	e.refreshes.Wait()
}

func (e *Editor) Login(ctx context.Context, username, password string) (session.State, error) {
	resp, err := e.backend.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, storeclient.ErrInvalidCredentials) {
			e.notifier.Failure("Invalid username or password", err)
		} else {
			e.notifier.Failure("Login failed", err)
		}
		return e.State(), err
	}

	e.backend.SetToken(resp.Token)
	st := e.session.Init(resp.User)
	if e.sessions != nil {
		stored := model.StoredSession{User: resp.User, Token: resp.Token, SavedAt: e.clock.Now()}
		if err := e.sessions.Save(ctx, stored); err != nil {
			logger.Sugar.Warnf("Could not remember session for %s: %v", resp.User.Username, err)
		}
	}
	logger.Sugar.Infof("Logged in as %s", resp.User.Username)
	return st, nil
}

// Resume signs the remembered user back in. It reports false when there is no
// remembered session.
func (e *Editor) Resume(ctx context.Context) (session.State, bool, error) {
	if e.sessions == nil {
		return e.State(), false, nil
	}
	stored, err := e.sessions.Load(ctx)
	if err != nil {
		return e.State(), false, fmt.Errorf("load session: %w", err)
	}
	if stored == nil {
		return e.State(), false, nil
	}
	e.backend.SetToken(stored.Token)
	return e.session.Init(stored.User), true, nil
}

// Logout discards all session state. Writes still in flight are not waited for.
func (e *Editor) Logout(ctx context.Context) session.State {
	st := e.session.Teardown()
	e.backend.SetToken("")
	if e.sessions != nil {
		if err := e.sessions.Clear(ctx); err != nil {
			logger.Sugar.Warnf("Could not forget session: %v", err)
		}
	}
	return st
}

func (e *Editor) LoadDocuments(ctx context.Context) (session.State, error) {
	user, err := e.user()
	if err != nil {
		return e.State(), err
	}
	ticket := e.session.BeginLoad()
	docs, err := e.backend.ListDocuments(ctx, user.ID)
	if err != nil {
		e.notifier.Failure("Failed to load documents", err)
		return e.State(), fmt.Errorf("load documents: %w", err)
	}
	st, _ := e.session.SetDocuments(ticket, docs)
	return st, nil
}

// Select opens a document from the list and starts fetching its versions.
func (e *Editor) Select(ctx context.Context, documentID string) (session.State, error) {
	if _, err := e.user(); err != nil {
		return e.State(), err
	}
	doc, ok := e.State().Document(documentID)
	if !ok {
		return e.State(), fmt.Errorf("%w: %s", ErrUnknownDocument, documentID)
	}
	st, ticket := e.session.Select(doc)
	e.refresh(ctx, ticket)
	return st, nil
}

// Reload fetches the selected document again and shows the stored record.
func (e *Editor) Reload(ctx context.Context) (session.State, error) {
	if _, err := e.user(); err != nil {
		return e.State(), err
	}
	selected := e.State().Selected
	if selected == nil {
		return e.State(), ErrNoActiveDocument
	}
	ticket := e.session.BeginRead(selected.ID)
	doc, err := e.backend.GetDocument(ctx, selected.ID)
	if err != nil {
		e.notifier.Failure("Failed to load document", err)
		return e.State(), fmt.Errorf("reload document: %w", err)
	}
	st, ok := e.session.ApplyRead(ticket, *doc)
	if !ok {
		logger.Sugar.Debugf("Dropped reload of %s racing a write", doc.ID)
	}
	return st, nil
}

// New creates an empty document, adds it to the list and selects it.
func (e *Editor) New(ctx context.Context) (session.State, error) {
	user, err := e.user()
	if err != nil {
		return e.State(), err
	}
	ticket := e.session.BeginWrite("")
	created, err := e.backend.CreateDocument(ctx, e.mutator.ApplyCreate(user.ID))
	if err != nil {
		e.notifier.Failure("Failed to create document", err)
		return e.State(), fmt.Errorf("create document: %w", err)
	}
	st, ok := e.session.Insert(ticket, *created)
	if !ok {
		return st, nil
	}
	st, refresh := e.session.Select(*created)
	e.refresh(ctx, refresh)
	e.notifier.Success("Document created")
	return st, nil
}

// Save stores newContent as the next version of the selected document.
func (e *Editor) Save(ctx context.Context, newContent string) (session.State, error) {
	user, err := e.user()
	if err != nil {
		return e.State(), err
	}
	snapshot, next, err := e.mutator.ApplyContentSave(e.State().Selected, newContent, user)
	if err != nil {
		return e.State(), err
	}

	ticket := e.session.BeginWrite(next.ID)
	defer e.session.EndWrite(ticket)
	if _, err := e.log.Append(ctx, snapshot); err != nil {
		e.notifier.Failure("Failed to save document", err)
		return e.State(), fmt.Errorf("save document: %w", err)
	}
	stored, err := e.backend.UpdateDocument(ctx, next)
	if err != nil {
		e.notifier.Failure("Failed to save document", err)
		return e.State(), fmt.Errorf("save document: %w", storeclient.AsPersistenceError("update document", err))
	}
	return e.confirm(ctx, ticket, *stored, "Document saved")
}

// ChangeTitle renames the selected document. No version is recorded.
func (e *Editor) ChangeTitle(ctx context.Context, title string) (session.State, error) {
	if _, err := e.user(); err != nil {
		return e.State(), err
	}
	next, err := e.mutator.ApplyTitleChange(e.State().Selected, title)
	if err != nil {
		return e.State(), err
	}
	ticket := e.session.BeginWrite(next.ID)
	defer e.session.EndWrite(ticket)
	stored, err := e.backend.UpdateDocument(ctx, next)
	if err != nil {
		e.notifier.Failure("Failed to update title", err)
		return e.State(), fmt.Errorf("change title: %w", storeclient.AsPersistenceError("update document", err))
	}
	st, _ := e.session.Reconcile(ticket, *stored)
	e.notifier.Success("Title updated")
	return st, nil
}

// Restore brings target back as the newest version of the selected document.
// Any failure wraps ErrRestoreFailed and leaves the document as it was.
func (e *Editor) Restore(ctx context.Context, target model.VersionRecord) (session.State, error) {
	user, err := e.user()
	if err != nil {
		return e.State(), err
	}
	current := e.State().Selected
	next, err := e.mutator.ApplyRestore(current, target)
	if err != nil {
		return e.State(), err
	}

	ticket := e.session.BeginWrite(next.ID)
	defer e.session.EndWrite(ticket)
	if e.restoreSnapshots {
		snapshot, err := e.mutator.Snapshot(current, user, fmt.Sprintf("Before restoring version %d", target.Version))
		if err != nil {
			return e.State(), err
		}
		if _, err := e.log.Append(ctx, snapshot); err != nil {
			e.notifier.Failure("Failed to restore version", err)
			return e.State(), fmt.Errorf("%w: %w", ErrRestoreFailed, err)
		}
	}
	stored, err := e.backend.UpdateDocument(ctx, next)
	if err != nil {
		e.notifier.Failure("Failed to restore version", err)
		return e.State(), fmt.Errorf("%w: %w", ErrRestoreFailed, storeclient.AsPersistenceError("update document", err))
	}
	return e.confirm(ctx, ticket, *stored, fmt.Sprintf("Restored version %d", target.Version))
}

func (e *Editor) Delete(ctx context.Context, documentID string) (session.State, error) {
	if _, err := e.user(); err != nil {
		return e.State(), err
	}
	ticket := e.session.BeginWrite(documentID)
	defer e.session.EndWrite(ticket)
	if err := e.backend.DeleteDocument(ctx, documentID); err != nil {
		e.notifier.Failure("Failed to delete document", err)
		return e.State(), fmt.Errorf("delete document: %w", err)
	}
	st, _ := e.session.Remove(ticket, documentID)
	e.notifier.Success("Document deleted")
	return st, nil
}

// confirm reconciles a content write and refreshes the versions of the
// document if it is still selected.
func (e *Editor) confirm(ctx context.Context, ticket session.Ticket, stored model.Document, msg string) (session.State, error) {
	st, ok := e.session.Reconcile(ticket, stored)
	if !ok {
		logger.Sugar.Debugf("Dropped stale result for %s", stored.ID)
		return st, nil
	}
	if refresh, ok := e.session.RefreshTicket(stored.ID); ok {
		e.refresh(ctx, refresh)
	}
	e.notifier.Success(msg)
	return st, nil
}

// refresh fetches versions in the background. The request is not tied to the
// caller's cancellation; a stale answer is simply not applied.
func (e *Editor) refresh(ctx context.Context, ticket session.Ticket) {
	ctx = context.WithoutCancel(ctx)
	e.refreshes.Add(1)
	go func() {
		defer e.refreshes.Done()
		versions, err := e.log.List(ctx, ticket.DocumentID)
		if err != nil {
			e.notifier.Failure("Failed to load version history", err)
			return
		}
		if _, ok := e.session.ApplyVersions(ticket, versions); !ok {
			logger.Sugar.Debugf("Dropped stale versions of %s", ticket.DocumentID)
		}
	}()
}

func (e *Editor) user() (model.User, error) {
	st := e.State()
	if st.User == nil {
		return model.User{}, ErrNotLoggedIn
	}
	return *st.User, nil
}
