package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naskah/internal/document/model"
)

var (
	ana  = model.User{ID: "user-1", Username: "ana", Permissions: []string{"read", "write"}}
	docA = model.Document{ID: "a", Title: "A", Metadata: model.Metadata{Version: 1}}
	docB = model.Document{ID: "b", Title: "B", Metadata: model.Metadata{Version: 1}}
)

func loggedIn(t *testing.T) *Session {
	t.Helper()
	s := New()
	s.Init(ana)
	_, ok := s.SetDocuments(s.BeginLoad(), []model.Document{docA, docB})
	require.True(t, ok)
	return s
}

func TestStaleRefreshIsDropped(t *testing.T) {
	s := loggedIn(t)

	_, ticketA := s.Select(docA)
	_, ticketB := s.Select(docB)

	bVersions := []model.VersionRecord{{ID: "vb", DocumentID: "b", Version: 1}}
	st, ok := s.ApplyVersions(ticketB, bVersions)
	require.True(t, ok)
	assert.Equal(t, bVersions, st.Versions)

	// A's fetch resolves last
	st, ok = s.ApplyVersions(ticketA, []model.VersionRecord{{ID: "va", DocumentID: "a", Version: 1}})
	assert.False(t, ok)
	assert.Equal(t, bVersions, st.Versions)
	assert.Equal(t, "b", st.Selected.ID)
}

func TestOlderRefreshOfSameDocumentIsDropped(t *testing.T) {
	s := loggedIn(t)

	_, first := s.Select(docA)
	second, ok := s.RefreshTicket("a")
	require.True(t, ok)
	_, ok = s.RefreshTicket("b")
	assert.False(t, ok)

	_, ok = s.ApplyVersions(second, []model.VersionRecord{{ID: "v2", DocumentID: "a", Version: 2}})
	require.True(t, ok)

	st, ok := s.ApplyVersions(first, []model.VersionRecord{{ID: "v1", DocumentID: "a", Version: 1}})
	assert.False(t, ok)
	require.Len(t, st.Versions, 1)
	assert.Equal(t, "v2", st.Versions[0].ID)
}

func TestSelectClearsVersions(t *testing.T) {
	s := loggedIn(t)
	_, ticket := s.Select(docA)
	s.ApplyVersions(ticket, []model.VersionRecord{{ID: "v1", DocumentID: "a"}})

	st, _ := s.Select(docB)
	assert.Empty(t, st.Versions)
}

func TestReconcileReplacesListAndSelection(t *testing.T) {
	s := loggedIn(t)
	s.Select(docA)

	ticket := s.BeginWrite("a")
	confirmed := docA
	confirmed.Content = "<p>hi</p>"
	confirmed.Metadata.Version = 2

	st, ok := s.Reconcile(ticket, confirmed)
	require.True(t, ok)
	assert.Equal(t, confirmed, *st.Selected)
	got, found := st.Document("a")
	require.True(t, found)
	assert.Equal(t, confirmed, got)
	assert.Len(t, st.Documents, 2)
}

func TestReconcileOfUnselectedDocumentLeavesSelection(t *testing.T) {
	s := loggedIn(t)
	s.Select(docA)

	renamed := docB
	renamed.Title = "B2"
	st, ok := s.Reconcile(s.BeginWrite("b"), renamed)
	require.True(t, ok)
	assert.Equal(t, docA, *st.Selected)
	got, _ := st.Document("b")
	assert.Equal(t, "B2", got.Title)
}

func TestSupersededWriteIsDropped(t *testing.T) {
	s := loggedIn(t)
	s.Select(docA)

	older := s.BeginWrite("a")
	newer := s.BeginWrite("a")

	v3 := docA
	v3.Metadata.Version = 3
	_, ok := s.Reconcile(newer, v3)
	require.True(t, ok)

	v2 := docA
	v2.Metadata.Version = 2
	st, ok := s.Reconcile(older, v2)
	assert.False(t, ok)
	assert.Equal(t, 3, st.Selected.Metadata.Version)
}

func TestReconcileRejectsMismatchedDocument(t *testing.T) {
	s := loggedIn(t)
	_, ok := s.Reconcile(s.BeginWrite("a"), docB)
	assert.False(t, ok)
}

func TestReadDuringWriteDoesNotOutrankIt(t *testing.T) {
	s := loggedIn(t)
	s.Select(docA)

	write := s.BeginWrite("a")
	read := s.BeginRead("a")

	// the read was answered before the write landed
	st, ok := s.ApplyRead(read, docA)
	assert.False(t, ok)
	assert.Equal(t, 1, st.Selected.Metadata.Version)

	v2 := docA
	v2.Metadata.Version = 2
	st, ok = s.Reconcile(write, v2)
	require.True(t, ok)
	assert.Equal(t, 2, st.Selected.Metadata.Version)
	s.EndWrite(write)

	// and cannot land after it either
	st, ok = s.ApplyRead(read, docA)
	assert.False(t, ok)
	assert.Equal(t, 2, st.Selected.Metadata.Version)
	listed, _ := st.Document("a")
	assert.Equal(t, 2, listed.Metadata.Version)
}

func TestReadStartedBeforeWriteIsDropped(t *testing.T) {
	s := loggedIn(t)
	s.Select(docA)

	read := s.BeginRead("a")
	write := s.BeginWrite("a")
	s.EndWrite(write)

	_, ok := s.ApplyRead(read, docA)
	assert.False(t, ok)
}

func TestReadAfterFinishedWriteApplies(t *testing.T) {
	s := loggedIn(t)
	s.Select(docA)

	failed := s.BeginWrite("a")
	s.EndWrite(failed)
	s.EndWrite(failed)

	fresh := docA
	fresh.Title = "A2"
	st, ok := s.ApplyRead(s.BeginRead("a"), fresh)
	require.True(t, ok)
	assert.Equal(t, "A2", st.Selected.Title)

	// a read of another document is not held back by this one
	write := s.BeginWrite("a")
	_, ok = s.ApplyRead(s.BeginRead("b"), docB)
	assert.True(t, ok)
	s.EndWrite(write)
}

func TestLateResponsesAfterLogoutAreDropped(t *testing.T) {
	s := loggedIn(t)
	_, refresh := s.Select(docA)
	write := s.BeginWrite("a")
	load := s.BeginLoad()
	read := s.BeginRead("a")

	st := s.Teardown()
	assert.False(t, st.LoggedIn())
	assert.Empty(t, st.Documents)
	assert.Nil(t, st.Selected)

	_, ok := s.ApplyVersions(refresh, []model.VersionRecord{{ID: "v1", DocumentID: "a"}})
	assert.False(t, ok)
	_, ok = s.Reconcile(write, docA)
	assert.False(t, ok)
	_, ok = s.SetDocuments(load, []model.Document{docA})
	assert.False(t, ok)
	_, ok = s.Insert(write, docA)
	assert.False(t, ok)
	_, ok = s.ApplyRead(read, docA)
	assert.False(t, ok)
	s.EndWrite(write)

	// nor into the next login
	s.Init(ana)
	_, ok = s.Reconcile(write, docA)
	assert.False(t, ok)
	st = s.Snapshot()
	assert.Empty(t, st.Documents)
	assert.Empty(t, st.Versions)
}

func TestOnlyLatestLoadApplies(t *testing.T) {
	s := New()
	s.Init(ana)
	first := s.BeginLoad()
	second := s.BeginLoad()

	_, ok := s.SetDocuments(second, []model.Document{docB})
	require.True(t, ok)
	st, ok := s.SetDocuments(first, []model.Document{docA, docB})
	assert.False(t, ok)
	assert.Len(t, st.Documents, 1)
}

func TestInsertAndRemove(t *testing.T) {
	s := loggedIn(t)
	created := model.Document{ID: "c", Title: "Untitled Document", Metadata: model.Metadata{Version: 1}}

	st, ok := s.Insert(s.BeginWrite("c"), created)
	require.True(t, ok)
	assert.Len(t, st.Documents, 3)

	s.Select(created)
	st, ok = s.Remove(s.BeginWrite("c"), "c")
	require.True(t, ok)
	assert.Len(t, st.Documents, 2)
	assert.Nil(t, st.Selected)
	_, found := st.Document("c")
	assert.False(t, found)
}

func TestSnapshotsAreIndependent(t *testing.T) {
	s := loggedIn(t)
	st := s.Snapshot()

	st.Documents[0].Title = "mutated"
	st.User.Permissions[0] = "admin"

	fresh := s.Snapshot()
	assert.Equal(t, "A", fresh.Documents[0].Title)
	assert.Equal(t, "read", fresh.User.Permissions[0])

	s.Select(docA)
	assert.Nil(t, st.Selected)
}

func TestInitStartsNewEpoch(t *testing.T) {
	s := New()
	first := s.Init(ana)
	second := s.Init(ana)
	assert.NotEqual(t, first.Epoch, second.Epoch)
	assert.True(t, second.LoggedIn())
}
