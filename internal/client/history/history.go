// Package history presents the version list of the selected document and
// restores entries from it.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"naskah/internal/client/session"
	"naskah/internal/document/model"
)

const timeLayout = "2006-01-02 15:04:05"

type Restorer interface {
	State() session.State
	Restore(ctx context.Context, target model.VersionRecord) (session.State, error)
}

type Entry struct {
	Record    model.VersionRecord
	Label     string // "Version 3 - Changes made by ana"
	Timestamp string
}

type Presenter struct {
	restorer Restorer
	loc      *time.Location

	mu   sync.Mutex
	open bool
}

func NewPresenter(restorer Restorer, loc *time.Location) *Presenter {
	if loc == nil {
		loc = time.Local
	}
	return &Presenter{restorer: restorer, loc: loc}
}

func (p *Presenter) Open() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
}

func (p *Presenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
}

func (p *Presenter) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Versions returns the selected document's versions, newest first.
func (p *Presenter) Versions() []model.VersionRecord {
	return p.restorer.State().Versions
}

func (p *Presenter) Entries() []Entry {
	versions := p.Versions()
	entries := make([]Entry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, Entry{
			Record:    v,
			Label:     Label(v),
			Timestamp: v.CreatedAt.In(p.loc).Format(timeLayout),
		})
	}
	return entries
}

// Label is "Version N", followed by " - <description>" when there is one.
func Label(v model.VersionRecord) string {
	if v.ChangeDescription == "" {
		return fmt.Sprintf("Version %d", v.Version)
	}
	return fmt.Sprintf("Version %d - %s", v.Version, v.ChangeDescription)
}

// Restore restores target and closes the view. On failure the view stays open
// and the error wraps editor.ErrRestoreFailed.
func (p *Presenter) Restore(ctx context.Context, target model.VersionRecord) (session.State, error) {
	st, err := p.restorer.Restore(ctx, target)
	if err != nil {
		return st, err
	}
	p.Close()
	return st, nil
}
