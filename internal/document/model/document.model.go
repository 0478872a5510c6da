package model

import "time"

// Metadata is the bookkeeping block of a Document. Version starts at 1 and
// advances by exactly one per content change or restore; title edits leave it alone.
type Metadata struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy"`
	Version   int       `json:"version"`
}

type Document struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title"`
	Content  string   `json:"content"` // serialized rich text, opaque here
	OwnerID  string   `json:"userId"`
	Metadata Metadata `json:"metadata"`
}

// VersionRecord is an immutable snapshot of a document as it was immediately
// before a content change. Version is the snapshot's version, not the new one.
type VersionRecord struct {
	ID                string    `json:"id,omitempty"`
	DocumentID        string    `json:"documentId"`
	Content           string    `json:"content"`
	Title             string    `json:"title"`
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"createdAt"`
	CreatedBy         string    `json:"createdBy"`
	ChangeDescription string    `json:"changeDescription,omitempty"`
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// StoredSession is what the client keeps locally between runs.
type StoredSession struct {
	User    User
	Token   string
	SavedAt time.Time
}

// ListQuery is an equality filter plus optional ordering over a collection.
type ListQuery struct {
	Field string // filter field, e.g. "userId"
	Value string
	Sort  string // e.g. "version"
	Order string // "asc" or "desc"
}

const (
	DocumentCreatedEvent = "DOCUMENT_CREATED"
	DocumentUpdatedEvent = "DOCUMENT_UPDATED"
	DocumentDeletedEvent = "DOCUMENT_DELETED"
	VersionCreatedEvent  = "VERSION_CREATED"
)

// ChangeEvent tells a user's connected clients that one of their documents
// changed in the store. It carries no content.
type ChangeEvent struct {
	Type       string    `json:"type"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title,omitempty"`
	Version    int       `json:"version,omitempty"`
	At         time.Time `json:"at"`
}
