package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"naskah/internal/document/model"
)

const (
	documentsPath = "/documents"
	versionsPath  = "/document-versions"
	loginPath     = "/auth/login"
)

const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

// defaultClient bounds connection setup only; a request that got through stays
// in flight until the server answers.
func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
	}
}

// Client talks JSON to the documents, document-versions and auth endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string) *Client {
	return NewWithHTTPClient(baseURL, defaultClient())
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SetToken sets the bearer token attached to every later request. Empty clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	err := c.do(ctx, "log in", http.MethodPost, loginPath, nil, model.LoginRequest{Username: username, Password: password}, &resp)
	var pe *PersistenceError
	if errors.As(err, &pe) && pe.Status == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListDocuments(ctx context.Context, ownerID string) ([]model.Document, error) {
	docs := []model.Document{}
	q := url.Values{"userId": {ownerID}}
	if err := c.do(ctx, "list documents", http.MethodGet, documentsPath, q, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := c.do(ctx, "get document", http.MethodGet, documentsPath+"/"+url.PathEscape(id), nil, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	var created model.Document
	if err := c.do(ctx, "create document", http.MethodPost, documentsPath, nil, doc, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateDocument replaces the stored document with doc and returns the stored record.
func (c *Client) UpdateDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	if doc.ID == "" {
		return nil, &PersistenceError{Op: "update document", Err: errors.New("document has no id")}
	}
	var stored model.Document
	if err := c.do(ctx, "update document", http.MethodPut, documentsPath+"/"+url.PathEscape(doc.ID), nil, doc, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, "delete document", http.MethodDelete, documentsPath+"/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) CreateVersion(ctx context.Context, rec model.VersionRecord) (*model.VersionRecord, error) {
	var created model.VersionRecord
	if err := c.do(ctx, "append version", http.MethodPost, versionsPath, nil, rec, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListVersions asks for the document's versions newest first.
func (c *Client) ListVersions(ctx context.Context, documentID string) ([]model.VersionRecord, error) {
	versions := []model.VersionRecord{}
	q := url.Values{
		"documentId": {documentID},
		"_sort":      {"version"},
		"_order":     {"desc"},
	}
	if err := c.do(ctx, "list versions", http.MethodGet, versionsPath, q, nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, args any, result any) error {
	var body io.Reader
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return &PersistenceError{Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if args != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	c.mu.RUnlock()

	r, err := c.httpClient.Do(req)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return &PersistenceError{Op: op, Status: r.StatusCode, Err: err}
	}

	if r.StatusCode < 200 || r.StatusCode > 299 {
		// the response body is the error message
		msg := strings.TrimSpace(string(responseBodyBytes))
		if r.StatusCode == http.StatusNotFound {
			return &PersistenceError{Op: op, Status: r.StatusCode, Err: fmt.Errorf("%w: %s", ErrNotFound, msg)}
		}
		return &PersistenceError{Op: op, Status: r.StatusCode, Err: errors.New(msg)}
	}

	if result == nil || len(bytes.TrimSpace(responseBodyBytes)) == 0 {
		return nil
	}
	if err := json.Unmarshal(responseBodyBytes, result); err != nil {
		return &PersistenceError{Op: op, Status: r.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
