package storeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"naskah/internal/document/model"
)

const watchPath = "/ws"

// Watch follows the change feed of the logged-in user and calls fn for every
// event until ctx is done or the connection drops. It returns nil when ctx ends
// the watch.
func (c *Client) Watch(ctx context.Context, fn func(model.ChangeEvent)) error {
	target, err := c.watchURL()
	if err != nil {
		return &PersistenceError{Op: "watch", Err: err}
	}

	header := http.Header{}
	c.mu.RLock()
	if c.token != "" {
		header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	c.mu.RUnlock()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return &PersistenceError{Op: "watch", Status: status, Err: err}
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &PersistenceError{Op: "watch", Err: err}
		}
		var e model.ChangeEvent
		if err := json.Unmarshal(msg, &e); err != nil {
			return &PersistenceError{Op: "watch", Err: fmt.Errorf("decoding event: %w", err)}
		}
		fn(e)
	}
}

func (c *Client) watchURL() (string, error) {
	u, err := url.Parse(c.baseURL + watchPath)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
