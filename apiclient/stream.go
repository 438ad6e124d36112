package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/AnTengye/invoicedesk/model"
	"github.com/gorilla/websocket"
)

// WatchUploads streams task snapshots to fn until fn returns false, the
// server closes the stream or ctx is done.
func (c *Client) WatchUploads(ctx context.Context, fn func(*model.UploadTask) bool) error {
	u, err := url.Parse(c.baseURL + "/api/uploads/stream")
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	// Browsers cannot set headers on websockets, so the server also reads the
	// token from the query; a header is still preferred here.
	header := http.Header{}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return c.statusError(request{}, resp.StatusCode, nil)
		}
		return fmt.Errorf("failed to open upload stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when ctx ends
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var task model.UploadTask
		if err := conn.ReadJSON(&task); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("upload stream: %w", err)
		}
		if !fn(&task) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}
