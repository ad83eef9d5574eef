package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/chepyr/magna-todo/shared/models"
	"github.com/gorilla/websocket"
)

// Watch subscribes to the collection's live events and calls fn for each
// one until ctx ends or the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(models.Event)) error {
	wsURL, err := websocketURL(c.baseURL)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

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
		var ev models.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}
		fn(ev)
	}
}

func websocketURL(base string) (string, error) {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws", nil
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws", nil
	default:
		return "", fmt.Errorf("unsupported base url %q", base)
	}
}
