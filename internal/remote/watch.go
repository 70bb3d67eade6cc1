package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	ws "github.com/coder/websocket"
)

type nudge struct {
	Type     string `json:"type"`
	Revision int64  `json:"revision"`
}

// Watch connects to the server's revision feed and calls onRevision for each
// announced revision until ctx is done or the connection drops. It returns
// nil when ctx is cancelled.
func (c *Client) Watch(ctx context.Context, onRevision func(rev int64)) error {
	conn, _, err := ws.Dial(ctx, c.watchURL(), &ws.DialOptions{
		HTTPClient: &http.Client{Transport: c.httpClient.Transport},
		HTTPHeader: http.Header{"Authorization": {"Bearer " + c.token}},
	})
	if err != nil {
		return fmt.Errorf("dial revision feed: %w", err)
	}
	defer conn.CloseNow()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				conn.Close(ws.StatusNormalClosure, "")
				return nil
			}
			return fmt.Errorf("read revision feed: %w", err)
		}
		var msg nudge
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "revision" {
			continue
		}
		onRevision(msg.Revision)
	}
}

func (c *Client) watchURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	default:
		return c.baseURL + "/ws"
	}
}
