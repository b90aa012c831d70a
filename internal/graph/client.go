// internal/graph/client.go
//
// HTTP client for a graph relay.
//
// Context
// -------
// The relay exposes the shared graph over plain HTTP: GET reads one node,
// PUT writes one (a JSON null body is a tombstone), and a GET with
// `Accept: text/event-stream` opens a server-sent-event stream of child
// updates.  The relay merges concurrent writers with last-write-wins
// semantics; this client adds nothing on top and callers must tolerate
// interleaved writes from other publishers on the same network.
//
// Notes
// -----
// • Node paths are escaped per segment; the "~" address prefix survives
//   escaping because the relay treats it as part of the key.
// • A 404 is a well-formed absence, not an error.

package graph

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to one graph relay.  Safe for concurrent use; the embedded
// http.Client pools connections.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a relay client for base, e.g.
// "https://relay.example/gun".
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Put writes value at path; nil value writes a JSON null tombstone.
func (c *Client) Put(ctx context.Context, path string, value any) error {
	body := []byte("null")
	if value != nil {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("graph: marshal %s: %w", path, err)
		}
		body = b
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.nodeURL(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("graph: put %s: relay returned %s", path, resp.Status)
	}
	return nil
}

// Get reads the node at path.  Absent and tombstoned nodes both return nil.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL(path), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph: get %s: relay returned %s", path, resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if isJSONNull(raw) {
		return nil, nil
	}
	return raw, nil
}

// Subscribe opens an event stream for children of path.  The stream ends
// when the subscription is cancelled or the relay closes the connection;
// the relay does not resume streams, so a consumer that needs durability
// re-subscribes.
func (c *Client) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(subCtx, http.MethodGet, c.nodeURL(path), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("graph: subscribe %s: relay returned %s", path, resp.Status)
	}

	events := make(chan Event, 64)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var ev wireEvent
			if err := json.Unmarshal([]byte(strings.TrimSpace(line[len("data:"):])), &ev); err != nil {
				zap.S().Warnw("graph: bad stream event", "path", path, "err", err)
				continue
			}
			out := Event{Key: ev.Key, Data: ev.Value, Tombstone: isJSONNull(ev.Value)}
			if out.Tombstone {
				out.Data = nil
			}
			select {
			case events <- out:
			case <-subCtx.Done():
				return
			}
		}
	}()

	return NewSubscription(events, cancel), nil
}

// wireEvent is one SSE payload from the relay.
type wireEvent struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (c *Client) nodeURL(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return c.base + "/" + strings.Join(segs, "/")
}

func isJSONNull(raw []byte) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

var _ Store = (*Client)(nil)
var _ Store = (*MemoryStore)(nil)
