package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/dfs-summarizer/summarizer/internal/model"

	"github.com/gorilla/websocket"
)

const (
	scrapePath   = "/scrape"
	scrapeWSPath = "/scrape/ws"
	runIDHeader  = "X-Run-Id"
)

// Client triggers runs on a remote summarizer and follows their output.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	dialer  *websocket.Dialer
}

func New(serverURL string) (*Client, error) {
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	parsedURL.Path = strings.TrimRight(parsedURL.Path, "/")

	if parsedURL.Scheme == "" || parsedURL.Host == "" || parsedURL.Path != "" {
		return nil, errors.New("please define the server url with a scheme and without path, e.g. `http://localhost:8000`")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q, expected http or https", parsedURL.Scheme)
	}

	return &Client{
		baseURL: parsedURL,
		client:  &http.Client{},
		dialer:  websocket.DefaultDialer,
	}, nil
}

// Stream is the output of one remote run.
type Stream struct {
	RunID string
	next  func() (model.Event, error)
	close func() error
}

// Events yields the events until the end event or an error. A broken
// stream is yielded as a single error.
func (s *Stream) Events() iter.Seq2[model.Event, error] {
	return func(yield func(model.Event, error) bool) {
		for {
			ev, err := s.next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(ev, err) || err != nil {
				return
			}
			if ev.Type == model.EventEnd {
				return
			}
		}
	}
}

func (s *Stream) Close() error {
	return s.close()
}

// Scrape starts a run and returns its server-sent event stream. An error is
// returned when the run could not be started.
func (c *Client) Scrape(ctx context.Context) (*Stream, error) {
	u := *c.baseURL
	u.Path = scrapePath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if err := c.checkResponse(resp, "text/event-stream"); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	runID := resp.Header.Get(runIDHeader)
	slog.DebugContext(ctx, "run started", "run_id", runID)

	dec := newSSEDecoder(resp.Body)
	return &Stream{
		RunID: runID,
		next:  dec.Next,
		close: func() error {
			dec.stop()
			return resp.Body.Close()
		},
	}, nil
}

// ScrapeWS is Scrape over a websocket.
func (c *Client) ScrapeWS(ctx context.Context) (*Stream, error) {
	u := *c.baseURL
	u.Path = scrapeWSPath
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer func() {
				_ = resp.Body.Close()
			}()
			if rerr := c.checkResponse(resp, ""); rerr != nil {
				return nil, rerr
			}
		}
		return nil, err
	}
	runID := resp.Header.Get(runIDHeader)
	slog.DebugContext(ctx, "run started", "run_id", runID)

	next := func() (model.Event, error) {
		var ev model.Event
		err := conn.ReadJSON(&ev)
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return model.Event{}, io.EOF
		}
		return ev, err
	}
	return &Stream{
		RunID: runID,
		next:  next,
		close: conn.Close,
	}, nil
}

// checkResponse turns a non-streaming response into an error. The body is
// consumed on error.
func (c *Client) checkResponse(resp *http.Response, want string) error {
	contentType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("failed to parse response content type header: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if want != "" && contentType != want {
			return fmt.Errorf("expected `%s` content type, got: %s", want, contentType)
		}
		return nil
	case resp.StatusCode == http.StatusSwitchingProtocols:
		return nil
	case contentType == "application/json":
		var problem struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&problem); err != nil {
			return fmt.Errorf("decoding json response failed: %w", err)
		}
		return fmt.Errorf("status code: %d, error: %s", resp.StatusCode, problem.Error)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return fmt.Errorf("unknown error, status: %d, body: %s", resp.StatusCode, string(respBody))
}
