package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dfs-summarizer/summarizer/internal/client"
	"github.com/dfs-summarizer/summarizer/internal/model"
	"github.com/dfs-summarizer/summarizer/internal/server"
	"github.com/dfs-summarizer/summarizer/internal/service"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
		then     string
	}{
		{"plain", "http://localhost:8000", ""},
		{"trailing slash", "https://dfs.example.com/", ""},
		{"no scheme", "localhost:8000", "please define the server url"},
		{"path", "http://localhost:8000/scrape", "please define the server url"},
		{"scheme", "ftp://localhost:8000", `unsupported scheme "ftp"`},
	}
	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			c, err := client.New(tc.given)
			if tc.then == "" {
				require.NoError(t, err)
				require.NotNil(t, c)
				return
			}
			require.ErrorContains(t, err, tc.then)
		})
	}
}

type worker struct {
	output   string
	code     int
	spawnErr error
}

func (w worker) Spawn(_ context.Context, _ service.Env) (service.Handle, error) {
	if w.spawnErr != nil {
		return nil, w.spawnErr
	}
	return handle{r: strings.NewReader(w.output), code: w.code}, nil
}

type handle struct {
	r    io.Reader
	code int
}

func (h handle) Output() io.Reader  { return h.r }
func (h handle) Wait() (int, error) { return h.code, nil }

func newClient(t *testing.T, w service.Worker) *client.Client {
	t.Helper()
	cfg := model.DefaultConfig()
	srv := httptest.NewServer(server.NewHandler(service.NewRunner(w, nil, cfg.Worker), server.Config{}))
	t.Cleanup(srv.Close)
	c, err := client.New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestScrape(t *testing.T) {
	t.Parallel()
	type open func(*client.Client, context.Context) (*client.Stream, error)
	var testCases = []struct {
		scenario string
		given    open
	}{
		{"sse", (*client.Client).Scrape},
		{"websocket", (*client.Client).ScrapeWS},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			c := newClient(t, worker{output: "a\n\nb: c\n", code: 0})
			stream, err := tc.given(c, t.Context())
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = stream.Close()
			})

			var events []model.Event
			for ev, err := range stream.Events() {
				require.NoError(t, err)
				events = append(events, ev)
			}
			require.Len(t, events, 5)
			for i, ev := range events {
				require.Equal(t, stream.RunID, ev.RunID)
				require.Equal(t, i, ev.Seq)
			}
			require.Equal(t, model.EventStart, events[0].Type)
			require.Equal(t, "a", events[1].Text)
			require.Equal(t, "", events[2].Text)
			require.Equal(t, "b: c", events[3].Text)
			require.Equal(t, model.EventEnd, events[4].Type)
			require.False(t, events[4].Failed())
		})
	}
}

func TestScrapeLaunchFailure(t *testing.T) {
	t.Parallel()
	c := newClient(t, worker{spawnErr: errors.New("worker launch failed: no such file")})

	_, err := c.Scrape(t.Context())
	require.EqualError(t, err, "status code: 500, error: worker launch failed: no such file")

	_, err = c.ScrapeWS(t.Context())
	require.EqualError(t, err, "status code: 500, error: worker launch failed: no such file")
}

func TestScrapeNotSummarizer(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html></html>")
	}))
	t.Cleanup(srv.Close)
	c, err := client.New(srv.URL)
	require.NoError(t, err)

	_, err = c.Scrape(t.Context())
	require.EqualError(t, err, "expected `text/event-stream` content type, got: text/html")
}
