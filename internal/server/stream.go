package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dfs-summarizer/summarizer/internal/model"
)

const (
	runIDHeader = "X-Run-Id"

	contentTypeSSE  = "text/event-stream"
	contentTypeText = "text/plain; charset=utf-8"
)

// encoder writes one event as one chunk of the response body.
type encoder interface {
	ContentType() string
	Encode(w io.Writer, ev model.Event) error
}

// negotiate picks plain text only when the caller asks for it explicitly,
// server-sent events are the default.
func negotiate(r *http.Request) encoder {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case contentTypeSSE:
			return sseEncoder{}
		case "text/plain":
			return textEncoder{}
		}
	}
	return sseEncoder{}
}

// sseEncoder frames every event as a server-sent event named by its type,
// the data field holds the JSON encoded event.
type sseEncoder struct{}

func (sseEncoder) ContentType() string {
	return contentTypeSSE
}

func (sseEncoder) Encode(w io.Writer, ev model.Event) error {
	blob, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", ev.Type, ev.ID(), blob)
	return err
}

type textEncoder struct{}

func (textEncoder) ContentType() string {
	return contentTypeText
}

func (textEncoder) Encode(w io.Writer, ev model.Event) error {
	_, err := io.WriteString(w, ev.PlainText())
	return err
}
