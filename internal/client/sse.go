package client

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/dfs-summarizer/summarizer/internal/model"
	"github.com/dfs-summarizer/summarizer/internal/service"
)

// sseDecoder reads server-sent events carrying JSON encoded model.Event
// in their data field.
type sseDecoder struct {
	next func() (string, error, bool)
	stop func()
}

func newSSEDecoder(r io.Reader) *sseDecoder {
	next, stop := iter.Pull2(service.Lines(r))
	return &sseDecoder{next: next, stop: stop}
}

// Next returns the next event, io.EOF when the stream ended between events.
func (d *sseDecoder) Next() (model.Event, error) {
	var (
		name string
		data []string
	)
	for {
		line, err, ok := d.next()
		if !ok {
			d.stop()
			if len(data) == 0 {
				return model.Event{}, io.EOF
			}
			return decodeEvent(name, data)
		}
		if err != nil {
			d.stop()
			return model.Event{}, err
		}

		switch {
		case line == "":
			if len(data) == 0 {
				continue
			}
			return decodeEvent(name, data)
		case strings.HasPrefix(line, ":"):
			// comment, used for keep-alive
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}
}

func decodeEvent(name string, data []string) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal([]byte(strings.Join(data, "\n")), &ev); err != nil {
		return model.Event{}, fmt.Errorf("decoding %s event: %w", name, err)
	}
	if name != "" && string(ev.Type) != name {
		return model.Event{}, fmt.Errorf("event name %s does not match its type %s", name, ev.Type)
	}
	return ev, nil
}
