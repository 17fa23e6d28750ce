package model

import (
	"strconv"
	"time"
)

type EventType string

const (
	EventStart EventType = "start"
	EventLine  EventType = "line"
	EventEnd   EventType = "end"
)

// Event is one chunk of a run's response stream. A stream is always a start
// event, zero or more line events in the order the worker wrote them and a
// single end event.
type Event struct {
	Type        EventType `json:"type"`
	RunID       string    `json:"run_id"`
	Seq         int       `json:"seq"`
	Time        time.Time `json:"time"`
	Text        string    `json:"text,omitempty"`         // line
	ExitCode    *int      `json:"exit_code,omitempty"`    // end; nil when the worker has no exit code
	Error       string    `json:"error,omitempty"`        // end; why ExitCode is missing
	StreamError string    `json:"stream_error,omitempty"` // end; output was truncated
}

// ID is unique across all events of all runs.
func (e Event) ID() string {
	return e.RunID + "-" + strconv.Itoa(e.Seq)
}

// Failed reports whether an end event denotes an unsuccessful run.
func (e Event) Failed() bool {
	return e.Type == EventEnd && (e.ExitCode == nil || *e.ExitCode != 0 || e.StreamError != "")
}

// PlainText renders the event as a single line of text, including the
// trailing newline.
func (e Event) PlainText() string {
	switch e.Type {
	case EventStart:
		return "Starting scraper run: " + e.RunID + "\n"
	case EventLine:
		return e.Text + "\n"
	case EventEnd:
		var s string
		if e.ExitCode != nil {
			s = "Scraper finished with exit code " + strconv.Itoa(*e.ExitCode)
		} else {
			s = "Scraper ended abnormally: " + e.Error
		}
		if e.StreamError != "" {
			s += " (output truncated: " + e.StreamError + ")"
		}
		return s + "\n"
	default:
		return ""
	}
}
