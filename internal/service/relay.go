package service

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/dfs-summarizer/summarizer/internal/model"
)

// Lines yields the lines of r as soon as each of them is complete, without
// the line terminator ("\n" or "\r\n"). A last line not terminated by a
// newline is yielded when r ends, also when it ends by an error. Lines have
// no maximum length.
//
// The sequence ends at EOF. Any other read error is yielded once, wrapped in
// model.ErrStreamRead, and ends the sequence.
func Lines(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if len(line) > 0 {
				line = strings.TrimSuffix(line, "\n")
				line = strings.TrimSuffix(line, "\r")
				if !yield(line, nil) {
					return
				}
			}
			switch {
			case err == nil:
				continue
			case errors.Is(err, io.EOF):
				return
			default:
				yield("", fmt.Errorf("%w: %w", model.ErrStreamRead, err))
				return
			}
		}
	}
}
