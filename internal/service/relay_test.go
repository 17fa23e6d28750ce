package service_test

import (
	"errors"
	"io"
	"iter"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/dfs-summarizer/summarizer/internal/model"
	"github.com/dfs-summarizer/summarizer/internal/service"

	"github.com/stretchr/testify/require"
)

func TestLines(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		given    string
		then     []string
	}{
		{"empty", "", nil},
		{"single", "one\n", []string{"one"}},
		{"no trailing newline", "one\ntwo", []string{"one", "two"}},
		{"blank lines kept", "one\n\n\nfour\n", []string{"one", "", "", "four"}},
		{"crlf", "one\r\ntwo\r\n", []string{"one", "two"}},
		{"long line", strings.Repeat("x", 1<<20) + "\n", []string{strings.Repeat("x", 1<<20)}},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			// one byte reads make sure lines are assembled across reads
			r := iotest.OneByteReader(strings.NewReader(tc.given))
			var got []string
			for line, err := range service.Lines(r) {
				require.NoError(t, err)
				got = append(got, line)
			}
			require.Equal(t, tc.then, got)
		})
	}
}

func TestLinesReadError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("one\ntwo"), iotest.ErrReader(boom))

	var got []string
	var errs []error
	for line, err := range service.Lines(r) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, line)
	}
	require.Equal(t, []string{"one", "two"}, got)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], model.ErrStreamRead)
	require.ErrorIs(t, errs[0], boom)
}

func TestLinesIncremental(t *testing.T) {
	t.Parallel()
	pr, pw := io.Pipe()

	next, stop := iter.Pull2(service.Lines(pr))
	defer stop()

	go func() {
		_, _ = io.WriteString(pw, "first\nsec")
	}()
	line, err, ok := next()
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, "first", line)

	go func() {
		_, _ = io.WriteString(pw, "ond\n")
		_ = pw.Close()
	}()
	line, err, ok = next()
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, "second", line)

	_, _, ok = next()
	require.False(t, ok)
}
