package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dfs-summarizer/summarizer/internal/client"
	"github.com/dfs-summarizer/summarizer/internal/model"
	"github.com/dfs-summarizer/summarizer/internal/parallel"

	"github.com/spf13/cobra"
)

var (
	flagURL     string
	flagWS      bool
	flagWatches int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "watch starts runs on a remote summarizer and prints their output",
	RunE:  doWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagURL, "url", "http://localhost:8000", "summarizer server url")
	watchCmd.Flags().BoolVar(&flagWS, "ws", false, "use the websocket endpoint")
	watchCmd.Flags().IntVarP(&flagWatches, "count", "n", 1, "number of concurrent runs")
}

func doWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagWatches < 1 {
		return fmt.Errorf("-n must be at least 1, got %d", flagWatches)
	}
	c, err := client.New(flagURL)
	if err != nil {
		return err
	}

	out := &lockedWriter{w: cmd.OutOrStdout()}
	watch := func(ctx context.Context, _ int) (int, error) {
		return watchOne(ctx, c, out, flagWatches > 1)
	}

	worst := 0
	for code, err := range parallel.Times(ctx, flagWatches, 0, watch) {
		if err != nil {
			slog.ErrorContext(ctx, "watch failed", "error", err)
		}
		worst = max(worst, code)
	}
	return asError(worst)
}

// watchOne follows a single remote run and returns the exit code it maps to.
func watchOne(ctx context.Context, c *client.Client, out *lockedWriter, prefixed bool) (int, error) {
	open := c.Scrape
	if flagWS {
		open = c.ScrapeWS
	}
	stream, err := open(ctx)
	if err != nil {
		return 1, err
	}
	defer func() {
		_ = stream.Close()
	}()

	var prefix string
	if prefixed {
		prefix = "[" + stream.RunID + "] "
	}
	for ev, err := range stream.Events() {
		if err != nil {
			return 1, err
		}
		if err := out.WriteLine(prefix, ev.PlainText()); err != nil {
			return 1, err
		}
		if ev.Type == model.EventEnd {
			return exitCode(ev), nil
		}
	}
	return 1, errors.New("stream ended without the end event")
}

// lockedWriter writes whole lines of concurrent watches.
type lockedWriter struct {
	mx sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) WriteLine(prefix, line string) error {
	var buf bytes.Buffer
	buf.WriteString(prefix)
	buf.WriteString(line)
	w.mx.Lock()
	defer w.mx.Unlock()
	_, err := w.w.Write(buf.Bytes())
	return err
}
