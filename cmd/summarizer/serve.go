package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dfs-summarizer/summarizer/internal/log"
	"github.com/dfs-summarizer/summarizer/internal/model"
	"github.com/dfs-summarizer/summarizer/internal/server"
	"github.com/dfs-summarizer/summarizer/internal/service"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve runs the HTTP API until interrupted",
	RunE:  doServe,
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "scrape runs the worker once and prints its output, exit code mirrors the worker",
	RunE:  doScrape,
}

func init() {
	serveCmd.Flags().String("addr", "", "address to listen on, overrides server.addr")
	serveCmd.Flags().String("worker", "", "worker executable, overrides worker.path")
	scrapeCmd.Flags().String("worker", "", "worker executable, overrides worker.path")
}

func doServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = log.ContextAttrs(ctx, slog.Group("summarizer",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	))

	runner, err := newRunner()
	if err != nil {
		return err
	}
	cfg := server.ConfigFromModel(config.Server)
	return server.Run(ctx, cfg, server.NewHandler(runner, cfg))
}

func doScrape(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = log.ContextAttrs(ctx, slog.Group("summarizer",
		slog.String("cmd", "scrape"),
		slog.Int("pid", os.Getpid()),
	))

	runner, err := newRunner()
	if err != nil {
		return err
	}
	run, err := runner.Start(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	code := 1
	for ev := range run.Events() {
		if _, err := out.Write([]byte(ev.PlainText())); err != nil {
			return err
		}
		if ev.Type == model.EventEnd {
			code = exitCode(ev)
		}
	}
	return asError(code)
}

func newRunner() (*service.Runner, error) {
	secrets, err := service.NewViperSecrets(settings, config.Worker.Secrets)
	if err != nil {
		return nil, err
	}
	cmd := service.CommandFromConfig(config.Worker)
	if exe, err := os.Executable(); err == nil {
		cmd = cmd.WithScriptDir(filepath.Dir(exe))
	}
	slog.Debug("worker command", "path", cmd.Path, "args", cmd.Args, "dir", cmd.Dir)
	worker := service.NewExecWorker(cmd)
	return service.NewRunner(worker, secrets, config.Worker), nil
}
