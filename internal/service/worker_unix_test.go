//go:build unix

package service_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/dfs-summarizer/summarizer/internal/model"
	"github.com/dfs-summarizer/summarizer/internal/service"

	"github.com/stretchr/testify/require"
)

// running reports whether pid exists and is not a zombie waiting to be
// reaped by init
func running(pid int) bool {
	if err := syscall.Kill(pid, 0); err != nil {
		return false
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	_, rest, ok := strings.Cut(string(stat), ") ")
	return !ok || !strings.HasPrefix(rest, "Z")
}

func TestExecWorkerKillsProcessGroup(t *testing.T) {
	t.Parallel()
	sh := lookSh(t)

	var testCases = []struct {
		scenario string
		given    func(t *testing.T) (context.Context, context.CancelFunc, time.Duration)
	}{
		{
			scenario: "cancel",
			given: func(t *testing.T) (context.Context, context.CancelFunc, time.Duration) {
				ctx, cancel := context.WithCancel(t.Context())
				return ctx, cancel, 0
			},
		},
		{
			scenario: "timeout",
			given: func(t *testing.T) (context.Context, context.CancelFunc, time.Duration) {
				return t.Context(), func() {}, 300 * time.Millisecond
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			ctx, cancel, timeout := tc.given(t)
			defer cancel()

			w := service.NewExecWorker(service.Command{
				Path:    sh,
				Args:    []string{"-c", "sleep 30 & echo $!; wait"},
				Timeout: timeout,
			})
			h, err := w.Spawn(ctx, service.NewEnv(nil, nil, nil, nil))
			require.NoError(t, err)

			var pid int
			for line, err := range service.Lines(h.Output()) {
				require.NoError(t, err)
				pid, err = strconv.Atoi(line)
				require.NoError(t, err)
				break
			}
			require.Positive(t, pid)
			require.True(t, running(pid))

			cancel()
			drain(t, h)
			_, err = h.Wait()
			require.ErrorIs(t, err, model.ErrNoExitCode)

			require.Eventually(t, func() bool {
				return !running(pid)
			}, 5*time.Second, 20*time.Millisecond, "child of the worker %d still running", pid)
		})
	}
}
