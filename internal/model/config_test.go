package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/dfs-summarizer/summarizer/internal/model"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := model.DefaultConfig()
	require.Equal(t, ":8000", cfg.Server.Addr)
	require.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeoutDuration())
	require.Empty(t, cfg.Server.AllowedOrigins)

	require.Equal(t, "node", cfg.Worker.Path)
	require.Equal(t, []string{"oneFootballScraper.js"}, cfg.Worker.Args)
	require.Equal(t, []string{"OPENAI_API_KEY"}, cfg.Worker.Secrets)
	require.Zero(t, cfg.Worker.TimeoutDuration())
	require.False(t, cfg.Worker.Detach)
	require.Empty(t, cfg.Worker.Env)

	require.False(t, cfg.Log.Verbose)
	require.Equal(t, model.LogStderr, cfg.Log.Output)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	yml := `
server:
  addr: 127.0.0.1:9000
  allowed_origins:
    - https://dfs.example.com
worker:
  path: /usr/bin/node
  args: [scraper.js, --league, epl]
  dir: /srv/scraper
  timeout: 5m
  secrets: [OPENAI_API_KEY, ONEFOOTBALL_TOKEN]
  env:
    NODE_ENV: production
    HOME: $HOME
log:
  verbose: true
  output: /var/log/summarizer.log
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeoutDuration())
	require.Equal(t, []string{"https://dfs.example.com"}, cfg.Server.AllowedOrigins)

	require.Equal(t, "/usr/bin/node", cfg.Worker.Path)
	require.Equal(t, []string{"scraper.js", "--league", "epl"}, cfg.Worker.Args)
	require.Equal(t, "/srv/scraper", cfg.Worker.Dir)
	require.Equal(t, 5*time.Minute, cfg.Worker.TimeoutDuration())
	require.Equal(t, []string{"OPENAI_API_KEY", "ONEFOOTBALL_TOKEN"}, cfg.Worker.Secrets)
	require.Equal(t, map[string]string{"NODE_ENV": "production", "HOME": "$HOME"}, cfg.Worker.Env)

	require.True(t, cfg.Log.Verbose)
	require.Equal(t, "/var/log/summarizer.log", cfg.Log.Output)
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
		path     string
		code     string
	}{
		{
			scenario: "unknown field",
			given: `
worker:
  command: node
`,
			path: "worker.command",
			code: "unknown_field",
		},
		{
			scenario: "bad duration",
			given: `
worker:
  timeout: soon
`,
			path: "worker.timeout",
		},
		{
			scenario: "relative log path",
			given: `
log:
  output: summarizer.log
`,
			path: "log.output",
		},
		{
			scenario: "bad secret name",
			given: `
worker:
  secrets: ["OPENAI-API-KEY"]
`,
			path: "worker.secrets",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(tc.given))
			require.Error(t, err)

			details := model.ConfigErrDetails(err)
			require.NotEmpty(t, details)
			var found bool
			for _, d := range details {
				require.NotEmpty(t, d.Message)
				require.Positive(t, d.Pos.Line)
				if !strings.HasPrefix(d.Path, tc.path) {
					continue
				}
				found = true
				if tc.code != "" {
					require.Equal(t, tc.code, d.Code)
				}
			}
			require.True(t, found, "no error reported for %s: %+v", tc.path, details)
		})
	}
}

func TestConfigErrDetails_LogOutputHint(t *testing.T) {
	t.Parallel()
	_, err := model.LoadConfig(strings.NewReader("log:\n  output: syslog\n"))
	require.Error(t, err)
	details := model.ConfigErrDetails(err)
	require.NotEmpty(t, details)
	require.Equal(t, "log.output", details[0].Path)
	require.Contains(t, details[0].Message, "possible values (stderr,stdout,discard,/absolute/path)")
}

func TestConfigErrDetails_Nil(t *testing.T) {
	t.Parallel()
	require.Nil(t, model.ConfigErrDetails(nil))
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    map[string]any
		then     func(*testing.T, model.Config, error)
	}{
		{
			scenario: "nothing set",
			given:    nil,
			then: func(t *testing.T, cfg model.Config, err error) {
				require.NoError(t, err)
				require.Equal(t, model.DefaultConfig(), cfg)
			},
		},
		{
			scenario: "values set",
			given: map[string]any{
				"server.addr":    ":9090",
				"worker.path":    "/opt/node/bin/node",
				"worker.timeout": "90s",
				"worker.detach":  true,
				"log.verbose":    "true",
			},
			then: func(t *testing.T, cfg model.Config, err error) {
				require.NoError(t, err)
				require.Equal(t, ":9090", cfg.Server.Addr)
				require.Equal(t, "/opt/node/bin/node", cfg.Worker.Path)
				require.Equal(t, 90*time.Second, cfg.Worker.TimeoutDuration())
				require.True(t, cfg.Worker.Detach)
				require.True(t, cfg.Log.Verbose)
			},
		},
		{
			scenario: "invalid value",
			given: map[string]any{
				"worker.timeout": "later",
			},
			then: func(t *testing.T, _ model.Config, err error) {
				require.ErrorContains(t, err, "override worker.timeout")
			},
		},
		{
			scenario: "empty worker path",
			given: map[string]any{
				"worker.path": "",
			},
			then: func(t *testing.T, _ model.Config, err error) {
				require.ErrorContains(t, err, "override worker.path")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			v := viper.New()
			for key, value := range tc.given {
				v.Set(key, value)
			}
			cfg := model.DefaultConfig()
			err := model.ApplyOverrides(&cfg, v)
			tc.then(t, cfg, err)
		})
	}
}

func TestOverrideKeys(t *testing.T) {
	t.Parallel()
	keys := model.OverrideKeys()
	require.Contains(t, keys, "server.addr")
	require.Contains(t, keys, "worker.path")
	require.Contains(t, keys, "log.output")
	require.NotContains(t, keys, "worker.secrets")
}
