package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/dfs-summarizer/summarizer/internal/log"
	"github.com/dfs-summarizer/summarizer/internal/model"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configEnv  = "SUMMARIZERCONFIG"
	configFile = "summarizer.yaml"
	envPrefix  = "SUMMARIZER"
)

var (
	userConfigPath string // /default/config/path/summarizer on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	settings       *viper.Viper // env and flag layer, secrets
	closeLog       = func() error { return nil }

	flagConfigFilePath string // value of --config flag
)

// flagKeys maps flag names to the configuration keys they override
var flagKeys = map[string]string{
	"verbose": "log.verbose",
	"addr":    "server.addr",
	"worker":  "worker.path",
}

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "summarizer")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is "+configFile+" in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose logging, overrides log.verbose")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse the config, setup logging
	rootCmd.PersistentPreRunE = initSummarizer

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	err := rootCmd.Execute()
	_ = closeLog()
	if err != nil {
		var exitErr exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		slog.Error("summarizer failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "summarizer",
	Short:        "Service streaming the output of the OneFootball DFS scraper",
	SilenceUsage: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "config prints the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", configPath)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(config); err != nil {
			return fmt.Errorf("encoding configuration: %w", err)
		}
		return enc.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a summarizer",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("summarizer: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:     %s\n", configPath)
		}
		fmt.Printf("summarizer: %s\n", info.Main.Version)
		fmt.Printf("go:         %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:     %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:       %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:      %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func initSummarizer(cmd *cobra.Command, _ []string) error {
	configPath = findConfig()

	if configPath == "" {
		config = model.DefaultConfig()
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		cfg, err := model.LoadConfig(f)
		if err != nil {
			for _, d := range model.ConfigErrDetails(err) {
				slog.Error("invalid configuration", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config %s: %w", configPath, err)
		}
		config = *cfg
	}

	// flags and environment have a precedence over config file
	var err error
	settings, err = newSettings()
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := settings.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	if err := model.ApplyOverrides(&config, settings); err != nil {
		return err
	}

	// initialize logging
	w, closer, err := log.Output(config.Log.Output)
	if err != nil {
		return err
	}
	closeLog = closer
	slog.SetDefault(log.New(w, config.Log.Verbose))

	slog.Debug("summarizer run", "configPath", configPath)
	slog.Debug("summarizer run", "config", config)
	return nil
}

// newSettings returns the viper instance reading SUMMARIZER_* variables of
// the overridable keys, SUMMARIZER_WORKER_PATH overrides worker.path.
func newSettings() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range model.OverrideKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return v, nil
}

func findConfig() string {
	if envConfig, ok := os.LookupEnv(configEnv); ok {
		return envConfig
	}
	if flagConfigFilePath != "" {
		return flagConfigFilePath
	}
	for _, d := range []string{userConfigPath, "."} {
		path := filepath.Join(d, configFile)
		if exists(path) {
			return path
		}
	}
	return ""
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// exitCodeError makes the process exit with the given code without
// logging a failure.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// exitCode maps the end event of a run to a process exit code.
func exitCode(ev model.Event) int {
	switch {
	case ev.Type != model.EventEnd:
		return 1
	case !ev.Failed():
		return 0
	case ev.ExitCode != nil && *ev.ExitCode != 0:
		return *ev.ExitCode
	}
	return 1
}

func asError(code int) error {
	if code == 0 {
		return nil
	}
	return exitCodeError{code: code}
}
