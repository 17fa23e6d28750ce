package model

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
	"github.com/spf13/viper"

	_ "embed"
)

const (
	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Server Server `json:"server" yaml:"server"`
	Worker Worker `json:"worker" yaml:"worker"`
	Log    Log    `json:"log" yaml:"log"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Addr            string   `json:"addr" yaml:"addr"`
	ShutdownTimeout string   `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// Worker describes the external scraper process and what it gets in its
// environment. Secrets lists variable names whose values are resolved from
// the service configuration at run time, never stored in the file.
type Worker struct {
	Path    string            `json:"path" yaml:"path"`
	Args    []string          `json:"args" yaml:"args"`
	Dir     string            `json:"dir" yaml:"dir"`
	Timeout string            `json:"timeout" yaml:"timeout"` // "0" => no timeout
	Detach  bool              `json:"detach" yaml:"detach"`   // keep the worker running when the caller goes away
	Secrets []string          `json:"secrets" yaml:"secrets"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"` // "$VAR" values are expanded
}

type Log struct {
	Verbose bool   `json:"verbose" yaml:"verbose"`
	Output  string `json:"output" yaml:"output"` // "stderr"|"stdout"|"discard"|path
}

func (s Server) ShutdownTimeoutDuration() time.Duration {
	return duration(s.ShutdownTimeout)
}

func (w Worker) TimeoutDuration() time.Duration {
	return duration(w.Timeout)
}

// duration parses values already validated by the schema
func duration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() Config {
	cfg, err := LoadConfig(strings.NewReader("{}"))
	if err != nil {
		panic(err)
	}
	return *cfg
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
// Missing fields get the schema defaults.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	return &out, nil
}

// overrides lists the keys which can be changed by flags or environment
// variables after the file has been loaded.
var overrides = []struct {
	key   string
	apply func(*Config, *viper.Viper) any
}{
	{"server.addr", func(c *Config, v *viper.Viper) any {
		c.Server.Addr = v.GetString("server.addr")
		return c.Server.Addr
	}},
	{"server.shutdown_timeout", func(c *Config, v *viper.Viper) any {
		c.Server.ShutdownTimeout = v.GetString("server.shutdown_timeout")
		return c.Server.ShutdownTimeout
	}},
	{"worker.path", func(c *Config, v *viper.Viper) any {
		c.Worker.Path = v.GetString("worker.path")
		return c.Worker.Path
	}},
	{"worker.dir", func(c *Config, v *viper.Viper) any {
		c.Worker.Dir = v.GetString("worker.dir")
		return c.Worker.Dir
	}},
	{"worker.timeout", func(c *Config, v *viper.Viper) any {
		c.Worker.Timeout = v.GetString("worker.timeout")
		return c.Worker.Timeout
	}},
	{"worker.detach", func(c *Config, v *viper.Viper) any {
		c.Worker.Detach = v.GetBool("worker.detach")
		return c.Worker.Detach
	}},
	{"log.verbose", func(c *Config, v *viper.Viper) any {
		c.Log.Verbose = v.GetBool("log.verbose")
		return c.Log.Verbose
	}},
	{"log.output", func(c *Config, v *viper.Viper) any {
		c.Log.Output = v.GetString("log.output")
		return c.Log.Output
	}},
}

// OverrideKeys returns the configuration keys ApplyOverrides looks at.
func OverrideKeys() []string {
	keys := make([]string, 0, len(overrides))
	for _, o := range overrides {
		keys = append(keys, o.key)
	}
	return keys
}

// ApplyOverrides copies every key set in v (bound flag or environment
// variable) into cfg. Each new value is checked against the schema.
func ApplyOverrides(cfg *Config, v *viper.Viper) error {
	for _, o := range overrides {
		if !v.IsSet(o.key) {
			continue
		}
		value := o.apply(cfg, v)
		if err := validateValue(o.key, value); err != nil {
			return fmt.Errorf("override %s: %w", o.key, err)
		}
	}
	return nil
}

func validateValue(path string, value any) error {
	field := schema.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return fmt.Errorf("unknown configuration key %s", path)
	}
	return field.Unify(cueCtx.Encode(value)).Validate(cue.Concrete(true))
}
