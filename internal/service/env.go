package service

import (
	"os"
	"sort"
	"strings"
)

// SecretSource resolves secret values by the name of the variable they are
// forwarded under. An unknown secret resolves to the empty string.
type SecretSource interface {
	Secret(name string) string
}

// Env is the environment handed to one worker process. It is built once per
// run and never changes afterwards.
type Env struct {
	vars map[string]string
}

// NewEnv copies inherited ("KEY=VALUE" entries, later ones win), sets the
// static variables and finally every name from secrets to its value from
// source. Static values starting with $ are expanded against the inherited
// environment. A secret missing in source is forwarded as an empty value.
func NewEnv(inherited []string, static map[string]string, source SecretSource, secrets []string) Env {
	vars := make(map[string]string, len(inherited)+len(static)+len(secrets))
	for _, kv := range inherited {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}

	lookup := func(name string) string {
		return vars[name]
	}
	expanded := make(map[string]string, len(static))
	for k, v := range static {
		if strings.HasPrefix(v, "$") {
			v = os.Expand(v, lookup)
		}
		expanded[k] = v
	}
	for k, v := range expanded {
		vars[k] = v
	}

	for _, name := range secrets {
		var value string
		if source != nil {
			value = source.Secret(name)
		}
		vars[name] = value
	}
	return Env{vars: vars}
}

// Lookup returns the value of a variable and whether it is present.
func (e Env) Lookup(name string) (string, bool) {
	v, ok := e.vars[name]
	return v, ok
}

func (e Env) Len() int {
	return len(e.vars)
}

// Environ returns the environment in os/exec form, sorted by name.
func (e Env) Environ() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ret := make([]string, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, k+"="+e.vars[k])
	}
	return ret
}
