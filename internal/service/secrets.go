package service

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const secretsKey = "secrets"

// ViperSecrets resolves worker secrets from the service configuration. Each
// secret is bound to the environment variable of the same name, values set
// directly on the viper instance take precedence.
type ViperSecrets struct {
	v *viper.Viper
}

func NewViperSecrets(v *viper.Viper, names []string) (ViperSecrets, error) {
	for _, name := range names {
		if err := v.BindEnv(secretKey(name), name); err != nil {
			return ViperSecrets{}, fmt.Errorf("binding secret %s: %w", name, err)
		}
	}
	return ViperSecrets{v: v}, nil
}

func (s ViperSecrets) Secret(name string) string {
	if s.v == nil {
		return ""
	}
	return s.v.GetString(secretKey(name))
}

func secretKey(name string) string {
	return secretsKey + "." + strings.ToLower(name)
}
