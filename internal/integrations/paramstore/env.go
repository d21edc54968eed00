package paramstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvGetter serves parameters from environment variables. Parameter names
// map to variable names through Aliases, or are used verbatim.
type EnvGetter struct {
	Aliases map[string]string
	lookup  func(string) (string, bool)
}

func NewEnvGetter(aliases map[string]string) *EnvGetter {
	return &EnvGetter{Aliases: aliases, lookup: os.LookupEnv}
}

func (g *EnvGetter) GetParameter(_ context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}
	if alias, ok := g.Aliases[name]; ok {
		name = alias
	}
	lookup := g.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("paramstore: environment variable %s is not set", name)
	}
	return v, nil
}
